package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/testutil"
)

const inventoryCSV = `reference;nom;couleur;quantite;;
F-001;Fil polyester;noir;12;;
F-002;Fermeture éclair 18cm;bleu;4
;;;
B-010;Bouton;3
Z-9;Zip;rouge;beaucoup
F-003; Biais ;écru ; 7 ;
`

func TestParseDelimited(t *testing.T) {
	rows, rejected, err := ParseDelimited(strings.NewReader(inventoryCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0] != (SupplyInput{Reference: "F-001", Name: "Fil polyester", Color: "noir", Quantity: 12}) {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[2] != (SupplyInput{Reference: "F-003", Name: "Biais", Color: "écru", Quantity: 7}) {
		t.Errorf("row 2 = %+v", rows[2])
	}
	if len(rejected) != 3 {
		t.Fatalf("expected 3 rejects, got %+v", rejected)
	}
	reasons := map[int]string{}
	for _, r := range rejected {
		reasons[r.Line] = r.Reason
	}
	if reasons[4] != "not_enough_columns" || reasons[5] != "not_enough_columns" || reasons[6] != "invalid_quantity" {
		t.Errorf("unexpected rejects %v", reasons)
	}
}

func TestImportUpsertsByReference(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	seedSupply(t, svc, "Fil", 1) // reference REF-Fil

	rep, err := svc.ImportFile(ctx, "inventaire.csv", []byte("ref;nom;couleur;qte\nREF-Fil;Fil coton;blanc;20\nN-1;Aiguilles;gris;3\nbad\n"))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if rep.Created != 1 || rep.Updated != 1 || len(rep.Skipped) != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	var n int64
	db.Model(&models.SupplyItem{}).Count(&n)
	if n != 2 {
		t.Fatalf("supplies = %d, want 2", n)
	}
	var fil models.SupplyItem
	db.Where("reference = ?", "REF-Fil").First(&fil)
	if fil.Quantity != 20 || fil.Name != "Fil coton" {
		t.Errorf("not updated: %+v", fil)
	}
}

func TestExportImportXLSX(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	seedSupply(t, svc, "Fil", 5)
	seedSupply(t, svc, "Zip", -1)

	data, err := svc.ExportSuppliesXLSX(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Fatalf("not a zip container")
	}
	rows, rejected, err := ParseXLSX(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse xlsx: %v", err)
	}
	if len(rows) != 2 || len(rejected) != 0 {
		t.Fatalf("rows %+v rejected %+v", rows, rejected)
	}
	if rows[1].Name != "Zip" || rows[1].Quantity != -1 {
		t.Errorf("unexpected row %+v", rows[1])
	}

	rep, err := svc.ImportFile(ctx, "stock.XLSX", data)
	if err != nil {
		t.Fatalf("reimport: %v", err)
	}
	if rep.Created != 0 || rep.Updated != 2 {
		t.Errorf("unexpected report %+v", rep)
	}
}
