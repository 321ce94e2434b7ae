package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/diewo77/atelier/internal/config"
	"github.com/diewo77/atelier/internal/services"
	"github.com/diewo77/atelier/internal/testutil"
)

func TestImportAndCheckInventory(t *testing.T) {
	conn := testutil.OpenDB(t)
	catalog := services.NewCatalogService(conn, zap.NewNop())
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "inventaire.csv")
	content := "reference;nom;couleur;quantite\nF-1;Fil;noir;10\nbad;row\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := runImportInventory(ctx, catalog, path, &out); err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out.String(), "1 created, 0 updated, 1 skipped") {
		t.Errorf("unexpected report %q", out.String())
	}

	out.Reset()
	if err := runCheckInventory(ctx, catalog, &out); err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out.String(), "F-1") || !strings.Contains(out.String(), "10") {
		t.Errorf("inventory listing missing row: %q", out.String())
	}
}

func TestCheckInventoryEmpty(t *testing.T) {
	conn := testutil.OpenDB(t)
	var out bytes.Buffer
	if err := runCheckInventory(context.Background(), services.NewCatalogService(conn, nil), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "no supplies") {
		t.Errorf("got %q", out.String())
	}
}

func TestConvertPricesRunsOnce(t *testing.T) {
	conn := testutil.OpenDB(t)
	tickets := services.NewTicketService(conn, config.DefaultShop(), nil)
	ctx := context.Background()
	if err := runConvertPrices(ctx, tickets, zap.NewNop()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := runConvertPrices(ctx, tickets, zap.NewNop()); !errors.Is(err, services.ErrConversionAlreadyApplied) {
		t.Fatalf("second run: want ErrConversionAlreadyApplied, got %v", err)
	}
}

func TestRunSeed(t *testing.T) {
	conn := testutil.OpenDB(t)
	if err := runSeed(conn, zap.NewNop()); err != nil {
		t.Fatal(err)
	}
}
