package db

import (
	"path/filepath"
	"testing"

	"github.com/diewo77/atelier/internal/config"
	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/testutil"
)

func TestSeedIdempotent(t *testing.T) {
	d := testutil.OpenDB(t)
	n, err := Seed(d)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 45 {
		t.Fatalf("expected 45 priced items got %d", n)
	}
	again, err := Seed(d)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if again != 0 {
		t.Fatalf("second seed must be a no-op, created %d", again)
	}
	var cats, subs, items int64
	d.Model(&models.Category{}).Count(&cats)
	d.Model(&models.Subcategory{}).Count(&subs)
	d.Model(&models.PricedItem{}).Count(&items)
	if cats != 5 || subs != 17 || items != 45 {
		t.Fatalf("unexpected grid size cats=%d subs=%d items=%d", cats, subs, items)
	}
	var ourlet models.PricedItem
	if err := d.Where("name = ?", "Ourlet simple").First(&ourlet).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if !ourlet.Price.Valid || ourlet.Price.Decimal.StringFixed(2) != "9.00" {
		t.Fatalf("unexpected price %v", ourlet.Price)
	}
}

func TestConnectAndMigrateSQLiteFile(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "atelier.db"), Seed: true}
	d, err := ConnectAndMigrate(cfg, nil)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sqlDB, _ := d.DB()
	defer sqlDB.Close()
	var count int64
	d.Model(&models.PricedItem{}).Count(&count)
	if count == 0 {
		t.Fatalf("expected seeded price grid")
	}
	var fk int
	d.Raw("PRAGMA foreign_keys").Scan(&fk)
	if fk != 1 {
		t.Fatalf("expected foreign keys enabled, got %d", fk)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "mysql"}, nil); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestDSNHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"kv adds sslmode", NormalizeDSN(" host=db  user=u password=p dbname=a "), "host=db user=u password=p dbname=a sslmode=disable"},
		{"url untouched", NormalizeDSN("postgres://u:p@db/a"), "postgres://u:p@db/a"},
		{"kv to url", ToURLDSN("host=db port=5432 user=u password=p dbname=a sslmode=disable"), "postgres://u:p@db:5432/a?sslmode=disable"},
		{"sqlite file", SQLiteDSN("atelier.db"), "file:atelier.db?_foreign_keys=on"},
		{"sqlite query", SQLiteDSN("file:x.db?cache=shared"), "file:x.db?cache=shared&_foreign_keys=on"},
		{"sqlite explicit", SQLiteDSN("file:x.db?_fk=1"), "file:x.db?_fk=1"},
		{"mask kv", MaskDSN("host=db password=secret dbname=a"), "host=db password=*** dbname=a"},
		{"mask url", MaskDSN("postgres://u:secret@db/a"), "postgres://u:***@db/a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
