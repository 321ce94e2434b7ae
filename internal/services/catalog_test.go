package services

import (
	"context"
	"errors"
	"slices"
	"testing"

	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/testutil"
)

func seedSubcategory(t *testing.T, svc *CatalogService) *models.Subcategory {
	t.Helper()
	ctx := context.Background()
	cat, err := svc.CreateCategory(ctx, "Pantalon")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	sub, err := svc.CreateSubcategory(ctx, cat.ID, "Ourlets")
	if err != nil {
		t.Fatalf("create subcategory: %v", err)
	}
	return sub
}

func seedSupply(t *testing.T, svc *CatalogService, name string, qty int) *models.SupplyItem {
	t.Helper()
	s, err := svc.CreateSupply(context.Background(), SupplyInput{Reference: "REF-" + name, Name: name, Color: "noir", Quantity: qty})
	if err != nil {
		t.Fatalf("create supply %s: %v", name, err)
	}
	return s
}

func quantity(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var s models.SupplyItem
	if err := db.First(&s, id).Error; err != nil {
		t.Fatalf("load supply %d: %v", id, err)
	}
	return s.Quantity
}

func TestDiffSupplies(t *testing.T) {
	cases := []struct {
		name            string
		current, submit []uint
		removed, added  []uint
	}{
		{"unchanged", []uint{1, 2}, []uint{2, 1}, nil, nil},
		{"swap", []uint{1, 2}, []uint{2, 3}, []uint{1}, []uint{3}},
		{"clear", []uint{3, 1}, nil, []uint{1, 3}, nil},
		{"from empty", nil, []uint{5, 4, 4}, nil, []uint{4, 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			removed, added := DiffSupplies(tc.current, tc.submit)
			if !slices.Equal(removed, tc.removed) {
				t.Errorf("removed = %v, want %v", removed, tc.removed)
			}
			if !slices.Equal(added, tc.added) {
				t.Errorf("added = %v, want %v", added, tc.added)
			}
		})
	}
}

func TestCreateItemDoesNotTouchStock(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	sub := seedSubcategory(t, svc)
	a := seedSupply(t, svc, "Fil", 5)

	item, err := svc.CreateItem(context.Background(), ItemInput{Name: "Ourlet simple", Price: "9,00", SubcategoryID: sub.ID, SupplyIDs: []uint{a.ID}})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if got := item.Price.Decimal.StringFixed(2); got != "9.00" {
		t.Fatalf("price = %s, want 9.00", got)
	}
	if q := quantity(t, db, a.ID); q != 5 {
		t.Fatalf("quantity = %d, want 5", q)
	}
}

func TestUpdateItemAdjustsStock(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	sub := seedSubcategory(t, svc)
	a := seedSupply(t, svc, "A", 5)
	b := seedSupply(t, svc, "B", 0)
	c := seedSupply(t, svc, "C", 3)

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Ourlet", Price: "10", SubcategoryID: sub.ID, SupplyIDs: []uint{a.ID, b.ID}})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	adj, err := svc.UpdateItem(ctx, item.ID, ItemInput{Name: "Ourlet", Price: "10", SubcategoryID: sub.ID, SupplyIDs: []uint{b.ID, c.ID}})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if q := quantity(t, db, a.ID); q != 6 {
		t.Errorf("A = %d, want 6", q)
	}
	if q := quantity(t, db, b.ID); q != 0 {
		t.Errorf("B = %d, want 0", q)
	}
	if q := quantity(t, db, c.ID); q != 2 {
		t.Errorf("C = %d, want 2", q)
	}
	if !slices.Equal(adj.Returned, []uint{a.ID}) || !slices.Equal(adj.Consumed, []uint{c.ID}) || len(adj.Skipped) != 0 {
		t.Errorf("unexpected adjustment %+v", adj)
	}

	got, err := svc.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	ids := got.SupplyIDs()
	slices.Sort(ids)
	want := []uint{b.ID, c.ID}
	slices.Sort(want)
	if !slices.Equal(ids, want) {
		t.Fatalf("links = %v, want %v", ids, want)
	}

	mv, err := svc.Movements(ctx, c.ID)
	if err != nil {
		t.Fatalf("movements: %v", err)
	}
	if len(mv) != 1 || mv[0].Delta != -1 || mv[0].Before != 3 || mv[0].After != 2 || mv[0].Reason != models.MovementLinkAdded {
		t.Fatalf("unexpected movements %+v", mv)
	}
}

func TestUpdateItemFloorsAtZero(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	sub := seedSubcategory(t, svc)
	empty := seedSupply(t, svc, "Bouton", 0)

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Boutons", Price: "4", SubcategoryID: sub.ID})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	adj, err := svc.UpdateItem(ctx, item.ID, ItemInput{Name: "Boutons", Price: "4", SubcategoryID: sub.ID, SupplyIDs: []uint{empty.ID}})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if q := quantity(t, db, empty.ID); q != 0 {
		t.Fatalf("quantity = %d, want 0", q)
	}
	if !slices.Equal(adj.Skipped, []uint{empty.ID}) {
		t.Fatalf("skipped = %v", adj.Skipped)
	}
	got, _ := svc.GetItem(ctx, item.ID)
	if len(got.Supplies) != 1 {
		t.Fatalf("link should still be created, got %d", len(got.Supplies))
	}
}

func TestUpdateItemInvalidPriceAbortsEverything(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	sub := seedSubcategory(t, svc)
	a := seedSupply(t, svc, "A", 5)
	c := seedSupply(t, svc, "C", 3)

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Ourlet", Price: "10", SubcategoryID: sub.ID, SupplyIDs: []uint{a.ID}})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	for _, price := range []string{"abc", "-3"} {
		_, err = svc.UpdateItem(ctx, item.ID, ItemInput{Name: "Renamed", Price: price, SubcategoryID: sub.ID, SupplyIDs: []uint{c.ID}})
		if !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("price %q: expected ErrInvalidPrice, got %v", price, err)
		}
	}
	got, _ := svc.GetItem(ctx, item.ID)
	if got.Name != "Ourlet" || got.Price.Decimal.StringFixed(2) != "10.00" {
		t.Fatalf("item changed: %+v", got)
	}
	if quantity(t, db, a.ID) != 5 || quantity(t, db, c.ID) != 3 {
		t.Fatalf("stock changed")
	}
}

func TestUpdateItemUnknownSupplyRollsBack(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	sub := seedSubcategory(t, svc)
	a := seedSupply(t, svc, "A", 5)

	item, err := svc.CreateItem(ctx, ItemInput{Name: "Ourlet", Price: "10", SubcategoryID: sub.ID, SupplyIDs: []uint{a.ID}})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	_, err = svc.UpdateItem(ctx, item.ID, ItemInput{Name: "Ourlet", Price: "10", SubcategoryID: sub.ID, SupplyIDs: []uint{999}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if q := quantity(t, db, a.ID); q != 5 {
		t.Fatalf("A = %d, want 5", q)
	}
}

func TestEmptyPriceIsNull(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	sub := seedSubcategory(t, svc)
	item, err := svc.CreateItem(context.Background(), ItemInput{Name: "Sur devis", Price: "", SubcategoryID: sub.ID})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	got, _ := svc.GetItem(context.Background(), item.ID)
	if got.Price.Valid {
		t.Fatalf("expected NULL price, got %s", got.Price.Decimal)
	}
}

func TestDeleteCategoryCascades(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	sub := seedSubcategory(t, svc)
	a := seedSupply(t, svc, "A", 5)
	item, err := svc.CreateItem(ctx, ItemInput{Name: "Ourlet", Price: "10", SubcategoryID: sub.ID, SupplyIDs: []uint{a.ID}})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	if err := svc.DeleteCategory(ctx, sub.CategoryID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	var n int64
	db.Model(&models.Subcategory{}).Count(&n)
	if n != 0 {
		t.Errorf("subcategories left: %d", n)
	}
	db.Model(&models.PricedItem{}).Where("id = ?", item.ID).Count(&n)
	if n != 0 {
		t.Errorf("priced item left")
	}
	db.Table("priced_item_supplies").Count(&n)
	if n != 0 {
		t.Errorf("links left: %d", n)
	}
	if q := quantity(t, db, a.ID); q != 5 {
		t.Errorf("supply quantity changed to %d", q)
	}
	if err := svc.DeleteCategory(ctx, sub.CategoryID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestCategoryNameRules(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	ctx := context.Background()
	if _, err := svc.CreateCategory(ctx, "  "); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := svc.CreateCategory(ctx, "Robe"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateCategory(ctx, "Robe"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestUpdateSupplyAcceptsAnyQuantity(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCatalogService(db, nil)
	s := seedSupply(t, svc, "Zip", 2)
	if err := svc.UpdateSupply(context.Background(), s.ID, SupplyInput{Reference: "Z1", Name: "Zip", Color: "rouge", Quantity: -4}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if q := quantity(t, db, s.ID); q != -4 {
		t.Fatalf("quantity = %d, want -4", q)
	}
	low, err := svc.Supplies(context.Background(), SupplyFilter{LowOnly: true})
	if err != nil || len(low) != 1 {
		t.Fatalf("low stock filter: %v %d", err, len(low))
	}
}
