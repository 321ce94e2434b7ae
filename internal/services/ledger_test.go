package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/config"
	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/testutil"
)

type ledgerFixture struct {
	db      *gorm.DB
	catalog *CatalogService
	tickets *TicketService
	item    *models.PricedItem
	thread  *models.SupplyItem
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db := testutil.OpenDB(t)
	cat := NewCatalogService(db, nil)
	sub := seedSubcategory(t, cat)
	thread := seedSupply(t, cat, "Fil", 1)
	item, err := cat.CreateItem(context.Background(), ItemInput{Name: "Ourlet simple", Price: "9", SubcategoryID: sub.ID, SupplyIDs: []uint{thread.ID}})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return &ledgerFixture{
		db:      db,
		catalog: cat,
		tickets: NewTicketService(db, config.DefaultShop(), nil),
		item:    item,
		thread:  thread,
	}
}

func ptr[T any](v T) *T { return &v }

func (f *ledgerFixture) create(t *testing.T, in TicketInput) *Receipt {
	t.Helper()
	rc, err := f.tickets.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create ticket: %v", err)
	}
	return rc
}

func TestCreateTicketTotalsAndStock(t *testing.T) {
	f := newLedgerFixture(t)
	due := time.Date(2026, 3, 14, 15, 30, 0, 0, time.Local)
	rc := f.create(t, TicketInput{
		ClientName:  "Alice",
		ClientPhone: "0612345678",
		DueDate:     &due,
		Lines: []LineInput{
			{PricedItemID: &f.item.ID, Quantity: 2},
			{Price: "12,50", Description: "Reprise doublure", Quantity: 1, TriedInShop: true},
			{},
		},
	})
	if len(rc.Retouches) != 3 {
		t.Fatalf("expected 3 retouches, got %d", len(rc.Retouches))
	}
	if got := rc.Totals.PreTax.StringFixed(2); got != "30.50" {
		t.Errorf("pre-tax = %s, want 30.50", got)
	}
	if got := rc.Totals.Tax.StringFixed(2); got != "6.10" {
		t.Errorf("tax = %s, want 6.10", got)
	}
	if got := rc.Totals.Total.StringFixed(2); got != "36.60" {
		t.Errorf("total = %s, want 36.60", got)
	}
	if rc.Ticket.DueDate == nil || rc.Ticket.DueDate.Format(models.DateLayout) != "2026-03-14" {
		t.Errorf("due date = %v", rc.Ticket.DueDate)
	}
	// two units, one in stock: floored at zero
	if q := quantity(t, f.db, f.thread.ID); q != 0 {
		t.Errorf("thread quantity = %d, want 0", q)
	}
	var mv int64
	f.db.Model(&models.StockMovement{}).Where("ticket_id = ?", rc.Ticket.ID).Count(&mv)
	if mv != 1 {
		t.Errorf("movements = %d, want 1", mv)
	}
}

func TestCreateTicketPriceFallbacks(t *testing.T) {
	f := newLedgerFixture(t)
	rc := f.create(t, TicketInput{
		ClientName: "Bob",
		Lines: []LineInput{
			{PricedItemID: &f.item.ID, Price: "0"},
			{PricedItemID: &f.item.ID, Price: "15"},
			{Description: "Sur devis"},
		},
	})
	want := []string{"9.00", "15.00", "0.00"}
	for i, r := range rc.Retouches {
		if got := r.Price.Decimal.StringFixed(2); got != want[i] {
			t.Errorf("line %d price = %s, want %s", i, got, want[i])
		}
	}
}

func TestCreateTicketSnapshotPrice(t *testing.T) {
	f := newLedgerFixture(t)
	rc := f.create(t, TicketInput{ClientName: "Bob", Lines: []LineInput{{PricedItemID: &f.item.ID}}})
	if _, err := f.catalog.UpdateItem(context.Background(), f.item.ID, ItemInput{Name: "Ourlet simple", Price: "11", SubcategoryID: f.item.SubcategoryID, SupplyIDs: []uint{f.thread.ID}}); err != nil {
		t.Fatalf("update item: %v", err)
	}
	again, err := f.tickets.Receipt(context.Background(), rc.Ticket.ID)
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if got := again.Totals.PreTax.StringFixed(2); got != "9.00" {
		t.Fatalf("snapshot changed: %s", got)
	}
}

func TestCreateTicketRejects(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	if _, err := f.tickets.Create(ctx, TicketInput{ClientName: "Bob", Lines: []LineInput{{}, {}}}); !errors.Is(err, ErrNoLines) {
		t.Fatalf("expected ErrNoLines, got %v", err)
	}
	missing := uint(999)
	if _, err := f.tickets.Create(ctx, TicketInput{ClientName: "Bob", Lines: []LineInput{{PricedItemID: &missing}}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.tickets.Create(ctx, TicketInput{Lines: []LineInput{{Description: "x"}}}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if _, err := f.tickets.Create(ctx, TicketInput{ClientName: "Bob", Lines: []LineInput{{PricedItemID: &f.item.ID, Quantity: -2}}}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if q := quantity(t, f.db, f.thread.ID); q != 1 {
		t.Fatalf("stock must be untouched by a rejected ticket, got %d", q)
	}
	var n int64
	f.db.Model(&models.Ticket{}).Count(&n)
	if n != 0 {
		t.Fatalf("no ticket should be stored, got %d", n)
	}
	f.db.Model(&models.Client{}).Count(&n)
	if n != 0 {
		t.Fatalf("no client should be stored, got %d", n)
	}
}

func TestClientDedupByPhone(t *testing.T) {
	f := newLedgerFixture(t)
	line := []LineInput{{Description: "Ourlet"}}
	f.create(t, TicketInput{ClientName: "Alice", ClientPhone: "0612345678", Lines: line})
	f.create(t, TicketInput{ClientName: "Alicia", ClientPhone: "0612345678", Lines: line})

	var clients []models.Client
	if err := f.db.Preload("Tickets").Find(&clients).Error; err != nil {
		t.Fatalf("load clients: %v", err)
	}
	if len(clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(clients))
	}
	if clients[0].Name != "Alicia" {
		t.Errorf("name = %q, want Alicia", clients[0].Name)
	}
	if len(clients[0].Tickets) != 2 {
		t.Errorf("tickets = %d, want 2", len(clients[0].Tickets))
	}

	// walk-ins without phone stay distinct
	f.create(t, TicketInput{ClientName: "Alice", Lines: line})
	f.create(t, TicketInput{ClientName: "Alice", Lines: line})
	var n int64
	f.db.Model(&models.Client{}).Count(&n)
	if n != 3 {
		t.Errorf("clients = %d, want 3", n)
	}
}

type recordingSender struct {
	to, body string
	err      error
}

func (s *recordingSender) Send(_ context.Context, to, body string) error {
	s.to, s.body = to, body
	return s.err
}

func TestTicketStatusPropagation(t *testing.T) {
	f := newLedgerFixture(t)
	sender := &recordingSender{}
	f.tickets.Sender = sender
	ctx := context.Background()
	rc := f.create(t, TicketInput{ClientName: "Alice", ClientPhone: "06 12 34 56 78", Lines: []LineInput{{Description: "a"}, {Description: "b", Quantity: 2}}})

	ch, err := f.tickets.SetTicketStatus(ctx, rc.Ticket.ID, models.StatusDone)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if ch.Link == nil || ch.Link.Number.International != "+33612345678" {
		t.Fatalf("expected link, got %+v", ch.Link)
	}
	if !ch.Sent || sender.to != "+33612345678" || ch.Warning != "" {
		t.Errorf("expected message sent, got %+v / %q", ch, sender.to)
	}
	tk, _ := f.tickets.Get(ctx, rc.Ticket.ID)
	if tk.Status != models.StatusDone || !tk.Done() {
		t.Fatalf("ticket not done: %+v", tk)
	}

	if _, err := f.tickets.SetTicketStatus(ctx, rc.Ticket.ID, models.StatusInProgress); err != nil {
		t.Fatalf("set status back: %v", err)
	}
	tk, _ = f.tickets.Get(ctx, rc.Ticket.ID)
	for _, r := range tk.Retouches {
		if r.Status != models.StatusInProgress {
			t.Fatalf("retouche %d status = %q", r.ID, r.Status)
		}
	}

	if _, err := f.tickets.SetTicketStatus(ctx, rc.Ticket.ID, "Perdu"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestStatusNotificationFailuresAreWarnings(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	noPhone := f.create(t, TicketInput{ClientName: "Walk-in", Lines: []LineInput{{Description: "a"}}})
	ch, err := f.tickets.SetTicketStatus(ctx, noPhone.Ticket.ID, models.StatusDone)
	if err != nil {
		t.Fatalf("set status: %v", err)
	}
	if ch.Warning != "notification_no_phone" || ch.Link != nil {
		t.Errorf("expected no_phone warning, got %+v", ch)
	}

	f.tickets.Sender = &recordingSender{err: errors.New("boom")}
	withPhone := f.create(t, TicketInput{ClientName: "Alice", ClientPhone: "0612345678", Lines: []LineInput{{Description: "a"}}})
	ch, err = f.tickets.SetRetoucheStatus(ctx, withPhone.Retouches[0].ID, models.StatusDone)
	if err != nil {
		t.Fatalf("set retouche status: %v", err)
	}
	if ch.Warning != "notification_failed" || ch.Link == nil || ch.Sent {
		t.Errorf("expected failed warning with link, got %+v", ch)
	}
	tk, _ := f.tickets.Get(ctx, withPhone.Ticket.ID)
	if tk.Retouches[0].Status != models.StatusDone {
		t.Errorf("status change must stand")
	}
}

func TestEditTicketPartialUpdate(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	rc := f.create(t, TicketInput{ClientName: "Alice", Comment: "urgent", Lines: []LineInput{
		{PricedItemID: &f.item.ID},
		{Description: "Reprise", Price: "5"},
	}})
	first, second := rc.Retouches[0], rc.Retouches[1]

	v, err := f.tickets.Edit(ctx, rc.Ticket.ID, TicketEdit{
		Paid:    ptr(true),
		DueDate: ptr("2026-04-01"),
		Lines: map[uint]RetoucheEdit{
			first.ID:  {Price: ptr("abc"), Status: ptr(models.StatusDone)},
			second.ID: {Description: ptr("Reprise manche"), PricedItemID: ptr("")},
		},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(v) != 1 {
		t.Fatalf("expected one violation, got %v", v)
	}

	tk, _ := f.tickets.Get(ctx, rc.Ticket.ID)
	if !tk.Paid || tk.Comment != "urgent" || tk.DueDate.Format(models.DateLayout) != "2026-04-01" {
		t.Errorf("ticket fields: %+v", tk)
	}
	r1, r2 := tk.Retouches[0], tk.Retouches[1]
	if r1.Price.Decimal.StringFixed(2) != "9.00" || r1.Status != models.StatusDone {
		t.Errorf("line 1: price %s status %q", r1.Price.Decimal, r1.Status)
	}
	if r2.Description != "Reprise manche" || r2.PricedItemID != nil || r2.Price.Decimal.StringFixed(2) != "5.00" {
		t.Errorf("line 2: %+v", r2)
	}

	if _, err := f.tickets.Edit(ctx, 999, TicketEdit{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTicketCascades(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	rc := f.create(t, TicketInput{ClientName: "Alice", Lines: []LineInput{{Description: "a"}, {Description: "b"}}})
	if err := f.tickets.Delete(ctx, rc.Ticket.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var n int64
	f.db.Model(&models.Retouche{}).Where("ticket_id = ?", rc.Ticket.ID).Count(&n)
	if n != 0 {
		t.Fatalf("retouches left: %d", n)
	}
	if err := f.tickets.Delete(ctx, rc.Ticket.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRetoucheDoesNotRestock(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	rc := f.create(t, TicketInput{ClientName: "Alice", Lines: []LineInput{{PricedItemID: &f.item.ID}}})
	ticketID, err := f.tickets.DeleteRetouche(ctx, rc.Retouches[0].ID)
	if err != nil || ticketID != rc.Ticket.ID {
		t.Fatalf("delete retouche: %d %v", ticketID, err)
	}
	if q := quantity(t, f.db, f.thread.ID); q != 0 {
		t.Fatalf("quantity = %d, want 0", q)
	}
}

func TestConvertPricesToHTRunsOnce(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	rc := f.create(t, TicketInput{ClientName: "Alice", Lines: []LineInput{
		{Price: "12", Description: "a"},
		{Description: "gratuit"},
	}})
	if err := f.db.Model(&models.Retouche{}).Where("id = ?", rc.Retouches[1].ID).
		Update("price", decimal.NullDecimal{}).Error; err != nil {
		t.Fatalf("null price: %v", err)
	}

	res, err := f.tickets.ConvertPricesToHT(ctx)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if res.Retouches != 1 || res.CatalogItems != 1 {
		t.Fatalf("unexpected counts %+v", res)
	}
	tk, _ := f.tickets.Get(ctx, rc.Ticket.ID)
	if got := tk.Retouches[0].Price.Decimal.StringFixed(2); got != "10.00" {
		t.Errorf("converted price = %s, want 10.00", got)
	}
	if tk.Retouches[1].Price.Valid {
		t.Errorf("null price must stay null")
	}
	item, _ := f.catalog.GetItem(ctx, f.item.ID)
	if got := item.Price.Decimal.StringFixed(2); got != "7.50" {
		t.Errorf("catalog price = %s, want 7.50", got)
	}

	if _, err := f.tickets.ConvertPricesToHT(ctx); !errors.Is(err, ErrConversionAlreadyApplied) {
		t.Fatalf("second run: expected ErrConversionAlreadyApplied, got %v", err)
	}
	tk, _ = f.tickets.Get(ctx, rc.Ticket.ID)
	if got := tk.Retouches[0].Price.Decimal.StringFixed(2); got != "10.00" {
		t.Errorf("second run changed price to %s", got)
	}
}

func TestHT(t *testing.T) {
	rate := decimal.RequireFromString("0.20")
	cases := map[string]string{"12": "10.00", "9.99": "8.33", "100": "83.33", "0.01": "0.01"}
	for in, want := range cases {
		if got := HT(decimal.RequireFromString(in), rate).StringFixed(2); got != want {
			t.Errorf("HT(%s) = %s, want %s", in, got, want)
		}
	}
	// converting twice is not the same as converting once
	once := HT(decimal.RequireFromString("12"), rate)
	if HT(once, rate).Equal(once) {
		t.Errorf("second conversion must differ")
	}
}
