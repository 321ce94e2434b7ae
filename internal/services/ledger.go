package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/config"
	"github.com/diewo77/atelier/internal/metrics"
	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/notify"
	"github.com/diewo77/atelier/internal/validation"
)

// TicketService is the order-entry and billing ledger.
type TicketService struct {
	DB   *gorm.DB
	Shop config.ShopConfig
	Log  *zap.Logger
	// Sender is optional; when set, ready messages are also delivered after commit.
	Sender notify.Sender
}

func NewTicketService(db *gorm.DB, shop config.ShopConfig, log *zap.Logger) *TicketService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TicketService{DB: db, Shop: shop, Log: log}
}

// LineInput is one position of the parallel line arrays of the ticket form.
type LineInput struct {
	PricedItemID *uint
	Price        string // optional override, "12,50" or "12.50"
	Description  string
	Quantity     int // units to create; zero means one, negative is rejected
	TriedInShop  bool
}

func (l LineInput) empty() bool {
	return l.PricedItemID == nil && strings.TrimSpace(l.Price) == "" && strings.TrimSpace(l.Description) == ""
}

// TicketInput is a full ticket creation request.
type TicketInput struct {
	ClientName  string
	ClientPhone string
	DueDate     *time.Time
	Comment     string
	Paid        bool
	Lines       []LineInput
}

// Receipt is the printable projection of a ticket.
type Receipt struct {
	Client    models.Client     `json:"client"`
	Ticket    models.Ticket     `json:"ticket"`
	Retouches []models.Retouche `json:"retouches"`
	Totals    models.Totals     `json:"totals"`
	Shop      config.ShopConfig `json:"-"`
}

func (s *TicketService) rate() decimal.Decimal { return s.Shop.TaxRate() }

// linePrice picks the override when it is a positive number, else the catalog price, else zero.
func linePrice(override string, item *models.PricedItem) decimal.Decimal {
	if d, err := validation.ParseDecimal(override); err == nil && d.IsPositive() {
		return d.Round(2)
	}
	if item != nil && item.Price.Valid {
		return item.Price.Decimal
	}
	return decimal.Zero
}

// resolveClient reuses the client with the exact same phone (renaming it when the
// submitted name differs) or creates a new one. Clients without phone are never merged.
func resolveClient(tx *gorm.DB, name, phone string) (*models.Client, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if phone != "" {
		var c models.Client
		err := tx.Where("phone = ?", phone).First(&c).Error
		if err == nil {
			if name != "" && name != c.Name {
				if err := tx.Model(&models.Client{}).Where("id = ?", c.ID).Update("name", name).Error; err != nil {
					return nil, err
				}
				c.Name = name
			}
			return &c, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	c := models.Client{Name: name}
	if phone != "" {
		c.Phone = &phone
	}
	if err := tx.Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// Create registers a client (deduplicated by phone), a ticket and its retouche lines in a
// single transaction. Each line is expanded by its quantity; every unit consumes one of each
// supply linked to the catalog item.
func (s *TicketService) Create(ctx context.Context, in TicketInput) (*Receipt, error) {
	lines := make([]LineInput, 0, len(in.Lines))
	for _, l := range in.Lines {
		if !l.empty() {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	for _, l := range lines {
		if l.Quantity < 0 {
			return nil, ErrInvalidQuantity
		}
	}

	var ticket models.Ticket
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := resolveClient(tx, in.ClientName, in.ClientPhone)
		if err != nil {
			return err
		}
		ticket = models.Ticket{
			ClientID: client.ID,
			Comment:  strings.TrimSpace(in.Comment),
			Paid:     in.Paid,
			Status:   models.StatusInProgress,
		}
		if in.DueDate != nil {
			d := models.Day(*in.DueDate)
			ticket.DueDate = &d
		}
		if err := tx.Create(&ticket).Error; err != nil {
			return err
		}

		for i, l := range lines {
			var item *models.PricedItem
			if l.PricedItemID != nil {
				var it models.PricedItem
				if err := tx.Preload("Supplies").First(&it, *l.PricedItemID).Error; err != nil {
					return fmt.Errorf("line %d: priced item %d: %w", i+1, *l.PricedItemID, notFound(err))
				}
				item = &it
			}
			price := linePrice(l.Price, item)
			qty := max(l.Quantity, 1)
			for u := 0; u < qty; u++ {
				if item != nil {
					for _, sup := range item.Supplies {
						if _, err := consume(tx, sup.ID, stockChange{reason: models.MovementRetouche, ticketID: &ticket.ID, itemID: &item.ID}, s.Log); err != nil {
							return err
						}
					}
				}
				r := models.Retouche{
					TicketID:     ticket.ID,
					ClientID:     client.ID,
					PricedItemID: l.PricedItemID,
					Price:        decimal.NewNullDecimal(price),
					Description:  strings.TrimSpace(l.Description),
					Status:       models.StatusInProgress,
					TriedInShop:  l.TriedInShop,
				}
				if err := tx.Create(&r).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rc, err := s.Receipt(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	metrics.TicketsCreated.Inc()
	metrics.RetouchesCreated.Add(float64(len(rc.Retouches)))
	s.Log.Info("ticket created",
		zap.Uint("ticket_id", ticket.ID), zap.Uint("client_id", rc.Client.ID),
		zap.Int("lines", len(rc.Retouches)), zap.String("total_ttc", rc.Totals.Total.StringFixed(2)))
	return rc, nil
}

// Get loads a ticket with its client and lines.
func (s *TicketService) Get(ctx context.Context, id uint) (*models.Ticket, error) {
	var t models.Ticket
	err := s.DB.WithContext(ctx).
		Preload("Client").
		Preload("Retouches", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Retouches.PricedItem.Subcategory.Category").
		First(&t, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// Receipt rebuilds the receipt of an existing ticket; totals are always derived from the lines.
func (s *TicketService) Receipt(ctx context.Context, id uint) (*Receipt, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rc := &Receipt{Ticket: *t, Retouches: t.Retouches, Totals: t.Totals(s.rate()), Shop: s.Shop}
	if t.Client != nil {
		rc.Client = *t.Client
	}
	return rc, nil
}

// TicketFilter narrows the ticket list.
type TicketFilter struct {
	Status   string
	ClientID uint
	Query    string
	Limit    int
}

func (s *TicketService) List(ctx context.Context, f TicketFilter) ([]models.Ticket, error) {
	q := s.DB.WithContext(ctx).Model(&models.Ticket{}).
		Preload("Client").
		Preload("Retouches.PricedItem")
	if f.Status != "" {
		q = q.Where("tickets.status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("tickets.client_id = ?", f.ClientID)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Joins("JOIN clients ON clients.id = tickets.client_id").
			Where("lower(clients.name) LIKE ? OR clients.phone LIKE ?", like, like)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var tickets []models.Ticket
	err := q.Order("tickets.id desc").Limit(limit).Find(&tickets).Error
	return tickets, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Edit
// ─────────────────────────────────────────────────────────────────────────────

// RetoucheEdit carries the submitted fields of one line; nil means "not submitted".
type RetoucheEdit struct {
	Price        *string
	Status       *string
	Description  *string
	PricedItemID *string
	TriedInShop  *bool
}

// TicketEdit carries the submitted fields of a ticket edit; nil means "not submitted".
type TicketEdit struct {
	Paid    *bool
	DueDate *string
	Comment *string
	Lines   map[uint]RetoucheEdit
}

// Edit applies a partial update. Every submitted field is applied independently: a field that
// fails validation is reported and skipped while the other fields are still saved.
func (s *TicketService) Edit(ctx context.Context, id uint, e TicketEdit) (validation.Violations, error) {
	v := validation.Violations{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Ticket
		if err := tx.Preload("Retouches").First(&t, id).Error; err != nil {
			return notFound(err)
		}
		upd := map[string]any{}
		if e.Paid != nil {
			upd["paid"] = *e.Paid
		}
		if e.Comment != nil {
			upd["comment"] = strings.TrimSpace(*e.Comment)
		}
		if e.DueDate != nil {
			raw := strings.TrimSpace(*e.DueDate)
			if raw == "" {
				upd["due_date"] = nil
			} else if d, err := models.ParseDay(raw); err == nil {
				upd["due_date"] = d
			} else {
				v["date_echeance"] = "invalid_date"
			}
		}
		if len(upd) > 0 {
			if err := tx.Model(&models.Ticket{}).Where("id = ?", t.ID).Updates(upd).Error; err != nil {
				return err
			}
		}

		for _, r := range t.Retouches {
			le, ok := e.Lines[r.ID]
			if !ok {
				continue
			}
			lu := map[string]any{}
			key := func(f string) string { return f + "_" + strconv.FormatUint(uint64(r.ID), 10) }
			if le.Price != nil {
				if strings.TrimSpace(*le.Price) == "" {
					lu["price"] = decimal.NullDecimal{}
				} else if d, err := validation.ParseDecimal(*le.Price); err == nil && !d.IsNegative() {
					lu["price"] = decimal.NewNullDecimal(d.Round(2))
				} else {
					v[key("prix")] = "invalid_price"
				}
			}
			if le.Status != nil {
				if ValidStatus(*le.Status) {
					lu["status"] = *le.Status
				} else {
					v[key("statut")] = "invalid_status"
				}
			}
			if le.Description != nil {
				lu["description"] = strings.TrimSpace(*le.Description)
			}
			if le.TriedInShop != nil {
				lu["tried_in_shop"] = *le.TriedInShop
			}
			if le.PricedItemID != nil {
				raw := strings.TrimSpace(*le.PricedItemID)
				if raw == "" {
					lu["priced_item_id"] = nil
				} else if n, err := strconv.ParseUint(raw, 10, 64); err == nil {
					var it models.PricedItem
					if err := tx.Select("id").First(&it, uint(n)).Error; err == nil {
						lu["priced_item_id"] = it.ID
					} else if errors.Is(err, gorm.ErrRecordNotFound) {
						v[key("detail")] = "not_found"
					} else {
						return err
					}
				} else {
					v[key("detail")] = "invalid_id"
				}
			}
			if len(lu) > 0 {
				if err := tx.Model(&models.Retouche{}).Where("id = ?", r.ID).Updates(lu).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Status
// ─────────────────────────────────────────────────────────────────────────────

// StatusChange is the outcome of a status transition. Warning is set when the
// ready message could not be prepared or delivered; the status change itself stands.
type StatusChange struct {
	TicketID uint          `json:"ticket_id"`
	Status   string        `json:"status"`
	Client   models.Client `json:"client"`
	Link     *notify.Link  `json:"link,omitempty"`
	Sent     bool          `json:"sent"`
	Warning  string        `json:"warning,omitempty"`
}

// SetTicketStatus sets the ticket status and propagates it to every line in the same transaction.
func (s *TicketService) SetTicketStatus(ctx context.Context, id uint, status string) (*StatusChange, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	var t models.Ticket
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Client").First(&t, id).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Model(&models.Ticket{}).Where("id = ?", t.ID).Update("status", status).Error; err != nil {
			return err
		}
		return tx.Model(&models.Retouche{}).Where("ticket_id = ?", t.ID).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return s.afterStatus(ctx, t.ID, t.Client, status), nil
}

// SetRetoucheStatus changes the status of a single line.
func (s *TicketService) SetRetoucheStatus(ctx context.Context, id uint, status string) (*StatusChange, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	var r models.Retouche
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Client").First(&r, id).Error; err != nil {
			return notFound(err)
		}
		return tx.Model(&models.Retouche{}).Where("id = ?", r.ID).Update("status", status).Error
	})
	if err != nil {
		return nil, err
	}
	return s.afterStatus(ctx, r.TicketID, r.Client, status), nil
}

// afterStatus runs once the transaction is committed. Nothing here can undo the status change.
func (s *TicketService) afterStatus(ctx context.Context, ticketID uint, client *models.Client, status string) *StatusChange {
	ch := &StatusChange{TicketID: ticketID, Status: status}
	if client != nil {
		ch.Client = *client
	}
	if status != models.StatusDone {
		return ch
	}
	link, err := notify.Compose(client.PhoneNumber(), s.Shop.CountryCode, notify.ReadyMessage(s.Shop))
	if err != nil {
		metrics.Notifications.WithLabelValues("no_phone").Inc()
		ch.Warning = "notification_no_phone"
		s.Log.Warn("ready message not prepared", zap.Uint("ticket_id", ticketID), zap.Error(err))
		return ch
	}
	ch.Link = link
	metrics.Notifications.WithLabelValues("link").Inc()
	if s.Sender == nil {
		return ch
	}
	if err := s.Sender.Send(ctx, link.Number.International, link.Body); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		ch.Warning = "notification_failed"
		s.Log.Warn("ready message not sent", zap.Uint("ticket_id", ticketID), zap.Error(err))
		return ch
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	ch.Sent = true
	return ch
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────────────────

// Delete removes a ticket; its lines go with it through the storage cascade. Stock is not restored.
func (s *TicketService) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Ticket{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRetouche removes one line and returns its ticket id.
func (s *TicketService) DeleteRetouche(ctx context.Context, id uint) (uint, error) {
	var r models.Retouche
	if err := s.DB.WithContext(ctx).Select("id", "ticket_id").First(&r, id).Error; err != nil {
		return 0, notFound(err)
	}
	if err := s.DB.WithContext(ctx).Delete(&models.Retouche{}, r.ID).Error; err != nil {
		return 0, err
	}
	return r.TicketID, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Price conversion
// ─────────────────────────────────────────────────────────────────────────────

// ConversionName identifies the tax-inclusive to tax-exclusive price migration.
const ConversionName = "prices_ttc_to_ht"

// ConversionResult counts converted rows.
type ConversionResult struct {
	Retouches    int `json:"retouches"`
	CatalogItems int `json:"catalog_items"`
}

// HT converts a tax-inclusive price to tax-exclusive, rounded to the cent.
func HT(ttc, rate decimal.Decimal) decimal.Decimal {
	return ttc.Div(decimal.NewFromInt(1).Add(rate)).Round(2)
}

// ConvertPricesToHT divides every positive retouche and catalog price by (1 + rate).
// It is a one-time migration: the run is recorded and a second call fails with
// ErrConversionAlreadyApplied without touching any price.
func (s *TicketService) ConvertPricesToHT(ctx context.Context) (*ConversionResult, error) {
	rate := s.rate()
	res := &ConversionResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run models.MaintenanceRun
		err := tx.Where("name = ?", ConversionName).First(&run).Error
		if err == nil {
			return ErrConversionAlreadyApplied
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var lines []models.Retouche
		if err := tx.Select("id", "price").Where("price > 0").Find(&lines).Error; err != nil {
			return err
		}
		for _, l := range lines {
			if !l.Price.Valid || !l.Price.Decimal.IsPositive() {
				continue
			}
			ht := decimal.NewNullDecimal(HT(l.Price.Decimal, rate))
			if err := tx.Model(&models.Retouche{}).Where("id = ?", l.ID).Update("price", ht).Error; err != nil {
				return err
			}
			res.Retouches++
		}

		var items []models.PricedItem
		if err := tx.Select("id", "price").Where("price > 0").Find(&items).Error; err != nil {
			return err
		}
		for _, it := range items {
			if !it.Price.Valid || !it.Price.Decimal.IsPositive() {
				continue
			}
			ht := decimal.NewNullDecimal(HT(it.Price.Decimal, rate))
			if err := tx.Model(&models.PricedItem{}).Where("id = ?", it.ID).Update("price", ht).Error; err != nil {
				return err
			}
			res.CatalogItems++
		}

		return tx.Create(&models.MaintenanceRun{
			Name:      ConversionName,
			AppliedAt: time.Now(),
			Affected:  res.Retouches + res.CatalogItems,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("prices converted to HT",
		zap.Int("retouches", res.Retouches), zap.Int("catalog_items", res.CatalogItems), zap.String("rate", rate.String()))
	return res, nil
}
