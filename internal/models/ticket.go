package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Work status shared by tickets and retouches.
const (
	StatusInProgress = "En cours"
	StatusDone       = "Terminée"
)

// Client is a shop customer. Phone is the dedup key when present;
// walk-in clients without a phone keep a NULL phone and stay distinct rows.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name  string  `gorm:"size:200;not null" json:"name"`
	Phone *string `gorm:"size:30;uniqueIndex" json:"phone,omitempty"`

	Tickets   []Ticket   `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"tickets,omitempty"`
	Retouches []Retouche `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"-"`
}

// PhoneNumber returns the stored phone or "".
func (c *Client) PhoneNumber() string {
	if c == nil || c.Phone == nil {
		return ""
	}
	return *c.Phone
}

// Ticket is one customer order. It owns the due date of all its retouches.
type Ticket struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ClientID uint       `gorm:"index;not null" json:"client_id"`
	Client   *Client    `gorm:"constraint:OnDelete:CASCADE" json:"client,omitempty"`
	DueDate  *time.Time `gorm:"type:date;index" json:"due_date,omitempty"`
	Comment  string     `gorm:"type:text" json:"comment,omitempty"`
	Paid     bool       `gorm:"not null;default:false" json:"paid"`
	Status   string     `gorm:"size:20;not null;default:'En cours'" json:"status"`

	Retouches []Retouche `gorm:"foreignKey:TicketID;constraint:OnDelete:CASCADE" json:"retouches,omitempty"`
}

// Subtotal is the sum of the retouche snapshot prices. NULL prices count as zero.
func (t *Ticket) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range t.Retouches {
		if r.Price.Valid {
			sum = sum.Add(r.Price.Decimal)
		}
	}
	return sum
}

// Totals derives pre-tax, tax and tax-inclusive amounts for the given rate.
func (t *Ticket) Totals(rate decimal.Decimal) Totals {
	return NewTotals(t.Subtotal(), rate)
}

// Done reports whether every retouche is finished. A ticket without lines is not done.
func (t *Ticket) Done() bool {
	if len(t.Retouches) == 0 {
		return false
	}
	for _, r := range t.Retouches {
		if r.Status != StatusDone {
			return false
		}
	}
	return true
}

// Retouche is one billable alteration line of a ticket.
// Price is a snapshot taken at creation and only changes through an explicit edit.
type Retouche struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TicketID     uint                `gorm:"index;not null" json:"ticket_id"`
	Ticket       *Ticket             `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ClientID     uint                `gorm:"index;not null" json:"client_id"`
	Client       *Client             `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PricedItemID *uint               `gorm:"index" json:"priced_item_id,omitempty"`
	PricedItem   *PricedItem         `gorm:"constraint:OnDelete:SET NULL" json:"priced_item,omitempty"`
	Price        decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"price"`
	Description  string              `gorm:"type:text" json:"description,omitempty"`
	Status       string              `gorm:"size:20;not null;default:'En cours'" json:"status"`
	TriedInShop  bool                `gorm:"not null;default:false" json:"tried_in_shop"`
}

// Label is the catalog item name, or the description for free lines.
func (r *Retouche) Label() string {
	if r.PricedItem != nil {
		return r.PricedItem.Name
	}
	if r.Description != "" {
		return r.Description
	}
	return "Retouche"
}

// Totals holds the three amounts printed on a receipt.
type Totals struct {
	PreTax decimal.Decimal `json:"total_ht"`
	Tax    decimal.Decimal `json:"montant_tva"`
	Total  decimal.Decimal `json:"total_ttc"`
}

// NewTotals computes tax = preTax*rate and total = preTax+tax. Rounding is left to display.
func NewTotals(preTax, rate decimal.Decimal) Totals {
	tax := preTax.Mul(rate)
	return Totals{PreTax: preTax, Tax: tax, Total: preTax.Add(tax)}
}

// MaintenanceRun marks a one-shot data migration as applied.
type MaintenanceRun struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	AppliedAt time.Time `gorm:"not null" json:"applied_at"`
	Affected  int       `json:"affected"`
}
