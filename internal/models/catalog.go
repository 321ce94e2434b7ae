package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is the top level of the price grid (Pantalon, Robe & Jupe, ...).
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `gorm:"size:100;uniqueIndex;not null" json:"name"`

	Subcategories []Subcategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"subcategories,omitempty"`
}

// Subcategory groups priced items inside a category (Ourlet, Fermeture, ...).
type Subcategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name       string    `gorm:"size:100;not null" json:"name"`
	CategoryID uint      `gorm:"index;not null" json:"category_id"`
	Category   *Category `gorm:"constraint:OnDelete:CASCADE" json:"category,omitempty"`

	Items []PricedItem `gorm:"foreignKey:SubcategoryID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// PricedItem is a standard alteration service with its list price.
// Price stays NULL for services quoted case by case.
type PricedItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name          string              `gorm:"size:200;not null" json:"name"`
	Price         decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"price"`
	SubcategoryID uint                `gorm:"index;not null" json:"subcategory_id"`
	Subcategory   *Subcategory        `gorm:"constraint:OnDelete:CASCADE" json:"subcategory,omitempty"`

	Supplies []SupplyItem `gorm:"many2many:priced_item_supplies;constraint:OnDelete:CASCADE" json:"supplies,omitempty"`
}

// SupplyIDs returns the ids of the linked supplies.
func (p *PricedItem) SupplyIDs() []uint {
	ids := make([]uint, 0, len(p.Supplies))
	for _, s := range p.Supplies {
		ids = append(ids, s.ID)
	}
	return ids
}

// FullName returns "Category / Subcategory / Item" when the parents are loaded.
func (p *PricedItem) FullName() string {
	name := p.Name
	if p.Subcategory != nil {
		name = p.Subcategory.Name + " / " + name
		if p.Subcategory.Category != nil {
			name = p.Subcategory.Category.Name + " / " + name
		}
	}
	return name
}

// SupplyItem ("fourniture") is a consumable tracked in stock.
// Quantity can be negative after a manual correction.
type SupplyItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Reference string `gorm:"size:50;index" json:"reference,omitempty"`
	Name      string `gorm:"size:200;not null" json:"name"`
	Color     string `gorm:"size:50" json:"color,omitempty"`
	Quantity  int    `gorm:"not null;default:0" json:"quantity"`
}

// Movement reasons.
const (
	MovementRetouche    = "retouche"
	MovementLinkAdded   = "link_added"
	MovementLinkRemoved = "link_removed"
)

// StockMovement records every automatic change of a supply quantity.
type StockMovement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SupplyItemID uint        `gorm:"index;not null" json:"supply_item_id"`
	SupplyItem   *SupplyItem `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Delta        int         `gorm:"not null" json:"delta"`
	Before       int         `gorm:"column:qty_before;not null" json:"before"`
	After        int         `gorm:"column:qty_after;not null" json:"after"`
	Reason       string      `gorm:"size:30;not null" json:"reason"`
	TicketID     *uint       `gorm:"index" json:"ticket_id,omitempty"`
	PricedItemID *uint       `json:"priced_item_id,omitempty"`
}
