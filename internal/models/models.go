package models

import "time"

// DateLayout is the wire and form format of calendar days.
const DateLayout = "2006-01-02"

// All lists every persisted model in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&Category{}, &Subcategory{}, &SupplyItem{}, &PricedItem{}, &StockMovement{},
		&Client{}, &Ticket{}, &Retouche{},
		&Employee{}, &PresenceRecord{}, &LeaveRecord{}, &Shift{},
		&MaintenanceRun{},
	}
}

// Day truncates t to midnight UTC so stored dates compare consistently.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a "2006-01-02" string as a UTC day.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
