package models

import "time"

// Employee is a staff member shown on the planning.
type Employee struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name  string `gorm:"size:100;not null" json:"name"`
	Role  string `gorm:"size:50;not null" json:"role"`
	Color string `gorm:"size:7;not null" json:"color"`

	Presences []PresenceRecord `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE" json:"-"`
	Leaves    []LeaveRecord    `gorm:"foreignKey:EmployeeID;constraint:OnDelete:CASCADE" json:"-"`
	Shifts    []Shift          `gorm:"foreignKey:EmployeeID;constraint:OnDelete:SET NULL" json:"-"`
}

// PresenceRecord marks one employee on one day.
type PresenceRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EmployeeID uint      `gorm:"uniqueIndex:idx_presence_day;not null" json:"employee_id"`
	Employee   *Employee `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Date       time.Time `gorm:"type:date;uniqueIndex:idx_presence_day;not null" json:"date"`
	Present    bool      `gorm:"not null;default:true" json:"present"`
}

// LeaveRecord is an inclusive date range of absence.
type LeaveRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EmployeeID uint      `gorm:"index;not null" json:"employee_id"`
	Employee   *Employee `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Start      time.Time `gorm:"column:start_date;type:date;not null" json:"start"`
	End        time.Time `gorm:"column:end_date;type:date;not null" json:"end"`
	Reason     string    `gorm:"size:200" json:"reason,omitempty"`
}

// Covers reports whether day falls inside the leave.
func (l *LeaveRecord) Covers(day time.Time) bool {
	d := Day(day)
	return !d.Before(Day(l.Start)) && !d.After(Day(l.End))
}

// Shift is a planned work slot. Times are "HH:MM".
type Shift struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	EmployeeID *uint     `gorm:"index" json:"employee_id,omitempty"`
	Employee   *Employee `gorm:"constraint:OnDelete:SET NULL" json:"employee,omitempty"`
	Date       time.Time `gorm:"type:date;index;not null" json:"date"`
	StartTime  string    `gorm:"size:5;not null" json:"start_time"`
	EndTime    string    `gorm:"size:5;not null" json:"end_time"`
	Task       string    `gorm:"size:100" json:"task,omitempty"`
}
