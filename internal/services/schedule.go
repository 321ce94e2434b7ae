package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/validation"
)

// ScheduleService manages staff, shifts, presence and leave.
type ScheduleService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewScheduleService(db *gorm.DB, log *zap.Logger) *ScheduleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScheduleService{DB: db, Log: log}
}

// ─────────────────────────────────────────────────────────────────────────────
// Employees
// ─────────────────────────────────────────────────────────────────────────────

type EmployeeInput struct {
	Name  string
	Role  string
	Color string
}

func (in EmployeeInput) validate() (EmployeeInput, error) {
	out := EmployeeInput{
		Name:  strings.TrimSpace(in.Name),
		Role:  strings.TrimSpace(in.Role),
		Color: strings.ToLower(strings.TrimSpace(in.Color)),
	}
	v := validation.Violations{}
	validation.Required("name", out.Name, v)
	validation.Required("role", out.Role, v)
	validation.HexColor("color", out.Color, v)
	return out, invalid(v)
}

func (s *ScheduleService) Employees(ctx context.Context) ([]models.Employee, error) {
	var emps []models.Employee
	err := s.DB.WithContext(ctx).Order("name asc").Find(&emps).Error
	return emps, err
}

func (s *ScheduleService) GetEmployee(ctx context.Context, id uint) (*models.Employee, error) {
	var e models.Employee
	if err := s.DB.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (s *ScheduleService) CreateEmployee(ctx context.Context, in EmployeeInput) (*models.Employee, error) {
	in, err := in.validate()
	if err != nil {
		return nil, err
	}
	e := models.Employee{Name: in.Name, Role: in.Role, Color: in.Color}
	if err := s.DB.WithContext(ctx).Create(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *ScheduleService) UpdateEmployee(ctx context.Context, id uint, in EmployeeInput) error {
	in, err := in.validate()
	if err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.Employee{}).Where("id = ?", id).
		Updates(map[string]any{"name": in.Name, "role": in.Role, "color": in.Color})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEmployee removes an employee with their presence and leave records.
// Their shifts stay on the planning without assignee.
func (s *ScheduleService) DeleteEmployee(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Employee{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Shifts
// ─────────────────────────────────────────────────────────────────────────────

type ShiftInput struct {
	EmployeeID *uint
	Date       string
	StartTime  string
	EndTime    string
	Task       string
}

func (s *ScheduleService) validateShift(tx *gorm.DB, in ShiftInput) (models.Shift, error) {
	v := validation.Violations{}
	date := strings.TrimSpace(in.Date)
	start := strings.TrimSpace(in.StartTime)
	end := strings.TrimSpace(in.EndTime)
	validation.Required("date", date, v)
	validation.Date("date", date, v)
	validation.Clock("start_time", start, v)
	validation.Clock("end_time", end, v)
	if _, bad := v["start_time"]; !bad {
		if _, bad := v["end_time"]; !bad && end <= start {
			v["end_time"] = "must_be_after_start"
		}
	}
	if in.EmployeeID != nil {
		var e models.Employee
		if err := tx.Select("id").First(&e, *in.EmployeeID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Shift{}, err
			}
			v["employee_id"] = "not_found"
		}
	}
	if err := invalid(v); err != nil {
		return models.Shift{}, err
	}
	day, _ := models.ParseDay(date)
	return models.Shift{
		EmployeeID: in.EmployeeID,
		Date:       day,
		StartTime:  start,
		EndTime:    end,
		Task:       strings.TrimSpace(in.Task),
	}, nil
}

// Shifts lists shifts in [from, to] with their employee.
func (s *ScheduleService) Shifts(ctx context.Context, from, to time.Time) ([]models.Shift, error) {
	var shifts []models.Shift
	err := s.DB.WithContext(ctx).Preload("Employee").
		Where("date >= ? AND date <= ?", models.Day(from), models.Day(to)).
		Order("date asc, start_time asc").
		Find(&shifts).Error
	return shifts, err
}

func (s *ScheduleService) CreateShift(ctx context.Context, in ShiftInput) (*models.Shift, error) {
	db := s.DB.WithContext(ctx)
	sh, err := s.validateShift(db, in)
	if err != nil {
		return nil, err
	}
	if err := db.Create(&sh).Error; err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *ScheduleService) UpdateShift(ctx context.Context, id uint, in ShiftInput) error {
	db := s.DB.WithContext(ctx)
	sh, err := s.validateShift(db, in)
	if err != nil {
		return err
	}
	res := db.Model(&models.Shift{}).Where("id = ?", id).Updates(map[string]any{
		"employee_id": sh.EmployeeID,
		"date":        sh.Date,
		"start_time":  sh.StartTime,
		"end_time":    sh.EndTime,
		"task":        sh.Task,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ScheduleService) DeleteShift(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Shift{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Presence & leave
// ─────────────────────────────────────────────────────────────────────────────

const (
	AttendancePresence = "presence"
	AttendanceLeave    = "leave"
)

// AttendanceInput records presence days or a leave over an inclusive date range.
type AttendanceInput struct {
	EmployeeID uint
	Kind       string
	Start      string
	End        string // defaults to Start
	Reason     string
}

// RecordAttendance replaces whatever was recorded for the employee over the range:
// presence days inside it are removed, overlapping leaves are removed, then the new
// presence days (one per day) or the single leave are inserted.
func (s *ScheduleService) RecordAttendance(ctx context.Context, in AttendanceInput) error {
	v := validation.Violations{}
	start := strings.TrimSpace(in.Start)
	end := strings.TrimSpace(in.End)
	if end == "" {
		end = start
	}
	validation.Required("start", start, v)
	validation.Date("start", start, v)
	validation.Date("end", end, v)
	if in.Kind != AttendancePresence && in.Kind != AttendanceLeave {
		v["type"] = "invalid_type"
	}
	if err := invalid(v); err != nil {
		return err
	}
	from, _ := models.ParseDay(start)
	to, _ := models.ParseDay(end)
	if to.Before(from) {
		return invalid(validation.Violations{"end": "must_be_after_start"})
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e models.Employee
		if err := tx.Select("id").First(&e, in.EmployeeID).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Where("employee_id = ? AND date >= ? AND date <= ?", e.ID, from, to).
			Delete(&models.PresenceRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("employee_id = ? AND start_date <= ? AND end_date >= ?", e.ID, to, from).
			Delete(&models.LeaveRecord{}).Error; err != nil {
			return err
		}
		if in.Kind == AttendanceLeave {
			return tx.Create(&models.LeaveRecord{
				EmployeeID: e.ID,
				Start:      from,
				End:        to,
				Reason:     strings.TrimSpace(in.Reason),
			}).Error
		}
		var days []models.PresenceRecord
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			days = append(days, models.PresenceRecord{EmployeeID: e.ID, Date: d, Present: true})
		}
		return tx.Create(&days).Error
	})
}

// Presences lists presence days in [from, to]; employeeID 0 means everyone.
func (s *ScheduleService) Presences(ctx context.Context, employeeID uint, from, to time.Time) ([]models.PresenceRecord, error) {
	q := s.DB.WithContext(ctx).Preload("Employee").
		Where("date >= ? AND date <= ?", models.Day(from), models.Day(to))
	if employeeID != 0 {
		q = q.Where("employee_id = ?", employeeID)
	}
	var out []models.PresenceRecord
	err := q.Order("date asc").Find(&out).Error
	return out, err
}

// Leaves lists leaves overlapping [from, to]; employeeID 0 means everyone.
func (s *ScheduleService) Leaves(ctx context.Context, employeeID uint, from, to time.Time) ([]models.LeaveRecord, error) {
	q := s.DB.WithContext(ctx).Preload("Employee").
		Where("start_date <= ? AND end_date >= ?", models.Day(to), models.Day(from))
	if employeeID != 0 {
		q = q.Where("employee_id = ?", employeeID)
	}
	var out []models.LeaveRecord
	err := q.Order("start_date asc").Find(&out).Error
	return out, err
}

// RemovePresence deletes the presence of one employee on one day.
func (s *ScheduleService) RemovePresence(ctx context.Context, employeeID uint, day time.Time) error {
	res := s.DB.WithContext(ctx).
		Where("employee_id = ? AND date = ?", employeeID, models.Day(day)).
		Delete(&models.PresenceRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ScheduleService) DeleteLeave(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.LeaveRecord{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
