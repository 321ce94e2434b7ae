package services

import (
	"errors"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/atelier/internal/models"
	"github.com/diewo77/atelier/internal/validation"
)

var (
	ErrNotFound                 = errors.New("not_found")
	ErrNameRequired             = errors.New("name_required")
	ErrInvalidPrice             = errors.New("invalid_price")
	ErrInvalidQuantity          = errors.New("invalid_quantity")
	ErrInvalidStatus            = errors.New("invalid_status")
	ErrInvalidDate              = errors.New("invalid_date")
	ErrNoLines                  = errors.New("no_lines")
	ErrDuplicate                = errors.New("already_exists")
	ErrConversionAlreadyApplied = errors.New("conversion_already_applied")
)

// notFound maps gorm's record-not-found to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

// ValidStatus reports whether s is one of the two work statuses.
func ValidStatus(s string) bool {
	return s == models.StatusInProgress || s == models.StatusDone
}

// ValidationError carries per-field violations of a rejected write.
type ValidationError struct {
	Violations validation.Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, code := range e.Violations {
		fields = append(fields, f+"="+code)
	}
	slices.Sort(fields)
	return "validation: " + strings.Join(fields, ", ")
}

func invalid(v validation.Violations) error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}
