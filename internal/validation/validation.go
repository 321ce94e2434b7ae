package validation

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

// Date checks a "2006-01-02" value. Empty values are left to Required.
func Date(field, value string, v Violations) {
	if value == "" {
		return
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		v[field] = "invalid_date"
	}
}

// Clock checks a "15:04" value.
func Clock(field, value string, v Violations) {
	if _, err := time.Parse("15:04", value); err != nil {
		v[field] = "invalid_time"
	}
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// HexColor checks a "#rrggbb" value.
func HexColor(field, value string, v Violations) {
	if !hexColor.MatchString(value) {
		v[field] = "invalid_color"
	}
}

var ErrNotANumber = errors.New("not_a_number")

// ParseDecimal parses a money amount written with a comma or a point ("12,50", "12.5").
// Spaces (thousand separators) and a trailing euro sign are ignored.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "€"))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.Replace(s, ",", ".", 1)
	if s == "" {
		return decimal.Zero, ErrNotANumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrNotANumber
	}
	return d, nil
}

// Price validates an optional price field and returns it.
// An empty value yields an invalid NullDecimal and no violation.
func Price(field, value string, v Violations) decimal.NullDecimal {
	if strings.TrimSpace(value) == "" {
		return decimal.NullDecimal{}
	}
	d, err := ParseDecimal(value)
	if err != nil {
		v[field] = "invalid_price"
		return decimal.NullDecimal{}
	}
	if d.IsNegative() {
		v[field] = "must_be_positive"
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Round(2))
}
