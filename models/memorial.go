package models

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxNameLength matches the width of the name column in the original registry.
const MaxNameLength = 100

// Side is the wall side a plaque is mounted on
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ParseSide accepts the canonical values plus the short and Chinese forms
// found in legacy spreadsheets.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l", "左", "左側":
		return SideLeft, nil
	case "right", "r", "右", "右側":
		return SideRight, nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// Valid reports whether s is one of the two canonical sides.
func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

// Memorial is one plaque in the registry
type Memorial struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Side   Side   `json:"side" db:"side"`
	Area   int    `json:"area" db:"area"`
	Row    int    `json:"row" db:"row_num"`
	Column int    `json:"column" db:"column_num"`
	AuditFields
}

// MemorialForm represents input for creating a memorial
type MemorialForm struct {
	Name   string `json:"name"`
	Side   string `json:"side"`
	Area   int    `json:"area"`
	Row    int    `json:"row"`
	Column int    `json:"column"`
}

// Validate validates the memorial form data
func (f *MemorialForm) Validate() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, validateName(f.Name)...)

	if _, err := ParseSide(f.Side); err != nil {
		errs = append(errs, ValidationError{Field: "side", Message: "Side must be left or right"})
	}

	errs = append(errs, validatePosition("area", f.Area)...)
	errs = append(errs, validatePosition("row", f.Row)...)
	errs = append(errs, validatePosition("column", f.Column)...)

	return errs
}

// ToMemorial converts a validated form into a Memorial without an ID.
func (f *MemorialForm) ToMemorial() *Memorial {
	side, _ := ParseSide(f.Side)
	return &Memorial{
		Name:   strings.TrimSpace(f.Name),
		Side:   side,
		Area:   f.Area,
		Row:    f.Row,
		Column: f.Column,
	}
}

// MemorialPatch carries a partial update; nil fields are left unchanged.
type MemorialPatch struct {
	Name   *string `json:"name,omitempty"`
	Side   *string `json:"side,omitempty"`
	Area   *int    `json:"area,omitempty"`
	Row    *int    `json:"row,omitempty"`
	Column *int    `json:"column,omitempty"`
}

// IsEmpty reports whether the patch supplies no fields.
func (p *MemorialPatch) IsEmpty() bool {
	return p.Name == nil && p.Side == nil && p.Area == nil && p.Row == nil && p.Column == nil
}

// Validate validates only the supplied fields
func (p *MemorialPatch) Validate() ValidationErrors {
	var errs ValidationErrors

	if p.IsEmpty() {
		errs = append(errs, ValidationError{Field: "", Message: "At least one field must be supplied"})
		return errs
	}
	if p.Name != nil {
		errs = append(errs, validateName(*p.Name)...)
	}
	if p.Side != nil {
		if _, err := ParseSide(*p.Side); err != nil {
			errs = append(errs, ValidationError{Field: "side", Message: "Side must be left or right"})
		}
	}
	if p.Area != nil {
		errs = append(errs, validatePosition("area", *p.Area)...)
	}
	if p.Row != nil {
		errs = append(errs, validatePosition("row", *p.Row)...)
	}
	if p.Column != nil {
		errs = append(errs, validatePosition("column", *p.Column)...)
	}

	return errs
}

// Apply merges the supplied fields into m. The patch must be valid.
func (p *MemorialPatch) Apply(m *Memorial) {
	if p.Name != nil {
		m.Name = strings.TrimSpace(*p.Name)
	}
	if p.Side != nil {
		m.Side, _ = ParseSide(*p.Side)
	}
	if p.Area != nil {
		m.Area = *p.Area
	}
	if p.Row != nil {
		m.Row = *p.Row
	}
	if p.Column != nil {
		m.Column = *p.Column
	}
}

// ParsePosition parses a positive integer cell such as "3" or "3.0" (spreadsheets
// often store whole numbers as floats).
func ParsePosition(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("value %d is not positive", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) || f <= 0 {
		return 0, fmt.Errorf("invalid position %q", s)
	}
	return int(f), nil
}

func validateName(name string) ValidationErrors {
	var errs ValidationErrors
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "Name is required"})
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		errs = append(errs, ValidationError{Field: "name", Message: fmt.Sprintf("Name must be at most %d characters", MaxNameLength)})
	}
	return errs
}

func validatePosition(field string, v int) ValidationErrors {
	if v <= 0 {
		return ValidationErrors{{Field: field, Message: strings.ToUpper(field[:1]) + field[1:] + " must be a positive integer"}}
	}
	return nil
}
