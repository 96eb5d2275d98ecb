package core

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	minYear = 1
	maxYear = 9999
)

// MonthKey is a validated calendar month.
type MonthKey struct {
	Year  int
	Month int // 1-12
}

// ParseMonth normalizes a raw month ("3", "03", " 3 ") to an integer in [1,12].
func ParseMonth(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, NewValidationError("month", "is required")
	}
	m, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewValidationError("month", "must be an integer")
	}
	if m < 1 || m > 12 {
		return 0, NewValidationError("month", "must be between 1 and 12")
	}
	return m, nil
}

// ParseYear accepts an integer year in [1,9999].
func ParseYear(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, NewValidationError("year", "is required")
	}
	y, err := strconv.Atoi(raw)
	if err != nil {
		return 0, NewValidationError("year", "must be an integer")
	}
	if y < minYear || y > maxYear {
		return 0, NewValidationError("year", fmt.Sprintf("must be between %d and %d", minYear, maxYear))
	}
	return y, nil
}

// ParseMonthKey validates raw month and year strings together.
func ParseMonthKey(rawMonth, rawYear string) (MonthKey, error) {
	m, err := ParseMonth(rawMonth)
	if err != nil {
		return MonthKey{}, err
	}
	y, err := ParseYear(rawYear)
	if err != nil {
		return MonthKey{}, err
	}
	return MonthKey{Year: y, Month: m}, nil
}

// ParseMonthYear parses a canonical YYYY-MM key. Non-canonical forms such as
// "2024-1" are rejected.
func ParseMonthYear(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[4] != '-' {
		return MonthKey{}, NewValidationError("monthYear", "must be formatted as YYYY-MM")
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < minYear {
		return MonthKey{}, NewValidationError("monthYear", "must be formatted as YYYY-MM")
	}
	m, err := strconv.Atoi(s[5:])
	if err != nil || m < 1 || m > 12 {
		return MonthKey{}, NewValidationError("monthYear", "month must be between 01 and 12")
	}
	return MonthKey{Year: y, Month: m}, nil
}

// MonthYear returns the canonical "YYYY-MM" key.
func (k MonthKey) MonthYear() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// MonthNumber returns the zero-padded two digit month.
func (k MonthKey) MonthNumber() string {
	return fmt.Sprintf("%02d", k.Month)
}

// Identity binds the month to a user.
func (k MonthKey) Identity(userID string) Identity {
	return Identity{UserID: userID, MonthYear: k.MonthYear(), MonthNumber: k.MonthNumber()}
}

// Contains reports whether d falls within the month.
func (k MonthKey) Contains(d Date) bool {
	return d.Year() == k.Year && int(d.Month()) == k.Month
}
