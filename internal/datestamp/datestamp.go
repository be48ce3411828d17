// Package datestamp provides the validated calendar date used to file photos.
//
// Validation is deliberately loose: the day is only range-checked (01-31) and
// is not checked against the month or leap years, so "2012-02-30" is accepted.
package datestamp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidationErrorKind represents the reason a Datestamp could not be built.
type ValidationErrorKind string

const (
	NotANumber      ValidationErrorKind = "NOT_A_NUMBER"
	YearOutOfRange  ValidationErrorKind = "YEAR_OUT_OF_RANGE"
	MonthOutOfRange ValidationErrorKind = "MONTH_OUT_OF_RANGE"
	DayOutOfRange   ValidationErrorKind = "DAY_OUT_OF_RANGE"
)

// YearSpan is how many years before the current year are still accepted.
const YearSpan = 100

// ValidationError represents a rejected year, month or day component.
type ValidationError struct {
	Kind   ValidationErrorKind
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case NotANumber:
		return fmt.Sprintf("%q is not a valid number", e.Value)
	default:
		return fmt.Sprintf("invalid datestamp: %s", e.Reason)
	}
}

// Datestamp is an immutable calendar date. The zero value is not a valid
// Datestamp; use FromStrings, FromStringsAt or FromTime.
type Datestamp struct {
	year  int
	month int
	day   int
}

// FromStrings builds a Datestamp from base-10 year, month and day strings,
// validating the year against the current year.
func FromStrings(yearStr, monthStr, dayStr string) (Datestamp, error) {
	return FromStringsAt(yearStr, monthStr, dayStr, time.Now())
}

// FromStringsAt is FromStrings with an explicit "now" used for the year check.
func FromStringsAt(yearStr, monthStr, dayStr string, now time.Time) (Datestamp, error) {
	year, err := parseComponent(yearStr)
	if err != nil {
		return Datestamp{}, err
	}
	month, err := parseComponent(monthStr)
	if err != nil {
		return Datestamp{}, err
	}
	day, err := parseComponent(dayStr)
	if err != nil {
		return Datestamp{}, err
	}
	return newValidated(year, month, day, now.Year())
}

// FromTime builds a Datestamp from the calendar date of t, applying the same
// checks as FromStrings.
func FromTime(t time.Time) (Datestamp, error) {
	return newValidated(t.Year(), int(t.Month()), t.Day(), time.Now().Year())
}

func parseComponent(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &ValidationError{Kind: NotANumber, Value: s}
	}
	return n, nil
}

func newValidated(year, month, day, curYear int) (Datestamp, error) {
	if year < curYear-YearSpan || year > curYear {
		return Datestamp{}, &ValidationError{
			Kind:   YearOutOfRange,
			Value:  strconv.Itoa(year),
			Reason: fmt.Sprintf("year %d is out of range (%d-%d)", year, curYear-YearSpan, curYear),
		}
	}

	if month < 1 || month > 12 {
		return Datestamp{}, &ValidationError{
			Kind:   MonthOutOfRange,
			Value:  strconv.Itoa(month),
			Reason: fmt.Sprintf("month %02d is out of range (01-12)", month),
		}
	}

	// Day is not checked against the month length.
	if day < 1 || day > 31 {
		return Datestamp{}, &ValidationError{
			Kind:   DayOutOfRange,
			Value:  strconv.Itoa(day),
			Reason: fmt.Sprintf("day %02d is out of range (01-31)", day),
		}
	}

	return Datestamp{year: year, month: month, day: day}, nil
}

// Year returns the year component.
func (d Datestamp) Year() int { return d.year }

// Month returns the month component (1-12).
func (d Datestamp) Month() int { return d.month }

// Day returns the day component (1-31).
func (d Datestamp) Day() int { return d.day }

// IsZero reports whether d was never validated.
func (d Datestamp) IsZero() bool { return d == Datestamp{} }

// Equal reports whether d and other name the same year, month and day.
func (d Datestamp) Equal(other Datestamp) bool {
	return d.year == other.year && d.month == other.month && d.day == other.day
}

// String returns the canonical YYYY_MM_DD form.
func (d Datestamp) String() string {
	return fmt.Sprintf("%04d_%02d_%02d", d.year, d.month, d.day)
}
