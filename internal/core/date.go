package core

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// Date validation errors. Messages are shown to the user as-is.
var (
	ErrDateFormat  = errors.New("Date must be in DD/MM/YYYY format")
	ErrMonthRange  = errors.New("Month must be between 01 and 12")
	ErrDayRange    = errors.New("Day must be between 01 and 31")
	ErrInvalidDate = errors.New("Invalid date")
)

const (
	isoLayout     = "2006-01-02T15:04:05.000Z"
	displayLayout = "02/01/2006"
)

var datePattern = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)

// ValidateDate parses DD/MM/YYYY as local midnight.
func ValidateDate(text string) (time.Time, error) {
	return ValidateDateIn(text, time.Local)
}

// ValidateDateIn parses DD/MM/YYYY as midnight in loc. Calendar overflow such as
// 31/02 is rejected by comparing the normalized date with its parts. Years
// below 100 are rejected too.
func ValidateDateIn(text string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}

	m := datePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, ErrDateFormat
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	if month < 1 || month > 12 {
		return time.Time{}, ErrMonthRange
	}
	if day < 1 || day > 31 {
		return time.Time{}, ErrDayRange
	}

	if year < 100 {
		return time.Time{}, ErrInvalidDate
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ISOInstant formats t as a UTC ISO-8601 instant with milliseconds.
func ISOInstant(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// DisplayDate renders an ISO date as DD/MM/YYYY in loc. Unparseable input is
// returned unchanged.
func DisplayDate(iso string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339Nano, iso); err == nil {
		return t.In(loc).Format(displayLayout)
	}
	if t, err := time.ParseInLocation("2006-01-02", iso, loc); err == nil {
		return t.Format(displayLayout)
	}
	return iso
}
