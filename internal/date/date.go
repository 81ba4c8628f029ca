// Package date provides a calendar day type that round-trips through JSON and SQL.
package date

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Format is the ISO-8601 layout used for JSON, query strings and the database.
const Format = "2006-01-02"

const readFormat = "2006-1-2"

// Date is a calendar day with no time-of-day or zone.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date for the given year, month and day.
func New(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{t.Year(), t.Month(), t.Day()}
}

// Of returns the calendar day of t in t's own location.
func Of(t time.Time) Date { return New(t.Date()) }

// Today returns the current local calendar day.
func Today() Date { return Of(time.Now()) }

// Parse parses a Date. It accepts "2025-7-1" as well as "2025-07-01".
func Parse(s string) (Date, error) {
	t, err := time.Parse(readFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want format %q: %w", s, Format, err)
	}
	return Of(t), nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date { return New(d.y, d.m, d.d+n) }

// Before reports whether d is before x.
func (d Date) Before(x Date) bool { return d.Time().Before(x.Time()) }

// After reports whether d is after x.
func (d Date) After(x Date) bool { return d.Time().After(x.Time()) }

func (d Date) String() string { return d.Time().Format(Format) }

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as its ISO string so that SQLite keeps lexical order
// equal to chronological order and Postgres casts it into a DATE column.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan accepts the shapes drivers hand back for DATE columns.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = New(v.Date())
		return nil
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	case nil:
		*d = Date{}
		return nil
	default:
		return fmt.Errorf("date: cannot scan %T", src)
	}
}

func (d *Date) scanString(s string) error {
	if len(s) > len(Format) {
		s = s[:len(Format)]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// GormDataType tells gorm to create DATE columns for this type.
func (Date) GormDataType() string { return "date" }

var (
	_ json.Marshaler   = Date{}
	_ json.Unmarshaler = (*Date)(nil)
	_ driver.Valuer    = Date{}
)
