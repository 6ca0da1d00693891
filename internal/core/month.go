package core

import (
	"errors"
	"fmt"
	"time"
)

// Month is a calendar month without a day component, the unit the whole
// planning model operates on. The zero value is not a valid month.
type Month struct {
	Year int
	Mon  int // 1-12
}

var ErrInvalidMonthString = errors.New("invalid month string, want YYYY-MM")

// ParseMonth parses a "YYYY-MM" string. This is the only place month
// strings are validated; everything past this boundary works on Month
// values and assumes they are well formed.
func ParseMonth(s string) (Month, error) {
	if len(s) != 7 || s[4] != '-' {
		return Month{}, ErrInvalidMonthString
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, ErrInvalidMonthString
	}
	return Month{Year: t.Year(), Mon: int(t.Month())}, nil
}

// MustMonth is a test and literal helper; it panics on malformed input.
func MustMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Mon)
}

// index maps the month onto a single integer axis so that arithmetic
// carries across year boundaries without special cases.
func (m Month) index() int {
	return m.Year*12 + (m.Mon - 1)
}

// Add returns the month delta months after m (before, for negative delta).
func (m Month) Add(delta int) Month {
	i := m.index() + delta
	y, rem := i/12, i%12
	if rem < 0 {
		y--
		rem += 12
	}
	return Month{Year: y, Mon: rem + 1}
}

// DiffMonths returns the number of months from a to b, positive when b
// is later.
func DiffMonths(a, b Month) int {
	return b.index() - a.index()
}

// Days returns the number of calendar days in the month, leap-aware.
func (m Month) Days() int {
	return time.Date(m.Year, time.Month(m.Mon)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (m Month) Before(o Month) bool { return m.index() < o.index() }
func (m Month) After(o Month) bool  { return m.index() > o.index() }

// First returns midnight UTC on the first day of the month.
func (m Month) First() time.Time {
	return time.Date(m.Year, time.Month(m.Mon), 1, 0, 0, 0, 0, time.UTC)
}

// Last returns midnight UTC on the last day of the month.
func (m Month) Last() time.Time {
	return time.Date(m.Year, time.Month(m.Mon), m.Days(), 0, 0, 0, 0, time.UTC)
}

// MonthOf returns the Month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: int(t.Month())}
}

// MarshalText implements encoding.TextMarshaler so Month serializes as
// "YYYY-MM" in JSON bodies and map keys.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Month) UnmarshalText(text []byte) error {
	parsed, err := ParseMonth(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func minMonth(a, b Month) Month {
	if a.Before(b) {
		return a
	}
	return b
}

func maxMonth(a, b Month) Month {
	if a.After(b) {
		return a
	}
	return b
}
