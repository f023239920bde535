package dataset

import (
	"fmt"
	"time"
)

// Month is a calendar month. The zero value means "unset" and is used as an
// open bound by filters.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parsing month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// IsZero reports whether m is unset.
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// Index is the number of months since year 0, used for month arithmetic.
func (m Month) Index() int {
	return m.Year*12 + int(m.Month) - 1
}

// FromIndex is the inverse of Index.
func FromIndex(i int) Month {
	return Month{Year: i / 12, Month: time.Month(i%12 + 1)}
}

// Next returns the following month.
func (m Month) Next() Month {
	return FromIndex(m.Index() + 1)
}

// AddMonths returns m shifted by n months.
func (m Month) AddMonths(n int) Month {
	return FromIndex(m.Index() + n)
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	return m.Index() < o.Index()
}

// After reports whether m is strictly later than o.
func (m Month) After(o Month) bool {
	return m.Index() > o.Index()
}

// MonthsUntil returns how many months lie between m and o (o - m).
func (m Month) MonthsUntil(o Month) int {
	return o.Index() - m.Index()
}

// Time returns the first instant of the month in UTC.
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MarshalText encodes the month as "YYYY-MM", and the zero month as an
// empty string.
func (m Month) MarshalText() ([]byte, error) {
	if m.IsZero() {
		return []byte{}, nil
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes "YYYY-MM".
func (m *Month) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
