package models

import (
	"fmt"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date without time of day. The zero value means "never".
type Day struct {
	t time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the calendar date of t as observed in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return NewDay(y, m, d)
}

// ParseDay accepts "YYYY-MM-DD" and, for legacy values, full RFC3339 timestamps.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Day{}, nil
	}
	if t, err := time.Parse(dayLayout, s); err == nil {
		return Day{t: t}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DayOf(t, time.UTC), nil
	}
	return Day{}, fmt.Errorf("invalid day %q", s)
}

func (d Day) IsZero() bool { return d.t.IsZero() }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dayLayout)
}

func (d Day) Equal(o Day) bool { return d.t.Equal(o.t) }

func (d Day) Before(o Day) bool { return d.t.Before(o.t) }

func (d Day) After(o Day) bool { return d.t.After(o.t) }

func (d Day) AddDays(n int) Day { return Day{t: d.t.AddDate(0, 0, n)} }

// DaysBetween is the absolute distance between two dates in whole days, rounded up.
func DaysBetween(a, b Day) int {
	diff := b.t.Sub(a.t)
	if diff < 0 {
		diff = -diff
	}
	days := diff / (24 * time.Hour)
	if diff%(24*time.Hour) != 0 {
		days++
	}
	return int(days)
}

func (d Day) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Day) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*d = Day{}
		return nil
	}
	s = strings.Trim(s, `"`)
	parsed, err := ParseDay(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
