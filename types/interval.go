package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInterval is returned when an interval does not satisfy Start < End.
var ErrInvalidInterval = errors.New("rebill: invalid interval")

// DateLayout is the layout used to render interval bounds.
const DateLayout = "2006-01-02"

// Interval is an immutable half-open time range [Start, End).
//
// Billing periods are day-aligned in practice, but nothing here assumes it:
// all predicates compare instants.
type Interval struct {
	Start time.Time `json:"start" yaml:"start" bson:"start"`
	End   time.Time `json:"end"   yaml:"end"   bson:"end"`
}

// NewInterval returns [start, end) or ErrInvalidInterval if start >= end.
func NewInterval(start, end time.Time) (Interval, error) {
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	return iv, nil
}

// MustInterval is like NewInterval but panics on error. Use for fixtures.
func MustInterval(start, end time.Time) Interval {
	iv, err := NewInterval(start, end)
	if err != nil {
		panic(err)
	}
	return iv
}

// Validate reports ErrInvalidInterval when Start is not strictly before End.
func (i Interval) Validate() error {
	if i.Start.Before(i.End) {
		return nil
	}
	return fmt.Errorf("%w: start %s is not before end %s",
		ErrInvalidInterval, i.Start.Format(DateLayout), i.End.Format(DateLayout))
}

// IsEmpty reports whether the interval covers no time.
func (i Interval) IsEmpty() bool { return !i.Start.Before(i.End) }

// Equal reports whether both bounds are the same instants.
func (i Interval) Equal(o Interval) bool {
	return i.Start.Equal(o.Start) && i.End.Equal(o.End)
}

// Contains reports whether o lies entirely within i. Equal intervals contain
// each other.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// StrictlyContains reports whether o lies within i and the two differ.
func (i Interval) StrictlyContains(o Interval) bool {
	return i.Contains(o) && !i.Equal(o)
}

// Overlaps reports whether the two intervals share any instant.
// Adjacent intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Adjacent reports whether one interval ends exactly where the other starts.
func (i Interval) Adjacent(o Interval) bool {
	return i.End.Equal(o.Start) || o.End.Equal(i.Start)
}

// Before reports whether i ends at or before o starts.
func (i Interval) Before(o Interval) bool { return !i.End.After(o.Start) }

// After reports whether i starts at or after o ends.
func (i Interval) After(o Interval) bool { return !i.Start.Before(o.End) }

// Duration returns End - Start.
func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Days returns the number of calendar days covered, counting from the UTC
// date of Start to the UTC date of End.
func (i Interval) Days() int64 {
	s := truncateDay(i.Start)
	e := truncateDay(i.End)
	return int64(e.Sub(s).Hours() / 24)
}

// String renders the interval as [YYYY-MM-DD,YYYY-MM-DD).
func (i Interval) String() string {
	return "[" + i.Start.Format(DateLayout) + "," + i.End.Format(DateLayout) + ")"
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date is a convenience constructor for a UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("rebill: parse date %q: %w", s, err)
	}
	return t, nil
}
