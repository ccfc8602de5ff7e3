// Package clock supplies "now" in one configured location so that the
// guest quota day and the receipt timestamp never disagree.
package clock

import "time"

// DayLayout is the calendar-day key used for quota buckets.
const DayLayout = "2006-01-02"

// Clock returns the current instant in the service's configured location.
type Clock interface {
	Now() time.Time
}

type realClock struct{ loc *time.Location }

// Real returns a Clock backed by time.Now converted to loc. A nil loc
// means UTC.
func Real(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return realClock{loc: loc}
}

func (c realClock) Now() time.Time { return time.Now().In(c.loc) }

// Fixed always returns t. Used by tests and for reproducible test prints.
type Fixed time.Time

func (f Fixed) Now() time.Time { return time.Time(f) }

// Today formats c.Now() as a quota day key.
func Today(c Clock) string { return c.Now().Format(DayLayout) }
