package ledger

import (
	"fmt"
	"strings"
	"time"
)

// DateRangePreset names one of the fixed dashboard date windows.
type DateRangePreset string

const (
	RangeAll       DateRangePreset = "all"
	RangeLast7     DateRangePreset = "7_days"
	RangeLast30    DateRangePreset = "30_days"
	RangeThisMonth DateRangePreset = "this_month"
	RangeLastMonth DateRangePreset = "last_month"
)

// ParsePreset validates a preset name. The empty string means RangeAll.
func ParsePreset(s string) (DateRangePreset, error) {
	p := DateRangePreset(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return RangeAll, nil
	case RangeAll, RangeLast7, RangeLast30, RangeThisMonth, RangeLastMonth:
		return p, nil
	}
	return "", fmt.Errorf("unknown date range %q", s)
}

// Interval is the half-open time window [Start, End). A zero bound is open.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	if !i.Start.IsZero() && t.Before(i.Start) {
		return false
	}
	if !i.End.IsZero() && !t.Before(i.End) {
		return false
	}
	return true
}

// Resolve turns a preset into a concrete interval anchored at now, using
// now's location for day and month boundaries. "N days" windows cover the
// current day plus the N-1 days before it.
func Resolve(preset DateRangePreset, now time.Time) Interval {
	today := startOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	switch preset {
	case RangeLast7:
		return Interval{Start: today.AddDate(0, 0, -6), End: tomorrow}
	case RangeLast30:
		return Interval{Start: today.AddDate(0, 0, -29), End: tomorrow}
	case RangeThisMonth:
		return Interval{Start: month, End: month.AddDate(0, 1, 0)}
	case RangeLastMonth:
		return Interval{Start: month.AddDate(0, -1, 0), End: month}
	default:
		return Interval{}
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
