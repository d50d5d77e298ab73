package recurrence

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Freq is how often a timetable event repeats.
type Freq string

const (
	FreqNone   Freq = "none"
	FreqDaily  Freq = "daily"
	FreqWeekly Freq = "weekly"
)

// Rule describes which calendar dates an event occurs on. Weekdays are only
// meaningful for FreqWeekly and use time.Weekday numbering (Sunday = 0).
type Rule struct {
	Freq Freq           `json:"frequency"`
	Days []time.Weekday `json:"days,omitempty"`
}

// None is the zero rule: the event happens once, on its base date.
func None() Rule {
	return Rule{Freq: FreqNone}
}

// Validate reports whether the rule is well-formed. The zero value counts as
// FreqNone, matching what decoding a payload without a recurrence field
// produces. A weekly rule without at least one weekday is rejected here;
// stored data that slipped through is still expanded as a one-off (see
// effectiveFreq).
func (r Rule) Validate() error {
	switch r.Freq {
	case "", FreqNone, FreqDaily:
		return nil
	case FreqWeekly:
		if len(r.Days) == 0 {
			return fmt.Errorf("weekly recurrence requires at least one day")
		}
		for _, d := range r.Days {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("invalid weekday %d", d)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown recurrence frequency %q", r.Freq)
	}
}

// IsRecurring reports whether the rule produces more than a single date.
func (r Rule) IsRecurring() bool {
	return r.effectiveFreq() != FreqNone
}

// A weekly rule with no days degrades to a one-off instead of matching nothing.
func (r Rule) effectiveFreq() Freq {
	if r.Freq == FreqWeekly && len(r.Days) == 0 {
		return FreqNone
	}
	switch r.Freq {
	case FreqDaily, FreqWeekly:
		return r.Freq
	default:
		return FreqNone
	}
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// ExpandMonth returns every date in targetMonth's calendar month on which an
// event with the given rule and base date occurs. All returned dates are UTC
// midnights, sorted ascending, and guaranteed to be >= base and inside the
// month. Pure: identical inputs always yield identical output.
func ExpandMonth(rule Rule, base, targetMonth time.Time) []time.Time {
	baseDay := DateOnly(base)
	first, last := monthBounds(targetMonth)

	switch rule.effectiveFreq() {
	case FreqNone:
		if baseDay.Before(first) || baseDay.After(last) {
			return nil
		}
		return []time.Time{baseDay}
	default:
		r, err := newRRule(rule, baseDay)
		if err != nil {
			return nil
		}
		return r.Between(first, last, true)
	}
}

// OccursOn reports whether the event occurs on the given single date. It is
// the point form of ExpandMonth: d is in ExpandMonth(rule, base, month of d)
// exactly when OccursOn(rule, base, d) is true.
func OccursOn(rule Rule, base, d time.Time) bool {
	day := DateOnly(d)
	baseDay := DateOnly(base)
	if day.Before(baseDay) {
		return false
	}

	switch rule.effectiveFreq() {
	case FreqNone:
		return day.Equal(baseDay)
	default:
		r, err := newRRule(rule, baseDay)
		if err != nil {
			return false
		}
		return len(r.Between(day, day, true)) > 0
	}
}

func newRRule(rule Rule, baseDay time.Time) (*rrule.RRule, error) {
	opt := rrule.ROption{Dtstart: baseDay}

	switch rule.effectiveFreq() {
	case FreqDaily:
		opt.Freq = rrule.DAILY
	case FreqWeekly:
		opt.Freq = rrule.WEEKLY
		for _, d := range rule.Days {
			wd, ok := rruleWeekdays[d]
			if !ok {
				return nil, fmt.Errorf("invalid weekday %d", d)
			}
			opt.Byweekday = append(opt.Byweekday, wd)
		}
	}

	return rrule.NewRRule(opt)
}

// DateOnly truncates a timestamp to its UTC calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthBounds(anyDay time.Time) (first, last time.Time) {
	first = time.Date(anyDay.Year(), anyDay.Month(), 1, 0, 0, 0, 0, time.UTC)
	last = first.AddDate(0, 1, -1)
	return first, last
}
