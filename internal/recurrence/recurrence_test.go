package recurrence

import (
	"time"

	"testing"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func days(ts []time.Time) []int {
	out := make([]int, len(ts))
	for i, t := range ts {
		out[i] = t.Day()
	}
	return out
}

func TestExpandMonth_WeeklyFromMidMonth(t *testing.T) {
	// Base on Friday 2024-03-15, repeating Mondays and Wednesdays: only the
	// Mon/Wed dates on or after the 15th qualify.
	rule := Rule{Freq: FreqWeekly, Days: []time.Weekday{time.Monday, time.Wednesday}}
	base := date(2024, time.March, 15)

	got := ExpandMonth(rule, base, date(2024, time.March, 1))

	want := []int{18, 20, 25, 27}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, days(got))
	}
	for i, d := range days(got) {
		if d != want[i] {
			t.Fatalf("expected %v, got %v", want, days(got))
		}
	}
	for _, occ := range got {
		if occ.Month() != time.March || occ.Year() != 2024 {
			t.Fatalf("occurrence %v escaped the target month", occ)
		}
	}
}

func TestExpandMonth_DailyFromLastDayOfMonth(t *testing.T) {
	base := date(2024, time.January, 31)
	rule := Rule{Freq: FreqDaily}

	sameMonth := ExpandMonth(rule, base, date(2024, time.January, 10))
	if len(sameMonth) != 1 || !sameMonth[0].Equal(base) {
		t.Fatalf("expected exactly the base date, got %v", days(sameMonth))
	}

	// February 2024 is a leap February: every one of its 29 days occurs.
	next := ExpandMonth(rule, base, date(2024, time.February, 1))
	if len(next) != 29 {
		t.Fatalf("expected 29 occurrences in Feb 2024, got %d", len(next))
	}
	if next[0].Day() != 1 || next[28].Day() != 29 {
		t.Fatalf("expected full month coverage, got %v", days(next))
	}
}

func TestExpandMonth_NoneRule(t *testing.T) {
	base := date(2024, time.March, 15)

	in := ExpandMonth(None(), base, date(2024, time.March, 20))
	if len(in) != 1 || !in[0].Equal(base) {
		t.Fatalf("expected {base}, got %v", days(in))
	}

	out := ExpandMonth(None(), base, date(2024, time.April, 1))
	if len(out) != 0 {
		t.Fatalf("expected empty set outside the base month, got %v", days(out))
	}
}

func TestExpandMonth_Idempotent(t *testing.T) {
	rule := Rule{Freq: FreqWeekly, Days: []time.Weekday{time.Tuesday, time.Saturday}}
	base := date(2024, time.March, 3)

	first := ExpandMonth(rule, base, date(2024, time.March, 1))
	second := ExpandMonth(rule, base, date(2024, time.March, 1))

	if len(first) != len(second) {
		t.Fatalf("expansion is not deterministic: %v vs %v", days(first), days(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatalf("expansion is not deterministic: %v vs %v", days(first), days(second))
		}
	}
}

func TestOccursOn_AgreesWithExpandMonth(t *testing.T) {
	rules := []Rule{
		None(),
		{Freq: FreqDaily},
		{Freq: FreqWeekly, Days: []time.Weekday{time.Monday, time.Wednesday}},
		{Freq: FreqWeekly, Days: []time.Weekday{time.Sunday}},
	}
	base := date(2024, time.March, 15)

	for _, rule := range rules {
		expanded := make(map[int]bool)
		for _, occ := range ExpandMonth(rule, base, date(2024, time.March, 1)) {
			expanded[occ.Day()] = true
		}

		for day := 1; day <= 31; day++ {
			candidate := date(2024, time.March, day)
			if got := OccursOn(rule, base, candidate); got != expanded[day] {
				t.Fatalf("rule %+v: OccursOn(%v)=%v but membership in ExpandMonth is %v",
					rule, candidate, got, expanded[day])
			}
		}
	}
}

func TestOccursOn_NeverBeforeBase(t *testing.T) {
	rule := Rule{Freq: FreqDaily}
	base := date(2024, time.March, 15)

	if OccursOn(rule, base, date(2024, time.March, 14)) {
		t.Fatalf("event must not occur before its base date")
	}
	if !OccursOn(rule, base, base) {
		t.Fatalf("daily event must occur on its base date")
	}
}

func TestWeeklyWithoutDays_ExpandsAsOneOff(t *testing.T) {
	rule := Rule{Freq: FreqWeekly}
	base := date(2024, time.March, 15)

	got := ExpandMonth(rule, base, date(2024, time.March, 1))
	if len(got) != 1 || !got[0].Equal(base) {
		t.Fatalf("zero-day weekly rule should degrade to a one-off, got %v", days(got))
	}
}

func TestRuleValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"none", None(), false},
		{"zero value", Rule{}, false},
		{"daily", Rule{Freq: FreqDaily}, false},
		{"weekly with days", Rule{Freq: FreqWeekly, Days: []time.Weekday{time.Tuesday}}, false},
		{"weekly without days", Rule{Freq: FreqWeekly}, true},
		{"weekly with bad day", Rule{Freq: FreqWeekly, Days: []time.Weekday{9}}, true},
		{"unknown frequency", Rule{Freq: "fortnightly"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if tc.wantErr && err == nil {
				t.Errorf("expected validation error for %+v", tc.rule)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error for %+v: %v", tc.rule, err)
			}
		})
	}
}
