package core

import "time"

// RuleKind distinguishes the three recurrence strategies.
type RuleKind int

const (
	RuleOneOff RuleKind = iota
	RuleMonthly
	RuleWeekly
)

// Rule is the resolved recurrence of one budget item. Building it once
// up front keeps the monthly-vs-weekly precedence in a single place
// instead of field-presence checks scattered through the evaluator.
type Rule struct {
	Kind      RuleKind
	Start     Month
	End       *Month // nil = open-ended
	Interval  int    // months (RuleMonthly) or weeks (RuleWeekly)
	Weekday   int    // ISO weekday, RuleWeekly only
	AnchorDay int    // 0 = last day of month
}

// RuleOf resolves an item's recurrence fields into a Rule. Weekly fields
// take precedence over monthly ones; a recurring item with neither gets
// a monthly interval of 1. An intervalWeeks without weekday degrades to
// monthly every month, matching the effective-interval contract.
func RuleOf(it BudgetItem) Rule {
	if !it.Recurring {
		return Rule{Kind: RuleOneOff, Start: it.StartMonth, AnchorDay: it.AnchorDay}
	}
	if it.IntervalWeeks > 0 && it.Weekday > 0 {
		return Rule{
			Kind:     RuleWeekly,
			Start:    it.StartMonth,
			End:      it.EndMonth,
			Interval: it.IntervalWeeks,
			Weekday:  it.Weekday,
		}
	}
	interval := 1
	if it.IntervalWeeks == 0 && it.IntervalMonths > 0 {
		interval = it.IntervalMonths
	}
	return Rule{
		Kind:      RuleMonthly,
		Start:     it.StartMonth,
		End:       it.EndMonth,
		Interval:  interval,
		AnchorDay: it.AnchorDay,
	}
}

// Hit is one raw recurrence occurrence before override resolution.
type Hit struct {
	Month Month
	Day   int
}

// Expand returns the ordered hits of the rule inside [from, to], both
// inclusive. Callers guarantee from <= to.
func (r Rule) Expand(from, to Month) []Hit {
	switch r.Kind {
	case RuleOneOff:
		if r.Start.Before(from) || r.Start.After(to) {
			return nil
		}
		return []Hit{{Month: r.Start, Day: clampDay(r.AnchorDay, r.Start.Days())}}
	case RuleWeekly:
		return r.expandWeekly(from, to)
	default:
		return r.expandMonthly(from, to)
	}
}

func (r Rule) expandMonthly(from, to Month) []Hit {
	lower := maxMonth(r.Start, from)
	upper := to
	if r.End != nil {
		upper = minMonth(*r.End, to)
	}
	if lower.After(upper) {
		return nil
	}

	// Re-align the lower bound on the item's own cadence. The first
	// in-range hit is the smallest aligned month >= lower, not lower
	// itself.
	if rem := floorMod(DiffMonths(r.Start, lower), r.Interval); rem != 0 {
		lower = lower.Add(r.Interval - rem)
	}

	var hits []Hit
	for m := lower; !m.After(upper); m = m.Add(r.Interval) {
		hits = append(hits, Hit{Month: m, Day: clampDay(r.AnchorDay, m.Days())})
	}
	return hits
}

// expandWeekly walks fixed 7*interval-day strides from the first
// matching weekday on/after the binding lower bound. Strides are not
// month-aligned, so dates landing outside [from, to] are filtered out
// rather than clipped.
func (r Rule) expandWeekly(from, to Month) []Hit {
	upper := to
	if r.End != nil {
		upper = minMonth(*r.End, to)
	}
	lower := maxMonth(r.Start, from)
	if lower.After(upper) {
		return nil
	}

	cur := lower.First()
	for isoWeekday(cur) != r.Weekday {
		cur = cur.AddDate(0, 0, 1)
	}
	last := upper.Last()
	stride := 7 * r.Interval

	var hits []Hit
	for !cur.After(last) {
		m := MonthOf(cur)
		if !m.Before(from) && !m.After(to) {
			hits = append(hits, Hit{Month: m, Day: cur.Day()})
		}
		cur = cur.AddDate(0, 0, stride)
	}
	return hits
}

// clampDay resolves the anchor day against the target month's length.
// An unset anchor (0) means the last day; an anchor past the end of the
// month clamps down, never wrapping into the next month.
func clampDay(anchor, daysInMonth int) int {
	if anchor == 0 || anchor > daysInMonth {
		return daysInMonth
	}
	return anchor
}

// isoWeekday maps Go's Sunday-based weekday onto ISO 1=Monday..7=Sunday.
func isoWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}

// floorMod normalizes a remainder into [0, n).
func floorMod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}
