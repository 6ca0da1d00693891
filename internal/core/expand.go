package core

// OverrideSet holds the overrides of a single item, keyed by month.
// Lookup is exact; the model guarantees at most one override per month.
type OverrideSet map[Month]BudgetOverride

// resolvedOverride is the outcome of looking up an (item, month) pair.
type resolvedOverride struct {
	amount *int64
	skip   bool
	note   *string
	exists bool
}

func resolveOverride(set OverrideSet, m Month) resolvedOverride {
	o, ok := set[m]
	if !ok {
		return resolvedOverride{}
	}
	return resolvedOverride{amount: o.Amount, skip: o.Skip, note: o.Note, exists: true}
}

// buildOccurrence merges a raw hit, the resolved override and the item's
// static fields into the full occurrence shape.
func buildOccurrence(it BudgetItem, hit Hit, ov resolvedOverride) Occurrence {
	occ := Occurrence{
		ItemID:      it.ID,
		Title:       it.Title,
		Category:    it.Category,
		Emoji:       it.Emoji,
		BaseAmount:  it.Amount,
		Amount:      it.Amount,
		Recurring:   it.Recurring,
		Month:       hit.Month,
		Day:         hit.Day,
		HasOverride: ov.exists && (ov.amount != nil || ov.skip || ov.note != nil),
		Skipped:     ov.skip,
	}
	if r := RuleOf(it); r.Kind == RuleMonthly {
		occ.IntervalMonths = r.Interval
	}
	if ov.amount != nil {
		occ.Amount = *ov.amount
	}
	if ov.note != nil {
		occ.Note = *ov.note
	}
	return occ
}

// ExpandRange expands every item over the inclusive month range and
// groups the occurrences into one bucket per month, in chronological
// order, empty months included. A reversed range yields an empty plan
// rather than an error; no model invariant is violated by it.
//
// The function is pure: identical inputs produce identical output, so
// it is safe to call concurrently without locking.
func ExpandRange(items []BudgetItem, overrides map[int64]OverrideSet, from, to Month) []MonthBucket {
	if to.Before(from) {
		return []MonthBucket{}
	}

	buckets := make([]MonthBucket, DiffMonths(from, to)+1)
	for i := range buckets {
		buckets[i] = MonthBucket{Month: from.Add(i), Items: []Occurrence{}}
	}

	for _, it := range items {
		if it.StartMonth.After(to) {
			continue
		}
		if it.EndMonth != nil && it.EndMonth.Before(from) {
			continue
		}
		set := overrides[it.ID]
		for _, hit := range RuleOf(it).Expand(from, to) {
			occ := buildOccurrence(it, hit, resolveOverride(set, hit.Month))
			i := DiffMonths(from, hit.Month)
			buckets[i].Items = append(buckets[i].Items, occ)
			if !occ.Skipped {
				buckets[i].Total += occ.Amount
			}
		}
	}
	return buckets
}
