package core

import (
	"reflect"
	"testing"
)

func int64Ptr(v int64) *int64 { return &v }
func strPtr(s string) *string { return &s }

func quarterlyItem() BudgetItem {
	return BudgetItem{
		ID:             1,
		AccountID:      1,
		Title:          "Veterinær",
		Category:       "helse",
		Amount:         5000,
		Recurring:      true,
		StartMonth:     MustMonth("2024-01"),
		IntervalMonths: 3,
		AnchorDay:      15,
	}
}

func TestExpandRangeQuarterlyExample(t *testing.T) {
	buckets := ExpandRange([]BudgetItem{quarterlyItem()}, nil, MustMonth("2024-01"), MustMonth("2024-12"))
	if len(buckets) != 12 {
		t.Fatalf("got %d buckets, want 12", len(buckets))
	}

	hitMonths := map[string]bool{"2024-01": true, "2024-04": true, "2024-07": true, "2024-10": true}
	for _, b := range buckets {
		if hitMonths[b.Month.String()] {
			if len(b.Items) != 1 {
				t.Fatalf("%s: got %d items, want 1", b.Month, len(b.Items))
			}
			occ := b.Items[0]
			if occ.Amount != 5000 || occ.BaseAmount != 5000 || occ.Day != 15 {
				t.Errorf("%s: unexpected occurrence %+v", b.Month, occ)
			}
			if occ.IntervalMonths != 3 {
				t.Errorf("%s: intervalMonths %d, want 3", b.Month, occ.IntervalMonths)
			}
			if b.Total != 5000 {
				t.Errorf("%s: total %d, want 5000", b.Month, b.Total)
			}
		} else {
			if len(b.Items) != 0 || b.Total != 0 {
				t.Errorf("%s: expected empty bucket, got %+v", b.Month, b)
			}
		}
	}
}

func TestExpandRangeOverridePrecedence(t *testing.T) {
	overrides := map[int64]OverrideSet{
		1: {
			MustMonth("2024-04"): {ItemID: 1, Month: MustMonth("2024-04"), Amount: int64Ptr(7500), Note: strPtr("dyrere denne gangen")},
		},
	}
	buckets := ExpandRange([]BudgetItem{quarterlyItem()}, overrides, MustMonth("2024-04"), MustMonth("2024-04"))
	if len(buckets) != 1 || len(buckets[0].Items) != 1 {
		t.Fatalf("unexpected buckets %+v", buckets)
	}
	occ := buckets[0].Items[0]
	if occ.Amount != 7500 {
		t.Errorf("amount %d, want override 7500", occ.Amount)
	}
	if occ.BaseAmount != 5000 {
		t.Errorf("baseAmount %d, want 5000", occ.BaseAmount)
	}
	if !occ.HasOverride {
		t.Error("hasOverride should be true")
	}
	if occ.Note != "dyrere denne gangen" {
		t.Errorf("note %q", occ.Note)
	}
	if buckets[0].Total != 7500 {
		t.Errorf("total %d, want 7500", buckets[0].Total)
	}
}

func TestExpandRangeSkipExclusion(t *testing.T) {
	// A skipped occurrence stays visible but contributes nothing to
	// the total.
	overrides := map[int64]OverrideSet{
		1: {
			MustMonth("2024-07"): {ItemID: 1, Month: MustMonth("2024-07"), Amount: int64Ptr(0), Skip: true},
		},
	}
	buckets := ExpandRange([]BudgetItem{quarterlyItem()}, overrides, MustMonth("2024-01"), MustMonth("2024-12"))

	july := buckets[6]
	if july.Month != MustMonth("2024-07") {
		t.Fatalf("bucket 6 is %s, want 2024-07", july.Month)
	}
	if len(july.Items) != 1 {
		t.Fatalf("july has %d items, want 1", len(july.Items))
	}
	occ := july.Items[0]
	if !occ.Skipped || !occ.HasOverride || occ.Amount != 0 {
		t.Errorf("unexpected july occurrence %+v", occ)
	}
	if july.Total != 0 {
		t.Errorf("july total %d, want 0", july.Total)
	}
	// Other hit months unaffected.
	if buckets[3].Total != 5000 || buckets[9].Total != 5000 {
		t.Errorf("april/october totals affected: %d, %d", buckets[3].Total, buckets[9].Total)
	}
}

func TestExpandRangeClearedOverrideIsInvisible(t *testing.T) {
	// An override row with every effect unset behaves exactly like no
	// override at all.
	overrides := map[int64]OverrideSet{
		1: {
			MustMonth("2024-01"): {ItemID: 1, Month: MustMonth("2024-01")},
		},
	}
	buckets := ExpandRange([]BudgetItem{quarterlyItem()}, overrides, MustMonth("2024-01"), MustMonth("2024-01"))
	occ := buckets[0].Items[0]
	if occ.HasOverride {
		t.Error("cleared override must not report hasOverride")
	}
	if occ.Amount != 5000 || occ.Skipped {
		t.Errorf("cleared override changed the occurrence: %+v", occ)
	}
}

func TestExpandRangeInvalidRange(t *testing.T) {
	buckets := ExpandRange([]BudgetItem{quarterlyItem()}, nil, MustMonth("2024-12"), MustMonth("2024-01"))
	if len(buckets) != 0 {
		t.Fatalf("reversed range: got %d buckets, want 0", len(buckets))
	}
}

func TestExpandRangeWindowFiltering(t *testing.T) {
	ended := quarterlyItem()
	ended.ID = 2
	ended.EndMonth = monthPtr("2023-12")
	future := quarterlyItem()
	future.ID = 3
	future.StartMonth = MustMonth("2025-06")

	buckets := ExpandRange([]BudgetItem{ended, future}, nil, MustMonth("2024-01"), MustMonth("2024-12"))
	for _, b := range buckets {
		if len(b.Items) != 0 {
			t.Fatalf("%s: expected no occurrences, got %+v", b.Month, b.Items)
		}
	}
}

func TestExpandRangeMultipleItemsShareBucket(t *testing.T) {
	rent := BudgetItem{
		ID: 10, Title: "Stallleie", Amount: 3000, Recurring: true,
		StartMonth: MustMonth("2024-01"),
	}
	oneOff := BudgetItem{
		ID: 11, Title: "Sal", Amount: 12000,
		StartMonth: MustMonth("2024-02"), AnchorDay: 10,
	}
	buckets := ExpandRange([]BudgetItem{rent, oneOff}, nil, MustMonth("2024-01"), MustMonth("2024-03"))

	wantTotals := []int64{3000, 15000, 3000}
	wantCounts := []int{1, 2, 1}
	for i, b := range buckets {
		if b.Total != wantTotals[i] {
			t.Errorf("%s: total %d, want %d", b.Month, b.Total, wantTotals[i])
		}
		if len(b.Items) != wantCounts[i] {
			t.Errorf("%s: %d items, want %d", b.Month, len(b.Items), wantCounts[i])
		}
	}
	// Items appear in input order within a bucket.
	feb := buckets[1]
	if feb.Items[0].ItemID != 10 || feb.Items[1].ItemID != 11 {
		t.Errorf("february ordering: %+v", feb.Items)
	}
	if feb.Items[1].Day != 10 {
		t.Errorf("one-off day %d, want anchor 10", feb.Items[1].Day)
	}
}

func TestExpandRangeIdempotence(t *testing.T) {
	items := []BudgetItem{quarterlyItem()}
	overrides := map[int64]OverrideSet{
		1: {
			MustMonth("2024-07"): {ItemID: 1, Month: MustMonth("2024-07"), Skip: true},
		},
	}
	first := ExpandRange(items, overrides, MustMonth("2024-01"), MustMonth("2024-12"))
	second := ExpandRange(items, overrides, MustMonth("2024-01"), MustMonth("2024-12"))
	if !reflect.DeepEqual(first, second) {
		t.Fatal("identical inputs produced different output")
	}
}

func TestExpandRangeWeeklyOccurrences(t *testing.T) {
	item := BudgetItem{
		ID: 4, Title: "Ridetime", Amount: 650, Recurring: true,
		StartMonth: MustMonth("2024-01"), IntervalWeeks: 1, Weekday: 6,
	}
	buckets := ExpandRange([]BudgetItem{item}, nil, MustMonth("2024-01"), MustMonth("2024-01"))
	if len(buckets) != 1 {
		t.Fatalf("got %d buckets, want 1", len(buckets))
	}
	// Saturdays in January 2024: 6, 13, 20, 27.
	if len(buckets[0].Items) != 4 {
		t.Fatalf("got %d occurrences, want 4: %+v", len(buckets[0].Items), buckets[0].Items)
	}
	if buckets[0].Total != 4*650 {
		t.Errorf("total %d, want %d", buckets[0].Total, 4*650)
	}
	for i, occ := range buckets[0].Items {
		if occ.IntervalMonths != 0 {
			t.Errorf("occurrence %d: weekly item reports intervalMonths %d", i, occ.IntervalMonths)
		}
	}
}
