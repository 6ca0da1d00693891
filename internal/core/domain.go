package core

import (
	"errors"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")

	ErrEmptyName           = errors.New("empty account name")
	ErrEmptyTitle          = errors.New("empty title")
	ErrInvalidInterval     = errors.New("interval months must be between 1 and 12")
	ErrInvalidWeeklyFields = errors.New("interval weeks must be between 1 and 52 with weekday 1-7")
	ErrInvalidAnchorDay    = errors.New("anchor day must be between 1 and 31")
	ErrEndBeforeStart      = errors.New("end month must not precede start month")
)

// Account is the parent entity budget items hang off. Ownership checks
// compare the caller identity against Owner before any item access.
type Account struct {
	ID    int64
	Name  string
	Owner string
}

// BudgetItem is one declarative planned expense or income. Amounts are
// whole kroner; the sign distinguishes expenses from incomes.
type BudgetItem struct {
	ID        int64
	AccountID int64
	Title     string
	Category  string
	Emoji     string
	Notes     string
	Amount    int64

	Recurring  bool
	StartMonth Month
	EndMonth   *Month // nil = open-ended, inclusive when set

	// Recurrence tuning. Zero means unset; RuleOf resolves the
	// precedence between the monthly and weekly field groups.
	IntervalMonths int // 1-12
	IntervalWeeks  int // 1-52, weekly-mode together with Weekday
	Weekday        int // ISO: 1=Monday .. 7=Sunday
	AnchorDay      int // 1-31, clamped to the target month
}

func (it BudgetItem) Validate() error {
	if strings.TrimSpace(it.Title) == "" {
		return ErrEmptyTitle
	}
	if it.EndMonth != nil && it.EndMonth.Before(it.StartMonth) {
		return ErrEndBeforeStart
	}
	if it.IntervalMonths < 0 || it.IntervalMonths > 12 {
		return ErrInvalidInterval
	}
	if it.IntervalWeeks < 0 || it.IntervalWeeks > 52 || it.Weekday < 0 || it.Weekday > 7 {
		return ErrInvalidWeeklyFields
	}
	if it.IntervalWeeks > 0 && it.Weekday == 0 {
		return ErrInvalidWeeklyFields
	}
	if it.AnchorDay < 0 || it.AnchorDay > 31 {
		return ErrInvalidAnchorDay
	}
	return nil
}

// BudgetOverride is a per-month exception for one item: replace the
// amount, skip the occurrence, or attach a note. Unique per (item, month).
type BudgetOverride struct {
	ItemID int64
	Month  Month
	Amount *int64
	Skip   bool
	Note   *string
}

// Empty reports whether the override carries no effect at all. Upserting
// an empty override deletes the record rather than storing a no-op row.
func (o BudgetOverride) Empty() bool {
	return o.Amount == nil && !o.Skip && o.Note == nil
}

// Occurrence is one concrete instance of an item in a specific month,
// after override resolution. Computed, never persisted directly.
type Occurrence struct {
	ItemID         int64  `json:"budgetItemId"`
	Title          string `json:"title"`
	Category       string `json:"category"`
	Emoji          string `json:"emoji,omitempty"`
	BaseAmount     int64  `json:"baseAmount"`
	Amount         int64  `json:"amount"`
	Recurring      bool   `json:"isRecurring"`
	Month          Month  `json:"month"`
	Day            int    `json:"day"`
	IntervalMonths int    `json:"intervalMonths,omitempty"`
	HasOverride    bool   `json:"hasOverride"`
	Skipped        bool   `json:"skipped"`
	Note           string `json:"note,omitempty"`
}

// MonthBucket groups the occurrences of one calendar month. Total sums
// the amounts of non-skipped occurrences only.
type MonthBucket struct {
	Month Month        `json:"month"`
	Total int64        `json:"total"`
	Items []Occurrence `json:"items"`
}
