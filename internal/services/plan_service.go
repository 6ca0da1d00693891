package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"budsjett/internal/core"
)

// PlanService orchestrates account, item and override mutations. Every
// operation authorizes the caller against the owning account before
// touching anything, and publishes a plan change message after a
// successful write so snapshot consumers can recompute.
type PlanService struct {
	store     PlanStore
	publisher PlanPublisher
}

func NewPlanService(store PlanStore, publisher PlanPublisher) *PlanService {
	return &PlanService{
		store:     store,
		publisher: publisher,
	}
}

func (s *PlanService) CreateAccount(ctx context.Context, name, owner string) (core.Account, error) {
	if strings.TrimSpace(name) == "" {
		return core.Account{}, core.ErrEmptyName
	}
	account, err := s.store.CreateAccount(ctx, name, owner)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

func (s *PlanService) GetAccount(ctx context.Context, owner string, id int64) (core.Account, error) {
	return s.authorizeAccount(ctx, owner, id)
}

// CreateItem validates and stores a new budget item under an account the
// caller owns.
func (s *PlanService) CreateItem(ctx context.Context, owner string, it core.BudgetItem) (core.BudgetItem, error) {
	if _, err := s.authorizeAccount(ctx, owner, it.AccountID); err != nil {
		return core.BudgetItem{}, err
	}
	if err := it.Validate(); err != nil {
		return core.BudgetItem{}, err
	}

	created, err := s.store.CreateItem(ctx, it)
	if err != nil {
		return core.BudgetItem{}, fmt.Errorf("create item: %w", err)
	}

	s.publishPlanChanged(ctx, created.AccountID)
	return created, nil
}

func (s *PlanService) GetItem(ctx context.Context, owner string, id int64) (core.BudgetItem, error) {
	return s.authorizeItem(ctx, owner, id)
}

func (s *PlanService) ListItems(ctx context.Context, owner string, accountID int64) ([]core.BudgetItem, error) {
	if _, err := s.authorizeAccount(ctx, owner, accountID); err != nil {
		return nil, err
	}
	items, err := s.store.ListItems(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if items == nil {
		items = []core.BudgetItem{}
	}
	return items, nil
}

// ItemPatch is a partial update. Nil fields keep their current value;
// ClearEndMonth removes the end month and wins over EndMonth.
type ItemPatch struct {
	Title          *string
	Category       *string
	Emoji          *string
	Notes          *string
	Amount         *int64
	Recurring      *bool
	StartMonth     *core.Month
	EndMonth       *core.Month
	ClearEndMonth  bool
	IntervalMonths *int
	IntervalWeeks  *int
	Weekday        *int
	AnchorDay      *int
}

func (p ItemPatch) apply(it core.BudgetItem) core.BudgetItem {
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Category != nil {
		it.Category = *p.Category
	}
	if p.Emoji != nil {
		it.Emoji = *p.Emoji
	}
	if p.Notes != nil {
		it.Notes = *p.Notes
	}
	if p.Amount != nil {
		it.Amount = *p.Amount
	}
	if p.Recurring != nil {
		it.Recurring = *p.Recurring
	}
	if p.StartMonth != nil {
		it.StartMonth = *p.StartMonth
	}
	if p.ClearEndMonth {
		it.EndMonth = nil
	} else if p.EndMonth != nil {
		end := *p.EndMonth
		it.EndMonth = &end
	}
	if p.IntervalMonths != nil {
		it.IntervalMonths = *p.IntervalMonths
	}
	if p.IntervalWeeks != nil {
		it.IntervalWeeks = *p.IntervalWeeks
	}
	if p.Weekday != nil {
		it.Weekday = *p.Weekday
	}
	if p.AnchorDay != nil {
		it.AnchorDay = *p.AnchorDay
	}
	return it
}

// UpdateItem merges the patch into the stored item, re-validates and
// writes the full row back.
func (s *PlanService) UpdateItem(ctx context.Context, owner string, id int64, patch ItemPatch) (core.BudgetItem, error) {
	current, err := s.authorizeItem(ctx, owner, id)
	if err != nil {
		return core.BudgetItem{}, err
	}

	updated := patch.apply(current)
	if err := updated.Validate(); err != nil {
		return core.BudgetItem{}, err
	}
	if err := s.store.UpdateItem(ctx, updated); err != nil {
		return core.BudgetItem{}, fmt.Errorf("update item: %w", err)
	}

	s.publishPlanChanged(ctx, updated.AccountID)
	return updated, nil
}

func (s *PlanService) DeleteItem(ctx context.Context, owner string, id int64) error {
	it, err := s.authorizeItem(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	s.publishPlanChanged(ctx, it.AccountID)
	return nil
}

// SetOverride upserts the per-month exception for an item. An override
// with no effects clears any stored record for that month.
func (s *PlanService) SetOverride(ctx context.Context, owner string, o core.BudgetOverride) error {
	it, err := s.authorizeItem(ctx, owner, o.ItemID)
	if err != nil {
		return err
	}
	if err := s.store.UpsertOverride(ctx, o); err != nil {
		return fmt.Errorf("set override: %w", err)
	}

	s.publishPlanChanged(ctx, it.AccountID)
	return nil
}

func (s *PlanService) authorizeAccount(ctx context.Context, owner string, accountID int64) (core.Account, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return core.Account{}, err
	}
	if account.Owner != owner {
		return core.Account{}, core.ErrAccessDenied
	}
	return account, nil
}

func (s *PlanService) authorizeItem(ctx context.Context, owner string, itemID int64) (core.BudgetItem, error) {
	it, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return core.BudgetItem{}, err
	}
	if _, err := s.authorizeAccount(ctx, owner, it.AccountID); err != nil {
		return core.BudgetItem{}, err
	}
	return it, nil
}

func (s *PlanService) publishPlanChanged(ctx context.Context, accountID int64) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Plan publisher not available, skipping change message")
		return
	}
	if err := s.publisher.PublishPlanChanged(ctx, accountID); err != nil {
		// Writes are already durable, the snapshot refresh loop will
		// catch up, so a publish failure never fails the request.
		slog.ErrorContext(ctx, "Failed to publish plan change",
			"account_id", accountID, "error", err)
	}
}
