package services

import (
	"context"

	"budsjett/internal/core"
)

// PlanStore is the persistence surface the plan service mutates.
type PlanStore interface {
	CreateAccount(ctx context.Context, name, owner string) (core.Account, error)
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	CreateItem(ctx context.Context, it core.BudgetItem) (core.BudgetItem, error)
	GetItem(ctx context.Context, id int64) (core.BudgetItem, error)
	ListItems(ctx context.Context, accountID int64) ([]core.BudgetItem, error)
	UpdateItem(ctx context.Context, it core.BudgetItem) error
	DeleteItem(ctx context.Context, id int64) error
	UpsertOverride(ctx context.Context, o core.BudgetOverride) error
}

// ProjectionStore is the read-only surface projections are computed from.
type ProjectionStore interface {
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	ListItemsForRange(ctx context.Context, accountID int64, from, to core.Month) ([]core.BudgetItem, error)
	ListOverridesForRange(ctx context.Context, accountID int64, from, to core.Month) (map[int64]core.OverrideSet, error)
}

// PlanPublisher notifies downstream consumers that an account's plan changed.
type PlanPublisher interface {
	PublishPlanChanged(ctx context.Context, accountID int64) error
}
