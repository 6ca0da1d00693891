package services

import (
	"context"
	"fmt"

	"budsjett/internal/core"
)

// ProjectionService expands an account's plan into per-month buckets.
// It is a thin authorization and data-loading shell around the pure
// expansion in core.
type ProjectionService struct {
	store ProjectionStore
}

func NewProjectionService(store ProjectionStore) *ProjectionService {
	return &ProjectionService{store: store}
}

// Plan returns one bucket per month of [from, to] for the account. A
// reversed range yields an empty slice, matching core.ExpandRange.
func (s *ProjectionService) Plan(ctx context.Context, owner string, accountID int64, from, to core.Month) ([]core.MonthBucket, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Owner != owner {
		return nil, core.ErrAccessDenied
	}
	if from.After(to) {
		return []core.MonthBucket{}, nil
	}

	items, err := s.store.ListItemsForRange(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	overrides, err := s.store.ListOverridesForRange(ctx, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}

	return core.ExpandRange(items, overrides, from, to), nil
}
