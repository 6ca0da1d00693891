package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"budsjett/internal/amqp"
	"budsjett/internal/core"
	"budsjett/internal/storage"
)

// SnapshotStore is the storage surface the snapshot worker needs.
type SnapshotStore interface {
	ListAccountIDs(ctx context.Context) ([]int64, error)
	ListItemsForRange(ctx context.Context, accountID int64, from, to core.Month) ([]core.BudgetItem, error)
	ListOverridesForRange(ctx context.Context, accountID int64, from, to core.Month) (map[int64]core.OverrideSet, error)
	SaveSnapshot(ctx context.Context, s storage.Snapshot) error
}

// SnapshotWorker precomputes plan projections and stores them as JSON
// payloads, one per account. It reacts to plan change messages and also
// refreshes all accounts periodically so missed messages heal themselves.
type SnapshotWorker struct {
	store         SnapshotStore
	horizonMonths int
}

func NewSnapshotWorker(store SnapshotStore, horizonMonths int) *SnapshotWorker {
	return &SnapshotWorker{
		store:         store,
		horizonMonths: horizonMonths,
	}
}

// HandlePlanChanged recomputes the snapshot of the account named in a
// plan change message, anchored at the current month.
func (w *SnapshotWorker) HandlePlanChanged(ctx context.Context, msg *amqp.PlanChangedMessage) error {
	slog.InfoContext(ctx, "Processing plan change", "account_id", msg.AccountID)
	return w.RefreshAccount(ctx, msg.AccountID, core.MonthOf(time.Now().UTC()))
}

// RefreshAccount recomputes and stores the projection of one account for
// the horizon starting at from.
func (w *SnapshotWorker) RefreshAccount(ctx context.Context, accountID int64, from core.Month) error {
	to := from.Add(w.horizonMonths - 1)

	items, err := w.store.ListItemsForRange(ctx, accountID, from, to)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	overrides, err := w.store.ListOverridesForRange(ctx, accountID, from, to)
	if err != nil {
		return fmt.Errorf("load overrides: %w", err)
	}

	buckets := core.ExpandRange(items, overrides, from, to)
	payload, err := json.Marshal(buckets)
	if err != nil {
		return fmt.Errorf("marshal projection: %w", err)
	}

	err = w.store.SaveSnapshot(ctx, storage.Snapshot{
		AccountID:  accountID,
		FromMonth:  from,
		ToMonth:    to,
		Payload:    payload,
		ComputedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot refreshed",
		"account_id", accountID,
		"from", from.String(),
		"to", to.String(),
		"months", w.horizonMonths)
	return nil
}

// RefreshAll recomputes every account's snapshot. Failures on single
// accounts are logged and skipped so one bad account cannot stall the
// periodic refresh.
func (w *SnapshotWorker) RefreshAll(ctx context.Context) error {
	ids, err := w.store.ListAccountIDs(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	from := core.MonthOf(time.Now().UTC())
	refreshed := 0
	for _, id := range ids {
		if err := w.RefreshAccount(ctx, id, from); err != nil {
			slog.ErrorContext(ctx, "Failed to refresh snapshot", "account_id", id, "error", err)
			continue
		}
		refreshed++
	}

	slog.InfoContext(ctx, "Periodic snapshot refresh completed",
		"accounts", len(ids),
		"refreshed", refreshed)
	return nil
}
