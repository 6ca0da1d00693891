package services

import (
	"context"
	"errors"
	"testing"

	"budsjett/internal/core"
)

// fakeStore is an in-memory PlanStore and ProjectionStore.
type fakeStore struct {
	accounts  map[int64]core.Account
	items     map[int64]core.BudgetItem
	overrides map[int64]core.OverrideSet
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:  map[int64]core.Account{},
		items:     map[int64]core.BudgetItem{},
		overrides: map[int64]core.OverrideSet{},
		nextID:    1,
	}
}

func (f *fakeStore) CreateAccount(_ context.Context, name, owner string) (core.Account, error) {
	a := core.Account{ID: f.nextID, Name: name, Owner: owner}
	f.nextID++
	f.accounts[a.ID] = a
	return a, nil
}

func (f *fakeStore) GetAccount(_ context.Context, id int64) (core.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) CreateItem(_ context.Context, it core.BudgetItem) (core.BudgetItem, error) {
	it.ID = f.nextID
	f.nextID++
	f.items[it.ID] = it
	return it, nil
}

func (f *fakeStore) GetItem(_ context.Context, id int64) (core.BudgetItem, error) {
	it, ok := f.items[id]
	if !ok {
		return core.BudgetItem{}, core.ErrNotFound
	}
	return it, nil
}

func (f *fakeStore) ListItems(_ context.Context, accountID int64) ([]core.BudgetItem, error) {
	var items []core.BudgetItem
	for id := int64(0); id < f.nextID; id++ {
		if it, ok := f.items[id]; ok && it.AccountID == accountID {
			items = append(items, it)
		}
	}
	return items, nil
}

func (f *fakeStore) ListItemsForRange(ctx context.Context, accountID int64, from, to core.Month) ([]core.BudgetItem, error) {
	all, _ := f.ListItems(ctx, accountID)
	var items []core.BudgetItem
	for _, it := range all {
		if it.StartMonth.After(to) {
			continue
		}
		if it.EndMonth != nil && it.EndMonth.Before(from) {
			continue
		}
		items = append(items, it)
	}
	return items, nil
}

func (f *fakeStore) UpdateItem(_ context.Context, it core.BudgetItem) error {
	if _, ok := f.items[it.ID]; !ok {
		return core.ErrNotFound
	}
	f.items[it.ID] = it
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return core.ErrNotFound
	}
	delete(f.items, id)
	delete(f.overrides, id)
	return nil
}

func (f *fakeStore) UpsertOverride(_ context.Context, o core.BudgetOverride) error {
	set := f.overrides[o.ItemID]
	if o.Empty() {
		delete(set, o.Month)
		return nil
	}
	if set == nil {
		set = core.OverrideSet{}
		f.overrides[o.ItemID] = set
	}
	set[o.Month] = o
	return nil
}

func (f *fakeStore) ListOverridesForRange(_ context.Context, accountID int64, from, to core.Month) (map[int64]core.OverrideSet, error) {
	result := map[int64]core.OverrideSet{}
	for itemID, set := range f.overrides {
		it, ok := f.items[itemID]
		if !ok || it.AccountID != accountID {
			continue
		}
		for m, o := range set {
			if m.Before(from) || m.After(to) {
				continue
			}
			if result[itemID] == nil {
				result[itemID] = core.OverrideSet{}
			}
			result[itemID][m] = o
		}
	}
	return result, nil
}

type fakePublisher struct {
	published []int64
}

func (p *fakePublisher) PublishPlanChanged(_ context.Context, accountID int64) error {
	p.published = append(p.published, accountID)
	return nil
}

func seedAccount(t *testing.T, store *fakeStore, owner string) core.Account {
	t.Helper()
	a, err := store.CreateAccount(context.Background(), "Husholdning", owner)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a
}

func validItem(accountID int64) core.BudgetItem {
	return core.BudgetItem{
		AccountID:      accountID,
		Title:          "Strøm",
		Category:       "utilities",
		Amount:         -1200,
		Recurring:      true,
		StartMonth:     core.MustMonth("2024-01"),
		IntervalMonths: 1,
		AnchorDay:      20,
	}
}

func TestPlanServiceCreateAccountRejectsEmptyName(t *testing.T) {
	svc := NewPlanService(newFakeStore(), nil)

	_, err := svc.CreateAccount(context.Background(), "   ", "alice")
	if !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestPlanServiceOwnershipChecks(t *testing.T) {
	store := newFakeStore()
	svc := NewPlanService(store, nil)
	account := seedAccount(t, store, "alice")

	created, err := svc.CreateItem(context.Background(), "alice", validItem(account.ID))
	if err != nil {
		t.Fatalf("create item as owner: %v", err)
	}

	if _, err := svc.GetAccount(context.Background(), "mallory", account.ID); !errors.Is(err, core.ErrAccessDenied) {
		t.Errorf("foreign account access: expected ErrAccessDenied, got %v", err)
	}
	if _, err := svc.GetItem(context.Background(), "mallory", created.ID); !errors.Is(err, core.ErrAccessDenied) {
		t.Errorf("foreign item access: expected ErrAccessDenied, got %v", err)
	}
	if _, err := svc.CreateItem(context.Background(), "mallory", validItem(account.ID)); !errors.Is(err, core.ErrAccessDenied) {
		t.Errorf("foreign item create: expected ErrAccessDenied, got %v", err)
	}
	if err := svc.DeleteItem(context.Background(), "mallory", created.ID); !errors.Is(err, core.ErrAccessDenied) {
		t.Errorf("foreign item delete: expected ErrAccessDenied, got %v", err)
	}
	if _, err := svc.GetItem(context.Background(), "alice", 999); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("missing item: expected ErrNotFound, got %v", err)
	}
}

func TestPlanServiceCreateItemValidates(t *testing.T) {
	store := newFakeStore()
	svc := NewPlanService(store, nil)
	account := seedAccount(t, store, "alice")

	bad := validItem(account.ID)
	bad.Title = ""
	if _, err := svc.CreateItem(context.Background(), "alice", bad); !errors.Is(err, core.ErrEmptyTitle) {
		t.Errorf("expected ErrEmptyTitle, got %v", err)
	}

	bad = validItem(account.ID)
	bad.IntervalWeeks = 2 // weekday missing
	if _, err := svc.CreateItem(context.Background(), "alice", bad); !errors.Is(err, core.ErrInvalidWeeklyFields) {
		t.Errorf("expected ErrInvalidWeeklyFields, got %v", err)
	}
}

func TestPlanServiceUpdateItemMergesPatch(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{}
	svc := NewPlanService(store, publisher)
	account := seedAccount(t, store, "alice")

	created, err := svc.CreateItem(context.Background(), "alice", validItem(account.ID))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	amount := int64(-1500)
	end := core.MustMonth("2024-12")
	updated, err := svc.UpdateItem(context.Background(), "alice", created.ID, ItemPatch{
		Amount:   &amount,
		EndMonth: &end,
	})
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if updated.Amount != -1500 {
		t.Errorf("expected amount -1500, got %d", updated.Amount)
	}
	if updated.EndMonth == nil || *updated.EndMonth != end {
		t.Errorf("expected end month %s, got %v", end, updated.EndMonth)
	}
	if updated.Title != created.Title {
		t.Errorf("untouched field changed: title %q -> %q", created.Title, updated.Title)
	}

	updated, err = svc.UpdateItem(context.Background(), "alice", created.ID, ItemPatch{ClearEndMonth: true})
	if err != nil {
		t.Fatalf("clear end month: %v", err)
	}
	if updated.EndMonth != nil {
		t.Errorf("expected cleared end month, got %v", *updated.EndMonth)
	}

	if len(publisher.published) != 3 {
		t.Errorf("expected 3 plan change messages, got %d", len(publisher.published))
	}
}

func TestPlanServiceUpdateItemRejectsInvalidMerge(t *testing.T) {
	store := newFakeStore()
	svc := NewPlanService(store, nil)
	account := seedAccount(t, store, "alice")

	created, err := svc.CreateItem(context.Background(), "alice", validItem(account.ID))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	end := core.MustMonth("2023-06") // before start
	if _, err := svc.UpdateItem(context.Background(), "alice", created.ID, ItemPatch{EndMonth: &end}); !errors.Is(err, core.ErrEndBeforeStart) {
		t.Errorf("expected ErrEndBeforeStart, got %v", err)
	}

	stored, _ := store.GetItem(context.Background(), created.ID)
	if stored.EndMonth != nil {
		t.Errorf("invalid patch must not be persisted, got end month %v", *stored.EndMonth)
	}
}

func TestPlanServiceSetOverrideClearsEmpty(t *testing.T) {
	store := newFakeStore()
	svc := NewPlanService(store, nil)
	account := seedAccount(t, store, "alice")

	created, err := svc.CreateItem(context.Background(), "alice", validItem(account.ID))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	m := core.MustMonth("2024-03")
	amount := int64(-900)
	if err := svc.SetOverride(context.Background(), "alice", core.BudgetOverride{
		ItemID: created.ID, Month: m, Amount: &amount,
	}); err != nil {
		t.Fatalf("set override: %v", err)
	}
	if _, ok := store.overrides[created.ID][m]; !ok {
		t.Fatal("override not stored")
	}

	if err := svc.SetOverride(context.Background(), "alice", core.BudgetOverride{
		ItemID: created.ID, Month: m,
	}); err != nil {
		t.Fatalf("clear override: %v", err)
	}
	if _, ok := store.overrides[created.ID][m]; ok {
		t.Error("empty override should delete the stored record")
	}
}

func TestProjectionServicePlan(t *testing.T) {
	store := newFakeStore()
	plan := NewPlanService(store, nil)
	proj := NewProjectionService(store)
	account := seedAccount(t, store, "alice")

	it := validItem(account.ID)
	it.IntervalMonths = 3
	created, err := plan.CreateItem(context.Background(), "alice", it)
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := plan.SetOverride(context.Background(), "alice", core.BudgetOverride{
		ItemID: created.ID, Month: core.MustMonth("2024-04"), Skip: true,
	}); err != nil {
		t.Fatalf("set override: %v", err)
	}

	buckets, err := proj.Plan(context.Background(), "alice", account.ID,
		core.MustMonth("2024-01"), core.MustMonth("2024-06"))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(buckets) != 6 {
		t.Fatalf("expected 6 buckets, got %d", len(buckets))
	}
	if buckets[0].Total != -1200 {
		t.Errorf("2024-01 total: expected -1200, got %d", buckets[0].Total)
	}
	if buckets[3].Total != 0 {
		t.Errorf("skipped 2024-04 total: expected 0, got %d", buckets[3].Total)
	}
	if len(buckets[3].Items) != 1 || !buckets[3].Items[0].Skipped {
		t.Errorf("skipped occurrence should stay visible, got %+v", buckets[3].Items)
	}
}

func TestProjectionServicePlanAuthorization(t *testing.T) {
	store := newFakeStore()
	proj := NewProjectionService(store)
	account := seedAccount(t, store, "alice")

	if _, err := proj.Plan(context.Background(), "mallory", account.ID,
		core.MustMonth("2024-01"), core.MustMonth("2024-03")); !errors.Is(err, core.ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
	if _, err := proj.Plan(context.Background(), "alice", 42,
		core.MustMonth("2024-01"), core.MustMonth("2024-03")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProjectionServicePlanReversedRange(t *testing.T) {
	store := newFakeStore()
	proj := NewProjectionService(store)
	account := seedAccount(t, store, "alice")

	buckets, err := proj.Plan(context.Background(), "alice", account.ID,
		core.MustMonth("2024-06"), core.MustMonth("2024-01"))
	if err != nil {
		t.Fatalf("reversed range must not error, got %v", err)
	}
	if len(buckets) != 0 {
		t.Errorf("expected empty bucket list, got %d buckets", len(buckets))
	}
}
