package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budsjett/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Override cascade on item deletion depends on foreign keys being
	// enforced, which sqlite leaves off by default.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateAccount stores a new parent account for budget items.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, name, owner string) (core.Account, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, owner) VALUES (?, ?)`, name, owner)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account insert id: %w", err)
	}

	slog.InfoContext(ctx, "Account created", "id", id, "name", name)
	return core.Account{ID: id, Name: name, Owner: owner}, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Owner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// ListAccountIDs returns every account id, used by the snapshot worker
// for periodic full refreshes.
func (r *SQLiteRepository) ListAccountIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list account ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account ids: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) CreateItem(ctx context.Context, it core.BudgetItem) (core.BudgetItem, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_items
			(account_id, title, category, emoji, notes, amount, recurring,
			 start_month, end_month, interval_months, interval_weeks, weekday, anchor_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.AccountID, it.Title, it.Category, it.Emoji, it.Notes, it.Amount, it.Recurring,
		it.StartMonth.String(), monthTextOrNil(it.EndMonth),
		it.IntervalMonths, it.IntervalWeeks, it.Weekday, it.AnchorDay)
	if err != nil {
		return core.BudgetItem{}, fmt.Errorf("create budget item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.BudgetItem{}, fmt.Errorf("budget item insert id: %w", err)
	}
	it.ID = id

	slog.InfoContext(ctx, "Budget item created",
		"id", it.ID,
		"account_id", it.AccountID,
		"title", it.Title,
		"amount", it.Amount,
		"recurring", it.Recurring)
	return it, nil
}

const itemColumns = `id, account_id, title, category, emoji, notes, amount, recurring,
	start_month, end_month, interval_months, interval_weeks, weekday, anchor_day`

func (r *SQLiteRepository) GetItem(ctx context.Context, id int64) (core.BudgetItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM budget_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetItem{}, core.ErrNotFound
	}
	if err != nil {
		return core.BudgetItem{}, fmt.Errorf("get budget item: %w", err)
	}
	return it, nil
}

// ListItems returns all items of an account in creation order.
func (r *SQLiteRepository) ListItems(ctx context.Context, accountID int64) ([]core.BudgetItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM budget_items WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list budget items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListItemsForRange returns only items whose validity window intersects
// [from, to]. Months are stored as "YYYY-MM" text, so lexicographic
// comparison matches chronological order.
func (r *SQLiteRepository) ListItemsForRange(ctx context.Context, accountID int64, from, to core.Month) ([]core.BudgetItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM budget_items
		WHERE account_id = ?
		  AND start_month <= ?
		  AND (end_month IS NULL OR end_month >= ?)
		ORDER BY id`,
		accountID, to.String(), from.String())
	if err != nil {
		return nil, fmt.Errorf("list budget items for range: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// UpdateItem writes the full item row. Partial-update merging happens
// in the service layer, which loads the current row first.
func (r *SQLiteRepository) UpdateItem(ctx context.Context, it core.BudgetItem) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budget_items SET
			title = ?, category = ?, emoji = ?, notes = ?, amount = ?, recurring = ?,
			start_month = ?, end_month = ?, interval_months = ?, interval_weeks = ?,
			weekday = ?, anchor_day = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		it.Title, it.Category, it.Emoji, it.Notes, it.Amount, it.Recurring,
		it.StartMonth.String(), monthTextOrNil(it.EndMonth),
		it.IntervalMonths, it.IntervalWeeks, it.Weekday, it.AnchorDay, it.ID)
	if err != nil {
		return fmt.Errorf("update budget item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update budget item rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

// DeleteItem removes an item; its overrides cascade.
func (r *SQLiteRepository) DeleteItem(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM budget_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete budget item rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Budget item deleted", "id", id)
	return nil
}

// UpsertOverride stores the override for (item, month). An override
// whose effects are all unset is deleted instead: clearing, not a no-op
// row.
func (r *SQLiteRepository) UpsertOverride(ctx context.Context, o core.BudgetOverride) error {
	if o.Empty() {
		_, err := r.db.ExecContext(ctx,
			`DELETE FROM budget_overrides WHERE item_id = ? AND month = ?`,
			o.ItemID, o.Month.String())
		if err != nil {
			return fmt.Errorf("clear override: %w", err)
		}
		slog.InfoContext(ctx, "Override cleared", "item_id", o.ItemID, "month", o.Month.String())
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budget_overrides (item_id, month, amount, skip, note)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (item_id, month) DO UPDATE SET
			amount = excluded.amount,
			skip = excluded.skip,
			note = excluded.note,
			updated_at = CURRENT_TIMESTAMP`,
		o.ItemID, o.Month.String(), o.Amount, o.Skip, o.Note)
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}

	slog.InfoContext(ctx, "Override upserted",
		"item_id", o.ItemID,
		"month", o.Month.String(),
		"skip", o.Skip)
	return nil
}

// ListOverridesForRange returns the overrides of an account's items
// restricted to [from, to], grouped per item. Overrides outside the
// range are deliberately not loaded.
func (r *SQLiteRepository) ListOverridesForRange(ctx context.Context, accountID int64, from, to core.Month) (map[int64]core.OverrideSet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.item_id, o.month, o.amount, o.skip, o.note
		FROM budget_overrides o
		JOIN budget_items i ON i.id = o.item_id
		WHERE i.account_id = ? AND o.month >= ? AND o.month <= ?
		ORDER BY o.item_id, o.month`,
		accountID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list overrides for range: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]core.OverrideSet)
	for rows.Next() {
		var (
			o         core.BudgetOverride
			monthText string
			amount    sql.NullInt64
			note      sql.NullString
		)
		if err := rows.Scan(&o.ItemID, &monthText, &amount, &o.Skip, &note); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		m, err := core.ParseMonth(monthText)
		if err != nil {
			return nil, fmt.Errorf("stored override month %q: %w", monthText, err)
		}
		o.Month = m
		if amount.Valid {
			o.Amount = &amount.Int64
		}
		if note.Valid {
			o.Note = &note.String
		}
		if result[o.ItemID] == nil {
			result[o.ItemID] = core.OverrideSet{}
		}
		result[o.ItemID][o.Month] = o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate overrides: %w", err)
	}
	return result, nil
}

// Snapshot is a precomputed projection payload for one account.
type Snapshot struct {
	AccountID  int64
	FromMonth  core.Month
	ToMonth    core.Month
	Payload    []byte
	ComputedAt time.Time
}

func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s Snapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO plan_snapshots (account_id, from_month, to_month, payload, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account_id) DO UPDATE SET
			from_month = excluded.from_month,
			to_month = excluded.to_month,
			payload = excluded.payload,
			computed_at = excluded.computed_at`,
		s.AccountID, s.FromMonth.String(), s.ToMonth.String(), string(s.Payload), s.ComputedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Plan snapshot saved",
		"account_id", s.AccountID,
		"from", s.FromMonth.String(),
		"to", s.ToMonth.String(),
		"bytes", len(s.Payload))
	return nil
}

func (r *SQLiteRepository) GetSnapshot(ctx context.Context, accountID int64) (Snapshot, error) {
	var (
		s        Snapshot
		from, to string
		payload  string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT account_id, from_month, to_month, payload, computed_at
		FROM plan_snapshots WHERE account_id = ?`, accountID).
		Scan(&s.AccountID, &from, &to, &payload, &s.ComputedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, core.ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	if s.FromMonth, err = core.ParseMonth(from); err != nil {
		return Snapshot{}, fmt.Errorf("stored snapshot from month %q: %w", from, err)
	}
	if s.ToMonth, err = core.ParseMonth(to); err != nil {
		return Snapshot{}, fmt.Errorf("stored snapshot to month %q: %w", to, err)
	}
	s.Payload = []byte(payload)
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (core.BudgetItem, error) {
	var (
		it         core.BudgetItem
		startMonth string
		endMonth   sql.NullString
	)
	err := row.Scan(&it.ID, &it.AccountID, &it.Title, &it.Category, &it.Emoji, &it.Notes,
		&it.Amount, &it.Recurring, &startMonth, &endMonth,
		&it.IntervalMonths, &it.IntervalWeeks, &it.Weekday, &it.AnchorDay)
	if err != nil {
		return core.BudgetItem{}, err
	}
	if it.StartMonth, err = core.ParseMonth(startMonth); err != nil {
		return core.BudgetItem{}, fmt.Errorf("stored start month %q: %w", startMonth, err)
	}
	if endMonth.Valid {
		end, err := core.ParseMonth(endMonth.String)
		if err != nil {
			return core.BudgetItem{}, fmt.Errorf("stored end month %q: %w", endMonth.String, err)
		}
		it.EndMonth = &end
	}
	return it, nil
}

func collectItems(rows *sql.Rows) ([]core.BudgetItem, error) {
	var items []core.BudgetItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budget items: %w", err)
	}
	return items, nil
}

func monthTextOrNil(m *core.Month) any {
	if m == nil {
		return nil
	}
	return m.String()
}
