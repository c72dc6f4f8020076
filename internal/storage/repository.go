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

	"boletim/internal/core"
	"boletim/internal/provider"

	_ "modernc.org/sqlite"
)

// MaxSyncAttempts bounds retries of a day that keeps failing to export.
const MaxSyncAttempts = 5

// Values of day_sync.status.
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
	StatusError   = "error"
)

var ErrUnknownItem = provider.ErrUnknownItem

type SQLiteRepository struct {
	db *sql.DB
}

// PendingDay is a day whose latest figures have not been exported yet.
type PendingDay struct {
	Date      core.Date
	Version   int64
	Attempts  int
	UpdatedAt time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
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

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SeedStructure inserts the structure when category_items is empty. It
// returns the number of inserted items.
func (r *SQLiteRepository) SeedStructure(ctx context.Context, items []provider.StructureItem) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM category_items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	if count > 0 {
		slog.DebugContext(ctx, "Structure already seeded", "items", count)
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO category_items (item_key, grp, header, header_pos, item_pos, label, daily_goal, monthly_goal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, it.Key, string(it.Group), it.Header, it.HeaderPos, it.ItemPos,
			it.Label, it.DailyGoal, it.MonthlyGoal); err != nil {
			return 0, fmt.Errorf("insert item %s: %w", it.Label, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}

	slog.InfoContext(ctx, "Structure seeded", "items", len(items))
	return len(items), nil
}

// Structure returns the active items in display order.
func (r *SQLiteRepository) Structure(ctx context.Context) ([]provider.StructureItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_key, grp, header, header_pos, item_pos, label, daily_goal, monthly_goal
		FROM category_items
		WHERE active = 1
		ORDER BY CASE grp WHEN 'specialties' THEN 0 ELSE 1 END, header_pos, item_pos`)
	if err != nil {
		return nil, fmt.Errorf("query structure: %w", err)
	}
	defer rows.Close()

	var out []provider.StructureItem
	for rows.Next() {
		var (
			it  provider.StructureItem
			grp string
		)
		if err := rows.Scan(&it.Key, &grp, &it.Header, &it.HeaderPos, &it.ItemPos, &it.Label,
			&it.DailyGoal, &it.MonthlyGoal); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Group = core.GroupKey(grp)
		out = append(out, it)
	}
	return out, rows.Err()
}

// LoadRecord implements provider.Store.
func (r *SQLiteRepository) LoadRecord(ctx context.Context, date core.Date) (*core.Record, error) {
	if err := date.Validate(); err != nil {
		return nil, err
	}

	structure, err := r.Structure(ctx)
	if err != nil {
		return nil, err
	}

	today, err := r.dayFigures(ctx, date)
	if err != nil {
		return nil, err
	}

	mtd, err := r.monthToDate(ctx, date)
	if err != nil {
		return nil, err
	}

	return provider.BuildRecord(date, structure, today, mtd), nil
}

func (r *SQLiteRepository) dayFigures(ctx context.Context, date core.Date) (map[string]core.Attendance, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_key, attended FROM attendance WHERE day = ?`, date.ISO())
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	out := map[string]core.Attendance{}
	for rows.Next() {
		var (
			key      string
			attended sql.NullInt64
		)
		if err := rows.Scan(&key, &attended); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		if attended.Valid {
			out[key] = core.Attended(int(attended.Int64))
		}
	}
	return out, rows.Err()
}

// monthToDate sums figures of the month strictly before date. Days are
// stored as yyyy-MM-dd so text ordering is date ordering.
func (r *SQLiteRepository) monthToDate(ctx context.Context, date core.Date) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_key, COALESCE(SUM(attended), 0)
		FROM attendance
		WHERE day >= ? AND day < ?
		GROUP BY item_key`, date.MonthStart().ISO(), date.ISO())
	if err != nil {
		return nil, fmt.Errorf("query month to date: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			key string
			sum int64
		)
		if err := rows.Scan(&key, &sum); err != nil {
			return nil, fmt.Errorf("scan month to date: %w", err)
		}
		out[key] = int(sum)
	}
	return out, rows.Err()
}

// WriteAttendance implements provider.Store. The day's figures are replaced
// and its sync version bumped in one transaction.
func (r *SQLiteRepository) WriteAttendance(ctx context.Context, date core.Date, values []provider.ItemAttendance) (int64, error) {
	if err := date.Validate(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin write: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance (day, item_key, attended)
		SELECT ?, item_key, ? FROM category_items WHERE item_key = ?
		ON CONFLICT (day, item_key) DO UPDATE SET
			attended = excluded.attended,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, fmt.Errorf("prepare write: %w", err)
	}
	defer stmt.Close()

	for _, v := range values {
		var attended sql.NullInt64
		if v.Attended.Valid() {
			attended = sql.NullInt64{Int64: int64(v.Attended.OrZero()), Valid: true}
		}
		res, err := stmt.ExecContext(ctx, date.ISO(), attended, v.Key)
		if err != nil {
			return 0, fmt.Errorf("write %s: %w", v.Key, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, fmt.Errorf("%w: %q", ErrUnknownItem, v.Key)
		}
	}

	var version int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO day_sync (day, version, status, attempts)
		VALUES (?, 1, ?, 0)
		ON CONFLICT (day) DO UPDATE SET
			version = day_sync.version + 1,
			status = excluded.status,
			attempts = 0,
			updated_at = CURRENT_TIMESTAMP
		RETURNING version`, date.ISO(), StatusPending).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("bump day version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit write: %w", err)
	}

	slog.InfoContext(ctx, "Attendance saved",
		"date", date.String(),
		"items", len(values),
		"version", version)
	return version, nil
}

// GetPendingSyncDays returns days waiting for export, oldest change first.
func (r *SQLiteRepository) GetPendingSyncDays(ctx context.Context, limit int) ([]PendingDay, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT day, version, attempts, updated_at
		FROM day_sync
		WHERE status IN (?, ?) AND attempts < ?
		ORDER BY updated_at, day
		LIMIT ?`, StatusPending, StatusError, MaxSyncAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync days: %w", err)
	}
	defer rows.Close()

	var out []PendingDay
	for rows.Next() {
		var (
			p   PendingDay
			day string
		)
		if err := rows.Scan(&day, &p.Version, &p.Attempts, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pending day: %w", err)
		}
		t, err := time.Parse(time.DateOnly, day)
		if err != nil {
			return nil, fmt.Errorf("parse stored day %q: %w", day, err)
		}
		p.Date = core.Date{Time: t}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks a day exported at version. A newer save leaves the day
// pending and this returns false.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, date core.Date, version int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE day_sync
		SET status = ?, synced_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE day = ? AND version = ?`, StatusSynced, date.ISO(), version)
	if err != nil {
		return false, fmt.Errorf("mark day synced: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		slog.InfoContext(ctx, "Day changed during sync, left pending", "date", date.String(), "version", version)
		return false, nil
	}

	slog.InfoContext(ctx, "Day marked as synced", "date", date.String(), "version", version)
	return true, nil
}

// MarkSyncError records a failed export attempt.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, date core.Date) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE day_sync
		SET status = ?, attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE day = ?`, StatusError, date.ISO())
	if err != nil {
		return fmt.Errorf("mark day sync error: %w", err)
	}

	slog.WarnContext(ctx, "Day marked with sync error", "date", date.String())
	return nil
}

// SyncStatus returns a day's sync status and version. ok is false when the
// day was never saved.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, date core.Date) (status string, version int64, ok bool, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT status, version FROM day_sync WHERE day = ?`, date.ISO()).Scan(&status, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("get sync status: %w", err)
	}
	return status, version, true, nil
}
