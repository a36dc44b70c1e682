// Package repository implements raw-SQL data access over *sql.DB.
// Query failures are wrapped with context; "row missing" and "status
// changed underneath us" conditions are reported through the play
// package sentinels so handlers and the state machine can classify
// them with errors.Is. All timestamps are stored in UTC.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cueclub/table-service/internal/model"
	"github.com/cueclub/table-service/internal/play"
)

// TableRepo provides persistence for billiard tables.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo returns a new TableRepo bound to the given database.
func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions
// spanning multiple repositories.
func (r *TableRepo) DB() *sql.DB { return r.db }

const tableColumns = `id, name, game_type, supported_types, status, hourly_rate, current_session_id, is_active, created_at, updated_at`

func scanTable(row interface{ Scan(...any) error }) (*model.Table, error) {
	var t model.Table
	var supported string
	var sessionID sql.NullInt64
	if err := row.Scan(&t.ID, &t.Name, &t.GameType, &supported, &t.Status,
		&t.HourlyRate, &sessionID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if sessionID.Valid {
		id := uint64(sessionID.Int64)
		t.CurrentSessionID = &id
	}
	t.SupportedTypes = splitGameTypes(supported)
	return &t, nil
}

// splitGameTypes decodes the CSV supported_types column.
func splitGameTypes(s string) []model.GameType {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]model.GameType, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, model.GameType(p))
		}
	}
	return out
}

// joinGameTypes encodes SupportedTypes for the CSV column.
func joinGameTypes(types []model.GameType) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, string(t))
	}
	return strings.Join(parts, ",")
}

// TableByID fetches one table. A missing row maps to play.ErrNotFound.
func (r *TableRepo) TableByID(ctx context.Context, id uint64) (*model.Table, error) {
	q := `SELECT ` + tableColumns + ` FROM tables WHERE id = ?`
	t, err := scanTable(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("table %d: %w", id, play.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query table %d: %w", id, err)
	}
	return t, nil
}

// AllTables returns every table ordered by name, including disabled
// ones. Used for the broadcast snapshot and the admin view.
func (r *TableRepo) AllTables(ctx context.Context) ([]*model.Table, error) {
	q := `SELECT ` + tableColumns + ` FROM tables ORDER BY name`
	return r.queryTables(ctx, q)
}

// ActiveTables returns tables visible on the staff floor view.
func (r *TableRepo) ActiveTables(ctx context.Context) ([]*model.Table, error) {
	q := `SELECT ` + tableColumns + ` FROM tables WHERE is_active = 1 ORDER BY name`
	return r.queryTables(ctx, q)
}

// TablesByStatus returns tables currently in any of the given
// statuses.
func (r *TableRepo) TablesByStatus(ctx context.Context, statuses ...model.TableStatus) ([]*model.Table, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	q := `SELECT ` + tableColumns + ` FROM tables WHERE status IN (` + placeholders + `) ORDER BY name`
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	return r.queryTables(ctx, q, args...)
}

func (r *TableRepo) queryTables(ctx context.Context, q string, args ...any) ([]*model.Table, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()
	var out []*model.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return out, nil
}

// Create inserts a new table and populates its generated ID.
func (r *TableRepo) Create(ctx context.Context, t *model.Table) error {
	if t.Status == "" {
		t.Status = model.StatusIdle
	}
	const q = `INSERT INTO tables (name, game_type, supported_types, status, hourly_rate, is_active)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.Name, string(t.GameType), joinGameTypes(t.SupportedTypes),
		string(t.Status), t.HourlyRate, t.IsActive)
	if err != nil {
		return fmt.Errorf("insert table: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("table insert id: %w", err)
	}
	t.ID = uint64(id)
	return nil
}

// Update writes admin-editable fields. It does not guard on status;
// lifecycle transitions must go through SaveTable.
func (r *TableRepo) Update(ctx context.Context, t *model.Table) error {
	const q = `UPDATE tables SET name = ?, game_type = ?, supported_types = ?, hourly_rate = ?, is_active = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, t.Name, string(t.GameType), joinGameTypes(t.SupportedTypes),
		t.HourlyRate, t.IsActive, t.ID)
	if err != nil {
		return fmt.Errorf("update table %d: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update table %d: %w", t.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("table %d: %w", t.ID, play.ErrNotFound)
	}
	return nil
}

// SaveTable persists a lifecycle transition with a compare-and-swap
// on the previous status. When another writer already moved the table
// out of `from`, zero rows match and the caller gets play.ErrConflict
// instead of silently overwriting the race winner.
func (r *TableRepo) SaveTable(ctx context.Context, t *model.Table, from model.TableStatus) error {
	var sessionID any
	if t.CurrentSessionID != nil {
		sessionID = *t.CurrentSessionID
	}
	const q = `UPDATE tables SET game_type = ?, status = ?, current_session_id = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, string(t.GameType), string(t.Status), sessionID, t.ID, string(from))
	if err != nil {
		return fmt.Errorf("save table %d: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save table %d: %w", t.ID, err)
	}
	if n == 0 {
		// Either the row vanished or its status moved on.
		if _, lookupErr := r.TableByID(ctx, t.ID); lookupErr != nil {
			return lookupErr
		}
		return fmt.Errorf("table %d left status %s: %w", t.ID, from, play.ErrConflict)
	}
	return nil
}

// DeleteTable removes a table row. Session history references the
// table by id only and survives the delete.
func (r *TableRepo) DeleteTable(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tables WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete table %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete table %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("table %d: %w", id, play.ErrNotFound)
	}
	return nil
}

// DeleteAll wipes the tables table. Only used by the seed endpoint.
func (r *TableRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tables`); err != nil {
		return fmt.Errorf("delete tables: %w", err)
	}
	return nil
}
