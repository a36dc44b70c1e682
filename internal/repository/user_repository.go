package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cueclub/table-service/internal/model"
	"github.com/cueclub/table-service/internal/play"
)

// UserRepo provides lookups for staff accounts. Account management
// itself lives outside this service; the repo only supports login and
// the last-active touch.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// ByUsername fetches a staff account by login name. A missing row
// maps to play.ErrNotFound.
func (r *UserRepo) ByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `SELECT id, username, password_hash, role, is_active, last_active, created_at, updated_at
	           FROM users WHERE username = ?`
	var u model.User
	var lastActive sql.NullTime
	err := r.db.QueryRowContext(ctx, q, username).Scan(&u.ID, &u.Username, &u.PasswordHash,
		&u.Role, &u.IsActive, &lastActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, play.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user %q: %w", username, err)
	}
	if lastActive.Valid {
		t := lastActive.Time
		u.LastActive = &t
	}
	return &u, nil
}

// TouchLastActive stamps the account's last successful login.
func (r *UserRepo) TouchLastActive(ctx context.Context, id uint64) error {
	const q = `UPDATE users SET last_active = UTC_TIMESTAMP() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("touch user %d: %w", id, err)
	}
	return nil
}
