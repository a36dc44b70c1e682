package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cueclub/table-service/internal/model"
)

// AuditRepo appends immutable audit entries. The core only writes
// this table; it is read by reporting tools outside this service.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Record inserts one audit entry.
func (r *AuditRepo) Record(ctx context.Context, e model.AuditLog) error {
	var sessionID, userID any
	if e.SessionID != nil {
		sessionID = *e.SessionID
	}
	if e.UserID != nil {
		userID = *e.UserID
	}
	const q = `INSERT INTO audit_logs (table_id, session_id, user_id, action, details) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, e.TableID, sessionID, userID, e.Action, e.Details); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
