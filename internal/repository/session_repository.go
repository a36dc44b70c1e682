package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cueclub/table-service/internal/model"
	"github.com/cueclub/table-service/internal/play"
)

// SessionRepo provides persistence for play sessions and their
// segments. Segments live in the session_segments table ordered by
// seq; the repository always loads and saves them together with the
// session so the monetary snapshot and the interval list round-trip
// exactly.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, table_id, started_at, ended_at, pricing_mode, players, time_limit_minutes,
	hourly_rate_at_start, min_charge_at_start, tax_rate_at_start, subtotal, tax_amount, total_amount,
	payment_method, handled_by, status, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	var s model.Session
	var endedAt sql.NullTime
	var payment sql.NullString
	var handledBy sql.NullInt64
	if err := row.Scan(&s.ID, &s.TableID, &s.StartedAt, &endedAt, &s.PricingMode, &s.Players,
		&s.TimeLimitMinutes, &s.HourlyRateAtStart, &s.MinChargeAtStart, &s.TaxRateAtStart,
		&s.Subtotal, &s.TaxAmount, &s.TotalAmount, &payment, &handledBy, &s.Status,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	if payment.Valid {
		p := payment.String
		s.PaymentMethod = &p
	}
	if handledBy.Valid {
		id := uint64(handledBy.Int64)
		s.HandledBy = &id
	}
	return &s, nil
}

// SessionByID loads one session with its ordered segments. A missing
// row maps to play.ErrNotFound.
func (r *SessionRepo) SessionByID(ctx context.Context, id uint64) (*model.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, play.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session %d: %w", id, err)
	}
	if s.Segments, err = r.segments(ctx, id); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepo) segments(ctx context.Context, sessionID uint64) ([]model.Segment, error) {
	const q = `SELECT id, session_id, seq, started_at, ended_at FROM session_segments
	           WHERE session_id = ? ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query segments of session %d: %w", sessionID, err)
	}
	defer rows.Close()
	var segs []model.Segment
	for rows.Next() {
		var seg model.Segment
		var ended sql.NullTime
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Seq, &seg.StartedAt, &ended); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			seg.EndedAt = &t
		}
		segs = append(segs, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return segs, nil
}

// CreateSession inserts a session with its initial segments inside a
// transaction and populates the generated IDs.
func (r *SessionRepo) CreateSession(ctx context.Context, s *model.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO sessions (table_id, started_at, pricing_mode, players, time_limit_minutes,
	           hourly_rate_at_start, min_charge_at_start, tax_rate_at_start, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.TableID, s.StartedAt.UTC(), string(s.PricingMode), s.Players,
		s.TimeLimitMinutes, s.HourlyRateAtStart, s.MinChargeAtStart, s.TaxRateAtStart, string(s.Status))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("session insert id: %w", err)
	}
	s.ID = uint64(id)

	for i := range s.Segments {
		s.Segments[i].SessionID = s.ID
		s.Segments[i].Seq = i
		if err := insertSegmentTx(ctx, tx, &s.Segments[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	committed = true
	return nil
}

func insertSegmentTx(ctx context.Context, tx *sql.Tx, seg *model.Segment) error {
	const q = `INSERT INTO session_segments (session_id, seq, started_at, ended_at) VALUES (?, ?, ?, ?)`
	var ended any
	if seg.EndedAt != nil {
		ended = seg.EndedAt.UTC()
	}
	res, err := tx.ExecContext(ctx, q, seg.SessionID, seg.Seq, seg.StartedAt.UTC(), ended)
	if err != nil {
		return fmt.Errorf("insert segment %d of session %d: %w", seg.Seq, seg.SessionID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("segment insert id: %w", err)
	}
	seg.ID = uint64(id)
	return nil
}

// SaveSession writes the session row and reconciles its segments in
// one transaction: existing segments are updated in place (closing an
// open segment), new ones appended (resume). Segments are never
// deleted.
func (r *SessionRepo) SaveSession(ctx context.Context, s *model.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var endedAt, payment, handledBy any
	if s.EndedAt != nil {
		endedAt = s.EndedAt.UTC()
	}
	if s.PaymentMethod != nil {
		payment = *s.PaymentMethod
	}
	if s.HandledBy != nil {
		handledBy = *s.HandledBy
	}
	const q = `UPDATE sessions SET ended_at = ?, subtotal = ?, tax_amount = ?, total_amount = ?,
	           payment_method = ?, handled_by = ?, status = ?, updated_at = UTC_TIMESTAMP()
	           WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, endedAt, s.Subtotal, s.TaxAmount, s.TotalAmount,
		payment, handledBy, string(s.Status), s.ID)
	if err != nil {
		return fmt.Errorf("update session %d: %w", s.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if exists, checkErr := r.sessionExistsTx(ctx, tx, s.ID); checkErr == nil && !exists {
			return fmt.Errorf("session %d: %w", s.ID, play.ErrNotFound)
		}
	}

	for i := range s.Segments {
		seg := &s.Segments[i]
		if seg.ID == 0 {
			seg.SessionID = s.ID
			seg.Seq = i
			if err := insertSegmentTx(ctx, tx, seg); err != nil {
				return err
			}
			continue
		}
		var ended any
		if seg.EndedAt != nil {
			ended = seg.EndedAt.UTC()
		}
		const uq = `UPDATE session_segments SET ended_at = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, uq, ended, seg.ID); err != nil {
			return fmt.Errorf("update segment %d: %w", seg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session %d: %w", s.ID, err)
	}
	committed = true
	return nil
}

func (r *SessionRepo) sessionExistsTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// CompletedSince lists completed sessions created at or after the
// given time, newest first, with their segments. Used for the daily
// history view.
func (r *SessionRepo) CompletedSince(ctx context.Context, since time.Time) ([]*model.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions
	      WHERE status = ? AND created_at >= ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, string(model.SessionCompleted), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query completed sessions: %w", err)
	}
	defer rows.Close()
	var out []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	for _, s := range out {
		if s.Segments, err = r.segments(ctx, s.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}
