package model

import "time"

// PricingMode selects how a session's play time is converted into a
// subtotal when no slot table applies.
type PricingMode string

const (
	PricePerHour   PricingMode = "per_hour"
	PricePerMinute PricingMode = "per_minute"
	PriceFixed     PricingMode = "fixed"
)

// SessionStatus tracks whether a session is still accruing time or
// has been billed.
type SessionStatus string

const (
	SessionActive    SessionStatus = "Active"
	SessionCompleted SessionStatus = "Completed"
)

// Segment is one contiguous interval of active play within a session.
// A nil EndedAt means the segment is still running.  Within a session
// at most one segment may be open and it is always the last one;
// segments are append-only.
//
// Fields:
//  ID        – primary key identifier.
//  SessionID – owning session.
//  Seq       – zero-based position within the session.
//  StartedAt – when play (re)started.
//  EndedAt   – when play paused or ended; nil while running.
type Segment struct {
	ID        uint64     // session_segments.id
	SessionID uint64     // session_segments.session_id
	Seq       int        // session_segments.seq
	StartedAt time.Time  // session_segments.started_at
	EndedAt   *time.Time // session_segments.ended_at (nullable)
}

// Session represents a row in the `sessions` table together with its
// ordered segments.  The rate, minimum charge and tax rate are
// snapshotted at creation time so that later pricing configuration
// edits never change the bill of an in-progress or historical
// session.
//
// Fields:
//  ID               – primary key identifier.
//  TableID          – table this session belongs to for its lifetime.
//  StartedAt        – when the session was started.
//  EndedAt          – when the session was ended; nil while active.
//  PricingMode      – per_hour, per_minute or fixed.
//  Players          – number of players.
//  TimeLimitMinutes – 0 means unlimited.
//  HourlyRateAtStart – rate snapshot taken at Start.
//  MinChargeAtStart  – minimum charge snapshot taken at Start.
//  TaxRateAtStart    – tax percentage snapshot taken at Start.
//  Segments         – ordered play intervals.
//  Subtotal         – billed amount before tax (set at End).
//  TaxAmount        – tax on the subtotal (set at End).
//  TotalAmount      – subtotal plus tax (set at End).
//  PaymentMethod    – how the bill was settled; nil until Clear.
//  HandledBy        – staff member who ended the session.
//  Status           – Active or Completed.
type Session struct {
	ID                uint64        // sessions.id
	TableID           uint64        // sessions.table_id
	StartedAt         time.Time     // sessions.started_at
	EndedAt           *time.Time    // sessions.ended_at (nullable)
	PricingMode       PricingMode   // sessions.pricing_mode
	Players           int           // sessions.players
	TimeLimitMinutes  int           // sessions.time_limit_minutes
	HourlyRateAtStart float64       // sessions.hourly_rate_at_start
	MinChargeAtStart  float64       // sessions.min_charge_at_start
	TaxRateAtStart    float64       // sessions.tax_rate_at_start
	Segments          []Segment     // session_segments rows ordered by seq
	Subtotal          float64       // sessions.subtotal
	TaxAmount         float64       // sessions.tax_amount
	TotalAmount       float64       // sessions.total_amount
	PaymentMethod     *string       // sessions.payment_method (nullable)
	HandledBy         *uint64       // sessions.handled_by (nullable)
	Status            SessionStatus // sessions.status
	CreatedAt         time.Time     // sessions.created_at
	UpdatedAt         time.Time     // sessions.updated_at
}
