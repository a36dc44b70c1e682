package model

import "time"

// Audit actions recorded on table state transitions.
const (
	AuditStart        = "START"
	AuditPause        = "PAUSE"
	AuditResume       = "RESUME"
	AuditEnd          = "END"
	AuditAutoEnd      = "AUTO_END"
	AuditBillPaid     = "BILL_PAID"
	AuditTableDeleted = "TABLE_DELETED"
	AuditTimeOver     = "TIME_OVER"
)

// AuditLog is an immutable record of a state transition, appended on
// every successful table operation.  The core only writes these
// entries; reading them is left to reporting tools.
//
// Fields:
//  ID        – primary key identifier.
//  TableID   – table the action was performed on.
//  SessionID – session involved, if any.
//  UserID    – staff member who performed the action; nil for
//              system-triggered transitions such as TIME_OVER.
//  Action    – one of the Audit* constants.
//  Details   – free-form human readable description.
//  CreatedAt – when the entry was recorded.
type AuditLog struct {
	ID        uint64    // audit_logs.id
	TableID   uint64    // audit_logs.table_id
	SessionID *uint64   // audit_logs.session_id (nullable)
	UserID    *uint64   // audit_logs.user_id (nullable)
	Action    string    // audit_logs.action
	Details   string    // audit_logs.details
	CreatedAt time.Time // audit_logs.created_at
}
