package model

import "time"

// TableStatus enumerates the lifecycle states of a billiard table.
// Tables start Idle, run a session through Running/Paused (and
// possibly TimeOver when a time limit is breached), reach Ended when
// the session is billed, and return to Idle once payment is cleared.
type TableStatus string

const (
	StatusIdle     TableStatus = "Idle"
	StatusRunning  TableStatus = "Running"
	StatusPaused   TableStatus = "Paused"
	StatusTimeOver TableStatus = "Time Over"
	StatusEnded    TableStatus = "Ended"
)

// GameType identifies the game currently configured on a table.
// Pricing rules are keyed by game type.
type GameType string

const (
	GamePool    GameType = "Pool"
	GameSnooker GameType = "Snooker"
)

// Table represents a row in the `tables` table.  A table links to at
// most one active session via CurrentSessionID; the link is cleared
// when the table is returned to Idle.  HourlyRate is the table-level
// fallback used when no pricing rule matches the game type.
//
// Fields:
//  ID               – primary key identifier.
//  Name             – display name (e.g. "Table 3").
//  GameType         – current/primary game type.
//  SupportedTypes   – game types this table can host.
//  Status           – lifecycle state (see TableStatus).
//  HourlyRate       – fallback hourly rate when no rule matches.
//  CurrentSessionID – active session, nil when Idle.
//  IsActive         – soft-disable flag for the staff view.
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Table struct {
	ID               uint64      // tables.id
	Name             string      // tables.name
	GameType         GameType    // tables.game_type
	SupportedTypes   []GameType  // tables.supported_types (CSV column)
	Status           TableStatus // tables.status
	HourlyRate       float64     // tables.hourly_rate
	CurrentSessionID *uint64     // tables.current_session_id (nullable)
	IsActive         bool        // tables.is_active
	CreatedAt        time.Time   // tables.created_at
	UpdatedAt        time.Time   // tables.updated_at
}

// Supports reports whether the table can host the given game type.
// An empty SupportedTypes list means the table only hosts its
// configured GameType.
func (t *Table) Supports(gt GameType) bool {
	if gt == t.GameType {
		return true
	}
	for _, s := range t.SupportedTypes {
		if s == gt {
			return true
		}
	}
	return false
}
