// Package queue defines message payloads exchanged over the message broker.
package queue

import "github.com/cueclub/table-service/internal/model"

// Event names published to the table.events queue. Clients must treat
// every table_update snapshot as authoritative and never accumulate
// deltas; delivery is best-effort and at-least-once.
const (
	EventTableUpdate  = "table_update"
	EventNotification = "notification"
)

// TimeOverNotification is a one-shot alert emitted when the broadcast
// loop flips a table to Time Over. It carries enough text for a
// display client to show the alert without querying the database.
type TimeOverNotification struct {
	Type      string `json:"type"` // always "TIME_OVER"
	TableName string `json:"table_name"`
	Message   string `json:"message"`
}

// TableState is one entry of a full-state snapshot: a table together
// with its linked session, if any.
type TableState struct {
	Table   *model.Table   `json:"table"`
	Session *model.Session `json:"session,omitempty"`
}

// Envelope wraps a payload with its event name for transport over a
// single queue.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}
