// Package play implements the table lifecycle: the segment-based
// play-time tracker and the state machine that moves tables between
// Idle, Running, Paused, Time Over and Ended. These sentinel values
// let handlers distinguish failure classes without inspecting
// messages. Storage failures are wrapped with fmt.Errorf("...: %w")
// and fall through as internal errors.
package play

import "errors"

// ErrNotFound is returned when a table or session id cannot be
// resolved. Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a transition guard is violated, for
// example pausing a table that is not Running, or when a concurrent
// writer already moved the table to a different status. Handlers
// should translate this into an HTTP 409 response. Conflicts are
// never retried internally; the caller must resubmit.
var ErrConflict = errors.New("conflict")

// ErrValidation is returned when required input is missing or
// malformed, such as an empty pause reason. Handlers should translate
// this into an HTTP 400 response.
var ErrValidation = errors.New("invalid input")
