// Package broadcast runs the recurring tick that keeps viewers in
// sync with table state. Each tick detects time-limit breaches on
// running tables and publishes a full snapshot of every table to all
// subscribers. The scheduler owns no globals: the clock and the
// publish sink are injected so tests can drive ticks directly.
package broadcast

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cueclub/table-service/internal/model"
	"github.com/cueclub/table-service/internal/play"
	"github.com/cueclub/table-service/internal/queue"
)

// Publisher delivers events to connected viewers. Delivery is
// best-effort; a publish failure is logged and the tick carries on.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
}

// Store is the read side the scheduler needs: live tables with their
// sessions, and the complete set for the snapshot.
type Store interface {
	TablesByStatus(ctx context.Context, statuses ...model.TableStatus) ([]*model.Table, error)
	AllTables(ctx context.Context) ([]*model.Table, error)
	SessionByID(ctx context.Context, id uint64) (*model.Session, error)
}

// Scheduler drives the periodic broadcast. Time Over transitions go
// through the state machine so they serialize with staff actions on
// the same table lock.
type Scheduler struct {
	store    Store
	machine  *play.Machine
	pub      Publisher
	interval time.Duration
	now      func() time.Time
}

// New constructs a Scheduler. A zero interval defaults to two
// seconds; a nil clock defaults to time.Now.
func New(store Store, machine *play.Machine, pub Publisher, interval time.Duration, clock func() time.Time) *Scheduler {
	if store == nil || machine == nil || pub == nil {
		panic("nil dependency passed to broadcast.New")
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{store: store, machine: machine, pub: pub, interval: interval, now: clock}
}

// Run ticks until ctx is cancelled. Tick errors are logged, never
// fatal: a broken tick must not take the broadcast loop down.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := s.Tick(ctx, s.now()); err != nil {
				log.Printf("broadcast: tick failed: %v", err)
			}
		}
	}
}

// Tick performs one broadcast round at now. It returns the names of
// tables flipped to Time Over this round and the snapshot that was
// published. A persistence failure on one table skips that table and
// continues with the rest; only a failure to list tables aborts the
// tick.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) ([]string, []queue.TableState, error) {
	live, err := s.store.TablesByStatus(ctx, model.StatusRunning, model.StatusPaused, model.StatusTimeOver)
	if err != nil {
		return nil, nil, fmt.Errorf("list live tables: %w", err)
	}

	var flipped []string
	for _, t := range live {
		if t.Status != model.StatusRunning || t.CurrentSessionID == nil {
			continue
		}
		over, err := s.machine.MarkTimeOver(ctx, t.ID, now)
		if err != nil {
			log.Printf("broadcast: time-over check for table %d failed: %v", t.ID, err)
			continue
		}
		if !over {
			continue
		}
		flipped = append(flipped, t.Name)
		note := queue.TimeOverNotification{
			Type:      "TIME_OVER",
			TableName: t.Name,
			Message:   fmt.Sprintf("%s has finished its allotted time!", t.Name),
		}
		if err := s.pub.Publish(ctx, queue.EventNotification, note); err != nil {
			log.Printf("broadcast: publish notification for %q failed: %v", t.Name, err)
		}
	}

	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return flipped, nil, err
	}
	if err := s.pub.Publish(ctx, queue.EventTableUpdate, snapshot); err != nil {
		log.Printf("broadcast: publish snapshot failed: %v", err)
	}
	return flipped, snapshot, nil
}

// snapshot loads every table with its linked session. A session that
// fails to load leaves the table in the snapshot without it rather
// than dropping the table.
func (s *Scheduler) snapshot(ctx context.Context) ([]queue.TableState, error) {
	tables, err := s.store.AllTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	states := make([]queue.TableState, 0, len(tables))
	for _, t := range tables {
		state := queue.TableState{Table: t}
		if t.CurrentSessionID != nil {
			session, err := s.store.SessionByID(ctx, *t.CurrentSessionID)
			if err != nil {
				log.Printf("broadcast: load session %d failed: %v", *t.CurrentSessionID, err)
			} else {
				state.Session = session
			}
		}
		states = append(states, state)
	}
	return states, nil
}
