package play

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cueclub/table-service/internal/model"
)

// memStore keeps tables and sessions in maps and hands out copies,
// the way a SQL repository hands out freshly scanned rows. SaveTable
// enforces the same status compare-and-swap the real repository does.
type memStore struct {
	tables   map[uint64]*model.Table
	sessions map[uint64]*model.Session
	nextID   uint64

	saveTableErr error
}

func newMemStore() *memStore {
	return &memStore{
		tables:   map[uint64]*model.Table{},
		sessions: map[uint64]*model.Session{},
	}
}

func (m *memStore) put(t model.Table) { cp := t; m.tables[t.ID] = &cp }

func copyTable(t *model.Table) *model.Table {
	cp := *t
	if t.CurrentSessionID != nil {
		id := *t.CurrentSessionID
		cp.CurrentSessionID = &id
	}
	return &cp
}

func copySession(s *model.Session) *model.Session {
	cp := *s
	cp.Segments = append([]model.Segment(nil), s.Segments...)
	return &cp
}

func (m *memStore) TableByID(_ context.Context, id uint64) (*model.Table, error) {
	t, ok := m.tables[id]
	if !ok {
		return nil, fmt.Errorf("table %d: %w", id, ErrNotFound)
	}
	return copyTable(t), nil
}

func (m *memStore) AllTables(context.Context) ([]*model.Table, error) {
	var out []*model.Table
	for _, t := range m.tables {
		out = append(out, copyTable(t))
	}
	return out, nil
}

func (m *memStore) TablesByStatus(_ context.Context, statuses ...model.TableStatus) ([]*model.Table, error) {
	var out []*model.Table
	for _, t := range m.tables {
		for _, st := range statuses {
			if t.Status == st {
				out = append(out, copyTable(t))
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) SaveTable(_ context.Context, t *model.Table, from model.TableStatus) error {
	if m.saveTableErr != nil {
		return m.saveTableErr
	}
	cur, ok := m.tables[t.ID]
	if !ok {
		return fmt.Errorf("table %d: %w", t.ID, ErrNotFound)
	}
	if cur.Status != from {
		return fmt.Errorf("table %d moved to %s: %w", t.ID, cur.Status, ErrConflict)
	}
	m.tables[t.ID] = copyTable(t)
	return nil
}

func (m *memStore) DeleteTable(_ context.Context, id uint64) error {
	if _, ok := m.tables[id]; !ok {
		return fmt.Errorf("table %d: %w", id, ErrNotFound)
	}
	delete(m.tables, id)
	return nil
}

func (m *memStore) SessionByID(_ context.Context, id uint64) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return copySession(s), nil
}

func (m *memStore) CreateSession(_ context.Context, s *model.Session) error {
	m.nextID++
	s.ID = m.nextID
	m.sessions[s.ID] = copySession(s)
	return nil
}

func (m *memStore) SaveSession(_ context.Context, s *model.Session) error {
	if _, ok := m.sessions[s.ID]; !ok {
		return fmt.Errorf("session %d: %w", s.ID, ErrNotFound)
	}
	m.sessions[s.ID] = copySession(s)
	return nil
}

type memAudit struct{ entries []model.AuditLog }

func (a *memAudit) Record(_ context.Context, e model.AuditLog) error {
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) last(t *testing.T) model.AuditLog {
	t.Helper()
	if len(a.entries) == 0 {
		t.Fatal("no audit entries recorded")
	}
	return a.entries[len(a.entries)-1]
}

type memSettings struct{ cfg *model.Settings }

func (s *memSettings) Load(context.Context) (*model.Settings, error) { return s.cfg, nil }

// fixture wires a machine over in-memory collaborators with a
// controllable clock starting at noon UTC.
type fixture struct {
	machine  *Machine
	store    *memStore
	audit    *memAudit
	settings *memSettings
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newMemStore(),
		audit: &memAudit{},
		settings: &memSettings{cfg: &model.Settings{
			TaxPercentage: 12,
			TaxEnabled:    true,
			Rules:         map[model.GameType]model.PricingRule{},
		}},
		clock: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	f.machine = NewMachine(f.store, f.audit, f.settings)
	f.machine.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) idleTable(id uint64) {
	f.store.put(model.Table{
		ID:         id,
		Name:       fmt.Sprintf("Table %d", id),
		GameType:   model.GamePool,
		Status:     model.StatusIdle,
		HourlyRate: 200,
		IsActive:   true,
	})
}

func (f *fixture) table(t *testing.T, id uint64) *model.Table {
	t.Helper()
	tbl, err := f.store.TableByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load table %d: %v", id, err)
	}
	return tbl
}

func (f *fixture) session(t *testing.T, id uint64) *model.Session {
	t.Helper()
	s, err := f.store.SessionByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load session %d: %v", id, err)
	}
	return s
}

const staffID uint64 = 7

func TestStart(t *testing.T) {
	ctx := context.Background()

	t.Run("moves idle to running with a snapshot", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(1)
		f.settings.cfg.Rules[model.GamePool] = model.PricingRule{
			GameType: model.GamePool, HourlyRate: 200, MinCharge: 100,
		}

		tbl, session, err := f.machine.Start(ctx, 1, StartInput{TimeLimitMinutes: 60}, staffID)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		if tbl.Status != model.StatusRunning {
			t.Fatalf("status = %s, want Running", tbl.Status)
		}
		if tbl.CurrentSessionID == nil || *tbl.CurrentSessionID != session.ID {
			t.Fatalf("table not linked to session %d", session.ID)
		}
		if session.HourlyRateAtStart != 200 || session.MinChargeAtStart != 100 || session.TaxRateAtStart != 12 {
			t.Fatalf("snapshot = %v/%v/%v, want 200/100/12",
				session.HourlyRateAtStart, session.MinChargeAtStart, session.TaxRateAtStart)
		}
		if len(session.Segments) != 1 || session.Segments[0].EndedAt != nil {
			t.Fatalf("want one open segment, got %+v", session.Segments)
		}
		if got := f.audit.last(t); got.Action != model.AuditStart || got.UserID == nil || *got.UserID != staffID {
			t.Fatalf("audit = %+v, want START by staff %d", got, staffID)
		}
	})

	t.Run("applies the peak multiplier at start time", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(1)
		f.clock = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
		f.settings.cfg.Rules[model.GamePool] = model.PricingRule{
			GameType:   model.GamePool,
			HourlyRate: 200,
			PeakHours:  []model.PeakWindow{{StartHour: 18, EndHour: 22, Multiplier: 1.5}},
		}

		_, session, err := f.machine.Start(ctx, 1, StartInput{}, staffID)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		if session.HourlyRateAtStart != 300 {
			t.Fatalf("rate = %v, want 300", session.HourlyRateAtStart)
		}
	})

	t.Run("tax disabled zeroes the snapshot", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(1)
		f.settings.cfg.TaxEnabled = false

		_, session, err := f.machine.Start(ctx, 1, StartInput{}, staffID)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		if session.TaxRateAtStart != 0 {
			t.Fatalf("tax snapshot = %v, want 0", session.TaxRateAtStart)
		}
	})

	t.Run("rejects a non-idle table", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(1)
		if _, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID); err != nil {
			t.Fatalf("first Start: %v", err)
		}
		_, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}
	})

	t.Run("rejects an unsupported game type", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(1)
		_, _, err := f.machine.Start(ctx, 1, StartInput{GameType: model.GameSnooker}, staffID)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("rejects a negative time limit", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(1)
		_, _, err := f.machine.Start(ctx, 1, StartInput{TimeLimitMinutes: -1}, staffID)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("unknown table", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.machine.Start(ctx, 99, StartInput{}, staffID)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("surfaces a lost status race", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(1)
		f.store.saveTableErr = fmt.Errorf("table moved: %w", ErrConflict)
		_, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}
	})
}

func TestPause(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a reason", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.machine.Pause(ctx, 1, "", staffID)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
	})

	t.Run("closes the open segment", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(1)
		_, session, err := f.machine.Start(ctx, 1, StartInput{}, staffID)
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
		f.advance(30 * time.Minute)

		tbl, err := f.machine.Pause(ctx, 1, "cleaning break", staffID)
		if err != nil {
			t.Fatalf("Pause: %v", err)
		}
		if tbl.Status != model.StatusPaused {
			t.Fatalf("status = %s, want Paused", tbl.Status)
		}
		got := f.session(t, session.ID)
		if got.Segments[0].EndedAt == nil {
			t.Fatal("segment still open after pause")
		}
	})

	t.Run("rejects a table that is not running", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(1)
		_, err := f.machine.Pause(ctx, 1, "why not", staffID)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}
	})
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.idleTable(1)

	if _, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := f.machine.Resume(ctx, 1, staffID); !errors.Is(err, ErrConflict) {
		t.Fatalf("resume on running table: err = %v, want ErrConflict", err)
	}

	f.advance(30 * time.Minute)
	if _, err := f.machine.Pause(ctx, 1, "break", staffID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	f.advance(10 * time.Minute)

	tbl, err := f.machine.Resume(ctx, 1, staffID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if tbl.Status != model.StatusRunning {
		t.Fatalf("status = %s, want Running", tbl.Status)
	}
	session := f.session(t, *tbl.CurrentSessionID)
	if len(session.Segments) != 2 || session.Segments[1].EndedAt != nil {
		t.Fatalf("want a second open segment, got %+v", session.Segments)
	}
}

func TestEndExcludesPausedTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.idleTable(1)

	if _, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.advance(30 * time.Minute)
	if _, err := f.machine.Pause(ctx, 1, "dinner", staffID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	f.advance(10 * time.Minute)
	if _, err := f.machine.Resume(ctx, 1, staffID); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	f.advance(30 * time.Minute)

	tbl, session, err := f.machine.End(ctx, 1, staffID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if tbl.Status != model.StatusEnded {
		t.Fatalf("status = %s, want Ended", tbl.Status)
	}
	// 60 minutes of play at 200/hr with 12% tax; the 10 minute pause
	// never accrues.
	if session.Subtotal != 200 || session.TaxAmount != 24 || session.TotalAmount != 224 {
		t.Fatalf("bill = %v/%v/%v, want 200/24/224",
			session.Subtotal, session.TaxAmount, session.TotalAmount)
	}
	if session.Status != model.SessionCompleted || session.EndedAt == nil {
		t.Fatalf("session not completed: %+v", session)
	}
	if session.HandledBy == nil || *session.HandledBy != staffID {
		t.Fatalf("HandledBy = %v, want %d", session.HandledBy, staffID)
	}
}

func TestEndUsesStartSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.idleTable(1)
	f.settings.cfg.Rules[model.GamePool] = model.PricingRule{
		GameType: model.GamePool, HourlyRate: 200,
	}

	if _, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Pricing edits after start must not change the bill.
	f.settings.cfg.Rules[model.GamePool] = model.PricingRule{
		GameType: model.GamePool, HourlyRate: 500,
	}
	f.settings.cfg.TaxPercentage = 50

	f.advance(60 * time.Minute)
	_, session, err := f.machine.End(ctx, 1, staffID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if session.Subtotal != 200 || session.TaxAmount != 24 {
		t.Fatalf("bill = %v/%v, want snapshot rate 200 and tax 12%%",
			session.Subtotal, session.TaxAmount)
	}
}

func TestEndPicksUpCurrentSlots(t *testing.T) {
	// Slot brackets are the one pricing input read at end time, not
	// from the snapshot.
	ctx := context.Background()
	f := newFixture(t)
	f.idleTable(1)

	if _, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.settings.cfg.Rules[model.GamePool] = model.PricingRule{
		GameType:   model.GamePool,
		HourlyRate: 200,
		Slots:      []model.RateSlot{{DurationMinutes: 60, Price: 180}},
	}

	f.advance(45 * time.Minute)
	_, session, err := f.machine.End(ctx, 1, staffID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if session.Subtotal != 180 {
		t.Fatalf("subtotal = %v, want slot price 180", session.Subtotal)
	}
}

func TestEndGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.idleTable(1)

	if _, _, err := f.machine.End(ctx, 1, staffID); !errors.Is(err, ErrConflict) {
		t.Fatal("end on idle table should conflict")
	}

	if _, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.advance(10 * time.Minute)
	if _, _, err := f.machine.End(ctx, 1, staffID); err != nil {
		t.Fatalf("End: %v", err)
	}
	if _, _, err := f.machine.End(ctx, 1, staffID); !errors.Is(err, ErrConflict) {
		t.Fatal("double end should conflict")
	}
}

func TestMarkTimeOver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.idleTable(1)

	start := f.clock
	if _, _, err := f.machine.Start(ctx, 1, StartInput{TimeLimitMinutes: 60}, staffID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	over, err := f.machine.MarkTimeOver(ctx, 1, start.Add(59*time.Minute))
	if err != nil || over {
		t.Fatalf("before the limit: over=%v err=%v", over, err)
	}

	over, err = f.machine.MarkTimeOver(ctx, 1, start.Add(60*time.Minute))
	if err != nil {
		t.Fatalf("MarkTimeOver: %v", err)
	}
	if !over {
		t.Fatal("limit reached but table not flagged")
	}
	if got := f.table(t, 1).Status; got != model.StatusTimeOver {
		t.Fatalf("status = %s, want Time Over", got)
	}
	if entry := f.audit.last(t); entry.Action != model.AuditTimeOver || entry.UserID != nil {
		t.Fatalf("audit = %+v, want system TIME_OVER entry", entry)
	}

	// Segments keep accruing and the flag is applied once.
	over, err = f.machine.MarkTimeOver(ctx, 1, start.Add(61*time.Minute))
	if err != nil || over {
		t.Fatalf("second pass: over=%v err=%v", over, err)
	}
	session := f.session(t, *f.table(t, 1).CurrentSessionID)
	if session.Segments[len(session.Segments)-1].EndedAt != nil {
		t.Fatal("time over must not close the segment")
	}
}

func TestMarkTimeOverUnlimitedSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.idleTable(1)

	start := f.clock
	if _, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	over, err := f.machine.MarkTimeOver(ctx, 1, start.Add(48*time.Hour))
	if err != nil || over {
		t.Fatalf("unlimited session flagged: over=%v err=%v", over, err)
	}
}

func TestEndAfterTimeOver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.idleTable(1)

	if _, _, err := f.machine.Start(ctx, 1, StartInput{TimeLimitMinutes: 30}, staffID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.advance(30 * time.Minute)
	if over, err := f.machine.MarkTimeOver(ctx, 1, f.clock); err != nil || !over {
		t.Fatalf("MarkTimeOver: over=%v err=%v", over, err)
	}

	// Staff settle five minutes later; the extra time is billed.
	f.advance(5 * time.Minute)
	_, session, err := f.machine.End(ctx, 1, staffID)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	want := 35.0 / 60 * 200
	if session.Subtotal != want {
		t.Fatalf("subtotal = %v, want %v", session.Subtotal, want)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()

	endedFixture := func(t *testing.T) (*fixture, uint64) {
		t.Helper()
		f := newFixture(t)
		f.idleTable(1)
		if _, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID); err != nil {
			t.Fatalf("Start: %v", err)
		}
		f.advance(30 * time.Minute)
		_, session, err := f.machine.End(ctx, 1, staffID)
		if err != nil {
			t.Fatalf("End: %v", err)
		}
		return f, session.ID
	}

	t.Run("resets the table to idle", func(t *testing.T) {
		f, sessionID := endedFixture(t)
		tbl, deleted, err := f.machine.Clear(ctx, 1, "Cash", false, staffID)
		if err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if deleted {
			t.Fatal("table deleted without auto_delete")
		}
		if tbl.Status != model.StatusIdle || tbl.CurrentSessionID != nil {
			t.Fatalf("table = %+v, want idle and unlinked", tbl)
		}
		session := f.session(t, sessionID)
		if session.PaymentMethod == nil || *session.PaymentMethod != "Cash" {
			t.Fatalf("payment = %v, want Cash", session.PaymentMethod)
		}
		if entry := f.audit.last(t); entry.Action != model.AuditBillPaid {
			t.Fatalf("audit = %+v, want BILL_PAID", entry)
		}
	})

	t.Run("auto delete removes the table but keeps the session", func(t *testing.T) {
		f, sessionID := endedFixture(t)
		_, deleted, err := f.machine.Clear(ctx, 1, "", true, staffID)
		if err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if !deleted {
			t.Fatal("expected table to be deleted")
		}
		if _, err := f.store.TableByID(ctx, 1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("table still present: %v", err)
		}
		session := f.session(t, sessionID)
		if session.PaymentMethod == nil || *session.PaymentMethod != "Other" {
			t.Fatalf("payment = %v, want default Other", session.PaymentMethod)
		}
		if entry := f.audit.last(t); entry.Action != model.AuditTableDeleted {
			t.Fatalf("audit = %+v, want TABLE_DELETED", entry)
		}
	})

	t.Run("rejects a table that is not ended", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(1)
		_, _, err := f.machine.Clear(ctx, 1, "Cash", false, staffID)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}
	})
}

func TestAutoEndAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.idleTable(1)

	if _, _, err := f.machine.Start(ctx, 1, StartInput{}, staffID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.advance(90 * time.Minute)

	session, err := f.machine.AutoEndAndDelete(ctx, 1, staffID)
	if err != nil {
		t.Fatalf("AutoEndAndDelete: %v", err)
	}
	if session.Status != model.SessionCompleted {
		t.Fatalf("session status = %s, want Completed", session.Status)
	}
	if session.Subtotal != 300 {
		t.Fatalf("subtotal = %v, want 300 for 90m at 200/hr", session.Subtotal)
	}
	if _, err := f.store.TableByID(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("table still present: %v", err)
	}
	if stored := f.session(t, session.ID); stored.Status != model.SessionCompleted {
		t.Fatal("session history lost with the table")
	}

	t.Run("table without a session", func(t *testing.T) {
		f := newFixture(t)
		f.idleTable(2)
		if _, err := f.machine.AutoEndAndDelete(ctx, 2, staffID); !errors.Is(err, ErrConflict) {
			t.Fatalf("err = %v, want ErrConflict", err)
		}
	})
}
