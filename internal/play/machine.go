package play

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/cueclub/table-service/internal/billing"
	"github.com/cueclub/table-service/internal/model"
	"github.com/cueclub/table-service/internal/pricing"
)

// Store is the persistence collaborator for the state machine. The
// machine never touches SQL itself; it reads, validates guards under
// a per-table lock and writes back through this interface.
//
// SaveTable performs a compare-and-swap on the table status: the
// update must only apply while the row still holds the `from` status,
// and a mismatch must surface as ErrConflict. Combined with the
// per-table lock this guarantees that a staff transition and the
// broadcast tick cannot both apply to the same elapsed window.
type Store interface {
	TableByID(ctx context.Context, id uint64) (*model.Table, error)
	AllTables(ctx context.Context) ([]*model.Table, error)
	TablesByStatus(ctx context.Context, statuses ...model.TableStatus) ([]*model.Table, error)
	SaveTable(ctx context.Context, t *model.Table, from model.TableStatus) error
	DeleteTable(ctx context.Context, id uint64) error
	SessionByID(ctx context.Context, id uint64) (*model.Session, error)
	CreateSession(ctx context.Context, s *model.Session) error
	SaveSession(ctx context.Context, s *model.Session) error
}

// Auditor appends immutable audit entries. Every successful
// transition emits exactly one entry; the machine never reads them
// back. A failed append is logged and does not undo the transition.
type Auditor interface {
	Record(ctx context.Context, entry model.AuditLog) error
}

// SettingsSource loads the current business configuration. It is
// consulted when a session starts (to snapshot rates) and when it
// ends (for the slot table of the game type); the monetary snapshot
// itself is never re-resolved.
type SettingsSource interface {
	Load(ctx context.Context) (*model.Settings, error)
}

// StartInput carries the staff-chosen parameters for a new session.
// FixedPrice is only honored in fixed pricing mode, where it
// overrides both the rule's base rate and any peak multiplier.
type StartInput struct {
	GameType         model.GameType
	PricingMode      model.PricingMode
	Players          int
	TimeLimitMinutes int
	FixedPrice       *float64
}

// Machine owns table lifecycle transitions. All operations perform a
// guarded read-modify-write under a per-table mutex: read the current
// status, validate the guard, mutate, persist with a status CAS. A
// losing racer fails with ErrConflict and must be resubmitted by its
// caller; nothing is retried automatically.
type Machine struct {
	store    Store
	audit    Auditor
	settings SettingsSource

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex

	now func() time.Time
}

// NewMachine constructs a Machine. All dependencies must be non-nil.
func NewMachine(store Store, audit Auditor, settings SettingsSource) *Machine {
	if store == nil || audit == nil || settings == nil {
		panic("nil dependency passed to NewMachine")
	}
	return &Machine{
		store:    store,
		audit:    audit,
		settings: settings,
		locks:    map[uint64]*sync.Mutex{},
		now:      time.Now,
	}
}

// tableLock returns the mutex serializing all transitions for one
// table, creating it on first use. Locks are never removed; the set
// of tables in a club is small and stable.
func (m *Machine) tableLock(tableID uint64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[tableID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[tableID] = l
	}
	return l
}

// Start moves an Idle table to Running. It resolves the effective
// rate for the requested game type, snapshots rate, minimum charge
// and tax rate onto a new session, opens the first segment and links
// the session to the table.
func (m *Machine) Start(ctx context.Context, tableID uint64, in StartInput, actorID uint64) (*model.Table, *model.Session, error) {
	l := m.tableLock(tableID)
	l.Lock()
	defer l.Unlock()

	t, err := m.store.TableByID(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	if t.Status != model.StatusIdle {
		return nil, nil, fmt.Errorf("%w: table %q is not idle", ErrConflict, t.Name)
	}

	gameType := in.GameType
	if gameType == "" {
		gameType = t.GameType
	} else if !t.Supports(gameType) {
		return nil, nil, fmt.Errorf("%w: table %q does not support %s", ErrValidation, t.Name, gameType)
	}
	mode := in.PricingMode
	if mode == "" {
		mode = model.PricePerHour
	}
	players := in.Players
	if players <= 0 {
		players = 1
	}
	if in.TimeLimitMinutes < 0 {
		return nil, nil, fmt.Errorf("%w: negative time limit", ErrValidation)
	}

	cfg, err := m.settings.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}

	var fixed *float64
	if mode == model.PriceFixed {
		fixed = in.FixedPrice
	}
	now := m.now()
	resolved := pricing.Resolve(cfg, gameType, now, t.HourlyRate, fixed)

	var taxRate float64
	if cfg.TaxEnabled {
		taxRate = cfg.TaxPercentage
	}

	session := &model.Session{
		TableID:           t.ID,
		StartedAt:         now,
		PricingMode:       mode,
		Players:           players,
		TimeLimitMinutes:  in.TimeLimitMinutes,
		HourlyRateAtStart: resolved.Rate,
		MinChargeAtStart:  resolved.MinCharge,
		TaxRateAtStart:    taxRate,
		Segments:          []model.Segment{{Seq: 0, StartedAt: now}},
		Status:            model.SessionActive,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("create session: %w", err)
	}

	t.Status = model.StatusRunning
	t.GameType = gameType
	t.CurrentSessionID = &session.ID
	if err := m.store.SaveTable(ctx, t, model.StatusIdle); err != nil {
		return nil, nil, err
	}

	m.record(ctx, t.ID, &session.ID, &actorID, model.AuditStart,
		fmt.Sprintf("Started %s session. Rate: %g, Min: %g", gameType, resolved.Rate, resolved.MinCharge))
	return t, session, nil
}

// Pause moves a Running table to Paused and closes the open segment.
// A non-empty reason is mandatory; pausing stops the clock, so the
// reason ends up in the audit trail.
func (m *Machine) Pause(ctx context.Context, tableID uint64, reason string, actorID uint64) (*model.Table, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: pause reason is mandatory", ErrValidation)
	}
	l := m.tableLock(tableID)
	l.Lock()
	defer l.Unlock()

	t, err := m.store.TableByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.StatusRunning {
		return nil, fmt.Errorf("%w: table %q is not running", ErrConflict, t.Name)
	}
	session, err := m.currentSession(ctx, t)
	if err != nil {
		return nil, err
	}

	CloseOpenSegment(session.Segments, m.now())
	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	t.Status = model.StatusPaused
	if err := m.store.SaveTable(ctx, t, model.StatusRunning); err != nil {
		return nil, err
	}

	m.record(ctx, t.ID, &session.ID, &actorID, model.AuditPause, "Paused. Reason: "+reason)
	return t, nil
}

// Resume moves a Paused table back to Running by appending a fresh
// segment. The paused gap between segments never accrues play time.
func (m *Machine) Resume(ctx context.Context, tableID uint64, actorID uint64) (*model.Table, error) {
	l := m.tableLock(tableID)
	l.Lock()
	defer l.Unlock()

	t, err := m.store.TableByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if t.Status != model.StatusPaused {
		return nil, fmt.Errorf("%w: table %q is not paused", ErrConflict, t.Name)
	}
	session, err := m.currentSession(ctx, t)
	if err != nil {
		return nil, err
	}

	segs, err := OpenNewSegment(session.Segments, m.now())
	if err != nil {
		return nil, err
	}
	session.Segments = segs
	if err := m.store.SaveSession(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	t.Status = model.StatusRunning
	if err := m.store.SaveTable(ctx, t, model.StatusPaused); err != nil {
		return nil, err
	}

	m.record(ctx, t.ID, &session.ID, &actorID, model.AuditResume, "Session resumed")
	return t, nil
}

// End finalizes the session on a Running, Paused or Time Over table.
// It closes any open segment, sums elapsed minutes over all segments
// and bills using the rate, minimum charge and tax rate snapshotted
// at Start. Only the slot table is read from current configuration,
// matching how slot brackets are maintained per game type.
func (m *Machine) End(ctx context.Context, tableID uint64, actorID uint64) (*model.Table, *model.Session, error) {
	l := m.tableLock(tableID)
	l.Lock()
	defer l.Unlock()

	t, err := m.store.TableByID(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	from := t.Status
	if from != model.StatusRunning && from != model.StatusPaused && from != model.StatusTimeOver {
		return nil, nil, fmt.Errorf("%w: table %q has no session to end", ErrConflict, t.Name)
	}
	session, err := m.currentSession(ctx, t)
	if err != nil {
		return nil, nil, err
	}

	if err := m.finalizeSession(ctx, t, session, actorID); err != nil {
		return nil, nil, err
	}

	t.Status = model.StatusEnded
	if err := m.store.SaveTable(ctx, t, from); err != nil {
		return nil, nil, err
	}

	elapsed := ElapsedMinutes(session.Segments, *session.EndedAt)
	m.record(ctx, t.ID, &session.ID, &actorID, model.AuditEnd,
		fmt.Sprintf("Session ended. Play: %dm, Sub: %.2f, Tax: %.2f, Total: %.2f",
			int(math.Round(elapsed)), session.Subtotal, session.TaxAmount, session.TotalAmount))
	return t, session, nil
}

// Clear records the payment method on an Ended table's session and
// either resets the table to Idle or, when autoDelete is set, removes
// the table entirely. Session history survives table removal.
func (m *Machine) Clear(ctx context.Context, tableID uint64, paymentMethod string, autoDelete bool, actorID uint64) (*model.Table, bool, error) {
	l := m.tableLock(tableID)
	l.Lock()
	defer l.Unlock()

	t, err := m.store.TableByID(ctx, tableID)
	if err != nil {
		return nil, false, err
	}
	if t.Status != model.StatusEnded {
		return nil, false, fmt.Errorf("%w: table %q is not in ended state", ErrConflict, t.Name)
	}

	if paymentMethod == "" {
		paymentMethod = "Other"
	}
	var sessionID *uint64
	if t.CurrentSessionID != nil {
		sessionID = t.CurrentSessionID
		session, err := m.store.SessionByID(ctx, *t.CurrentSessionID)
		if err == nil {
			session.PaymentMethod = &paymentMethod
			if err := m.store.SaveSession(ctx, session); err != nil {
				return nil, false, fmt.Errorf("save session: %w", err)
			}
		} else if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}

	if autoDelete {
		m.record(ctx, t.ID, sessionID, &actorID, model.AuditTableDeleted,
			fmt.Sprintf("Payment confirmed via %s. Table auto-deleted.", paymentMethod))
		if err := m.store.DeleteTable(ctx, t.ID); err != nil {
			return nil, false, fmt.Errorf("delete table: %w", err)
		}
		return t, true, nil
	}

	t.Status = model.StatusIdle
	t.CurrentSessionID = nil
	if err := m.store.SaveTable(ctx, t, model.StatusEnded); err != nil {
		return nil, false, err
	}
	m.record(ctx, t.ID, sessionID, &actorID, model.AuditBillPaid,
		fmt.Sprintf("Payment confirmed via %s. Table set to Idle.", paymentMethod))
	return t, false, nil
}

// AutoEndAndDelete finalizes whatever session is live on the table
// and removes the table in one step. It is used for forced cleanup,
// so unlike Clear it does not require a payment method.
func (m *Machine) AutoEndAndDelete(ctx context.Context, tableID uint64, actorID uint64) (*model.Session, error) {
	l := m.tableLock(tableID)
	l.Lock()
	defer l.Unlock()

	t, err := m.store.TableByID(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if t.CurrentSessionID == nil {
		return nil, fmt.Errorf("%w: no active session on table %q", ErrConflict, t.Name)
	}
	session, err := m.currentSession(ctx, t)
	if err != nil {
		return nil, err
	}

	if session.Status != model.SessionCompleted {
		if err := m.finalizeSession(ctx, t, session, actorID); err != nil {
			return nil, err
		}
	}

	elapsed := ElapsedMinutes(session.Segments, m.now())
	m.record(ctx, t.ID, &session.ID, &actorID, model.AuditAutoEnd,
		fmt.Sprintf("Time limit reached or auto-ended. Play: %dm, Total: %.2f",
			int(math.Round(elapsed)), session.TotalAmount))

	if err := m.store.DeleteTable(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("delete table: %w", err)
	}
	return session, nil
}

// MarkTimeOver flags a Running table whose session has met or
// exceeded its time limit. It only changes the table status: segments
// stay open, nothing is billed, and staff must still call End. The
// guard is re-checked under the table lock so a staff End that won
// the race simply makes this a no-op. It returns whether the flag was
// applied at now.
func (m *Machine) MarkTimeOver(ctx context.Context, tableID uint64, now time.Time) (bool, error) {
	l := m.tableLock(tableID)
	l.Lock()
	defer l.Unlock()

	t, err := m.store.TableByID(ctx, tableID)
	if err != nil {
		return false, err
	}
	if t.Status != model.StatusRunning || t.CurrentSessionID == nil {
		return false, nil
	}
	session, err := m.store.SessionByID(ctx, *t.CurrentSessionID)
	if err != nil {
		return false, err
	}
	if session.TimeLimitMinutes <= 0 {
		return false, nil
	}
	if ElapsedMinutes(session.Segments, now) < float64(session.TimeLimitMinutes) {
		return false, nil
	}

	t.Status = model.StatusTimeOver
	if err := m.store.SaveTable(ctx, t, model.StatusRunning); err != nil {
		return false, err
	}
	m.record(ctx, t.ID, &session.ID, nil, model.AuditTimeOver,
		fmt.Sprintf("Time limit of %dm reached", session.TimeLimitMinutes))
	return true, nil
}

// finalizeSession closes the open segment, computes the bill from the
// session's snapshot and marks it Completed. The caller holds the
// table lock and is responsible for the table status change.
func (m *Machine) finalizeSession(ctx context.Context, t *model.Table, session *model.Session, actorID uint64) error {
	now := m.now()
	CloseOpenSegment(session.Segments, now)

	elapsed := ElapsedMinutes(session.Segments, now)

	// Slot brackets live in configuration per game type; the monetary
	// snapshot on the session is authoritative for everything else.
	var slots []model.RateSlot
	cfg, err := m.settings.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if rule, ok := cfg.RuleFor(t.GameType); ok {
		slots = rule.Slots
	}

	bill := billing.Compute(elapsed, session.HourlyRateAtStart, session.MinChargeAtStart,
		slots, session.PricingMode, session.TaxRateAtStart)

	session.EndedAt = &now
	session.Status = model.SessionCompleted
	session.HandledBy = &actorID
	session.Subtotal = bill.Subtotal
	session.TaxAmount = bill.Tax
	session.TotalAmount = bill.Total
	if err := m.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// currentSession loads the session linked to the table. A table in a
// non-idle status without a session link is corrupt state and is
// reported as a conflict.
func (m *Machine) currentSession(ctx context.Context, t *model.Table) (*model.Session, error) {
	if t.CurrentSessionID == nil {
		return nil, fmt.Errorf("%w: table %q has no linked session", ErrConflict, t.Name)
	}
	return m.store.SessionByID(ctx, *t.CurrentSessionID)
}

// record appends an audit entry. Audit persistence failures never
// undo a committed transition; they are logged and dropped.
func (m *Machine) record(ctx context.Context, tableID uint64, sessionID, userID *uint64, action, details string) {
	entry := model.AuditLog{
		TableID:   tableID,
		SessionID: sessionID,
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: m.now(),
	}
	if err := m.audit.Record(ctx, entry); err != nil {
		log.Printf("audit: record %s for table %d failed: %v", action, tableID, err)
	}
}
