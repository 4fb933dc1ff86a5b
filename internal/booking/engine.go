package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/trial-session-booking/internal/session"
)

type Options struct {
	PageSize  int            // dates and slots per window, DefaultPageSize when zero
	Location  *time.Location // calendar grouping zone, UTC when nil
	Identity  *Identity      // signed-in mentee, nil when anonymous
	OnOutcome func(Outcome)  // called after every booking attempt, outside the engine lock
	Logger    *zap.Logger
}

// Engine drives the trial booking view of one mentor. It owns its session
// snapshot exclusively and replaces it wholesale on every refresh.
//
// Repository calls happen without holding the engine lock. A listing that comes
// back after Stop, or after a newer Refresh was issued, is discarded.
type Engine struct {
	mentorID  uuid.UUID
	repo      session.Repository
	coord     *Coordinator
	loc       *time.Location
	logger    *zap.Logger
	onOutcome func(Outcome)

	mu          sync.Mutex
	identity    *Identity
	filters     Filters
	all         []session.Session
	options     FilterOptions
	dates       []DateSlot
	skipped     int
	fetchErr    error
	loaded      bool
	datePager   Pager
	slotPager   Pager
	selection   Selection
	lastOutcome *Outcome

	started    bool
	stopped    bool
	ctx        context.Context
	cancel     context.CancelFunc
	refreshSeq uint64
}

func NewEngine(mentorID uuid.UUID, repo session.Repository, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.With(zap.String("mentor_id", mentorID.String()))

	return &Engine{
		mentorID:  mentorID,
		repo:      repo,
		coord:     NewCoordinator(repo, opts.Location, logger),
		loc:       opts.Location,
		logger:    logger,
		onOutcome: opts.OnOutcome,
		identity:  cloneIdentity(opts.Identity),
		datePager: NewPager(opts.PageSize),
		slotPager: NewPager(opts.PageSize),
	}
}

// Start binds the engine to ctx and performs the initial load. A failed load
// is not fatal: the engine stays usable with an empty calendar and the error is
// returned for display.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	if e.started {
		e.mu.Unlock()
		return ErrEngineStarted
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.started = true
	e.mu.Unlock()

	return e.Refresh(ctx)
}

// Stop aborts in-flight repository calls and makes every later result a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.stopped = true
	if e.cancel != nil {
		e.cancel()
	}
}

// Refresh replaces the session snapshot with a fresh listing.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	if !e.started {
		e.mu.Unlock()
		return ErrEngineNotStarted
	}
	e.refreshSeq++
	seq := e.refreshSeq
	base := e.ctx
	e.mu.Unlock()

	callCtx, cancel := mergeContext(ctx, base)
	sessions, err := e.repo.ListAvailableSessions(callCtx, e.mentorID)
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrEngineStopped
	}
	if seq != e.refreshSeq {
		e.logger.Debug("discarding superseded session listing")
		return nil
	}

	e.loaded = true
	if err != nil {
		e.all = nil
		e.fetchErr = &FetchError{MentorID: e.mentorID, Err: err}
		e.recompute()
		e.logger.Warn("session listing failed", zap.Error(err))
		return e.fetchErr
	}

	e.all = sessions
	e.fetchErr = nil
	e.recompute()
	return nil
}

// ApplyFilters stores new filters and reloads.
func (e *Engine) ApplyFilters(ctx context.Context, f Filters) error {
	e.mu.Lock()
	if e.selection.State() == StateBooking {
		e.mu.Unlock()
		return ErrBookingInProgress
	}
	e.filters = f
	e.datePager.Reset()
	e.mu.Unlock()

	return e.Refresh(ctx)
}

func (e *Engine) SetIdentity(identity *Identity) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.identity = cloneIdentity(identity)
}

// SelectDate picks a day by its DateLayout key. The date window moves to the page
// holding that day and the time-slot window restarts at the first page.
func (e *Engine) SelectDate(date string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrEngineStopped
	}
	if e.selection.State() == StateBooking {
		return ErrBookingInProgress
	}
	_, idx, ok := FindDate(e.dates, date)
	if !ok {
		return ErrUnknownDate
	}
	if err := e.selection.SelectDate(date); err != nil {
		return err
	}
	e.datePager.Reveal(idx)
	e.slotPager.Reset()
	return nil
}

// SelectTimeSlot picks a slot of the selected day. It reports false when the slot
// is unavailable and the selection was left untouched.
func (e *Engine) SelectTimeSlot(sessionID uuid.UUID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return false, ErrEngineStopped
	}
	if e.selection.State() == StateBooking {
		return false, ErrBookingInProgress
	}
	date, ok := e.selection.Date()
	if !ok {
		return false, ErrNoDateSelected
	}
	ds, _, ok := FindDate(e.dates, date)
	if !ok {
		return false, ErrUnknownDate
	}
	for _, slot := range ds.Slots {
		if slot.SessionID == sessionID {
			return e.selection.SelectTimeSlot(slot)
		}
	}
	return false, ErrUnknownSlot
}

func (e *Engine) NextDates() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.datePager.Next(len(e.dates))
}

func (e *Engine) PrevDates() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.datePager.Prev()
}

func (e *Engine) NextSlots() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slotPager.Next(len(e.selectedSlots()))
}

func (e *Engine) PrevSlots() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slotPager.Prev()
}

// Book books the selected time slot. Local precondition failures leave the
// selection in place. Otherwise the selection moves to Booking for the duration
// of the call, then to BookingSucceeded or BookingFailed, and the snapshot is
// refreshed whatever the result.
func (e *Engine) Book(ctx context.Context) (Outcome, error) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return Outcome{}, ErrEngineStopped
	}
	if !e.started {
		e.mu.Unlock()
		return Outcome{}, ErrEngineNotStarted
	}

	switch e.selection.State() {
	case StateBooking:
		e.mu.Unlock()
		return Outcome{}, ErrBookingInProgress
	case StateTimeSlotSelected:
	default:
		e.mu.Unlock()
		return Outcome{}, ErrNoSlotSelected
	}

	selected, _ := e.selection.Slot()
	slot, err := e.coord.Check(e.identity, selected.SessionID, e.dates)
	if err != nil {
		outcome := failedOutcome(selected.SessionID, err)
		e.lastOutcome = &outcome
		e.mu.Unlock()
		e.emit(outcome)
		return outcome, err
	}

	if _, err := e.selection.BeginBooking(); err != nil {
		e.mu.Unlock()
		return Outcome{}, err
	}
	identity := *e.identity
	base := e.ctx
	e.mu.Unlock()

	callCtx, cancel := mergeContext(ctx, base)
	outcome := e.coord.Submit(callCtx, &identity, slot)
	cancel()

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return outcome, ErrEngineStopped
	}
	e.selection.Finish(outcome.Succeeded())
	e.slotPager.Reset()
	e.lastOutcome = &outcome
	e.mu.Unlock()

	e.emit(outcome)

	if err := e.Refresh(ctx); err != nil && !errors.Is(err, ErrEngineStopped) {
		e.logger.Warn("refresh after booking failed", zap.Error(err))
	}

	return outcome, outcome.Err
}

// Reset clears a finished attempt and goes back to Idle, then auto-selects the
// recommended day like a fresh load.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.selection.Reset(); err != nil {
		return err
	}
	e.slotPager.Reset()
	e.reconcileSelection()
	return nil
}

// WindowInfo describes the position of one window.
type WindowInfo struct {
	Start   int  `json:"start"`
	Size    int  `json:"size"`
	Total   int  `json:"total"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

// Snapshot is a read-only copy of everything a view needs to render.
type Snapshot struct {
	MentorID       uuid.UUID     `json:"mentor_id"`
	State          State         `json:"state"`
	SelectedDate   string        `json:"selected_date,omitempty"`
	SelectedSlot   *TimeSlot     `json:"selected_slot,omitempty"`
	Dates          []DateSlot    `json:"dates"`
	Slots          []TimeSlot    `json:"slots"`
	DateWindow     WindowInfo    `json:"date_window"`
	SlotWindow     WindowInfo    `json:"slot_window"`
	Filters        Filters       `json:"filters"`
	Options        FilterOptions `json:"options"`
	Loaded         bool          `json:"loaded"`
	NoAvailability bool          `json:"no_availability"`
	FetchFailed    bool          `json:"fetch_failed"`
	Message        string        `json:"message,omitempty"`
	Skipped        int           `json:"skipped"`
	LastOutcome    *Outcome      `json:"last_outcome,omitempty"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	slots := e.selectedSlots()

	snap := Snapshot{
		MentorID:    e.mentorID,
		State:       e.selection.State(),
		Dates:       cloneDates(pageOf(e.dates, e.datePager)),
		Slots:       pageOf(slots, e.slotPager),
		DateWindow:  windowInfo(e.datePager, len(e.dates)),
		SlotWindow:  windowInfo(e.slotPager, len(slots)),
		Filters:     e.filters,
		Options:     e.options,
		Loaded:      e.loaded,
		FetchFailed: e.fetchErr != nil,
		Skipped:     e.skipped,
	}

	if date, ok := e.selection.Date(); ok {
		snap.SelectedDate = date
	}
	if slot, ok := e.selection.Slot(); ok {
		snap.SelectedSlot = &slot
	}
	if e.loaded && len(e.dates) == 0 {
		snap.NoAvailability = true
		snap.Message = MsgNoAvailability
	}
	if e.lastOutcome != nil {
		out := *e.lastOutcome
		snap.LastOutcome = &out
	}
	return snap
}

// AllDates returns every retained day, not just the visible window.
func (e *Engine) AllDates() []DateSlot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneDates(e.dates)
}

// recompute rebuilds the derived calendar from the snapshot. Callers hold e.mu.
func (e *Engine) recompute() {
	e.options = FilterOptionsFor(e.all)

	dates, skipped := Aggregate(Apply(e.all, e.filters), e.loc)
	for _, err := range skipped {
		e.logger.Warn("skipping malformed session", zap.Error(err))
	}
	e.skipped = len(skipped)
	e.dates = dates
	e.datePager.Clamp(len(dates))

	e.reconcileSelection()
}

// reconcileSelection keeps the selection pointing at data that still exists and
// auto-selects the recommended day from Idle. Callers hold e.mu.
func (e *Engine) reconcileSelection() {
	switch e.selection.State() {
	case StateBooking, StateBookingSucceeded, StateBookingFailed:
		return
	case StateDateSelected, StateTimeSlotSelected:
		date, _ := e.selection.Date()
		ds, _, ok := FindDate(e.dates, date)
		if !ok {
			_ = e.selection.Reset()
			e.slotPager.Reset()
			break
		}
		if slot, selected := e.selection.Slot(); selected {
			if current, found := FindSlot([]DateSlot{ds}, slot.SessionID); !found || !current.Available {
				_ = e.selection.SelectDate(date)
			}
		}
		e.slotPager.Clamp(len(ds.Slots))
		return
	}

	if rec, ok := Recommended(e.dates); ok {
		_ = e.selection.SelectDate(rec.Date)
		e.slotPager.Reset()
	}
}

// selectedSlots returns the time slots of the selected day. Callers hold e.mu.
func (e *Engine) selectedSlots() []TimeSlot {
	date, ok := e.selection.Date()
	if !ok {
		return nil
	}
	ds, _, ok := FindDate(e.dates, date)
	if !ok {
		return nil
	}
	return ds.Slots
}

func (e *Engine) emit(outcome Outcome) {
	if e.onOutcome != nil {
		e.onOutcome(outcome)
	}
}

func pageOf[T any](items []T, p Pager) []T {
	start, size := p.Bounds()
	return Window(items, start, size)
}

func windowInfo(p Pager, total int) WindowInfo {
	start, size := p.Bounds()
	return WindowInfo{
		Start:   start,
		Size:    size,
		Total:   total,
		HasPrev: p.HasPrev(),
		HasNext: p.HasNext(total),
	}
}

func cloneDates(dates []DateSlot) []DateSlot {
	out := make([]DateSlot, len(dates))
	for i, d := range dates {
		d.Slots = append([]TimeSlot(nil), d.Slots...)
		out[i] = d
	}
	return out
}

func cloneIdentity(identity *Identity) *Identity {
	if identity == nil {
		return nil
	}
	cp := *identity
	return &cp
}

// mergeContext returns a context cancelled when either ctx or base is done.
func mergeContext(ctx, base context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	if base == nil {
		return merged, cancel
	}
	stop := context.AfterFunc(base, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
