package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/trial-session-booking/internal/session"
)

func startEngine(t *testing.T, repo *stubRepo, opts Options) *Engine {
	t.Helper()
	e := NewEngine(mentorID, repo, opts)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(e.Stop)
	return e
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for repository call")
	}
}

func TestEngineStartSelectsRecommendedDay(t *testing.T) {
	e := startEngine(t, &stubRepo{sessions: scenarioSessions(t)}, Options{Identity: mentee})

	snap := e.Snapshot()
	assert.True(t, snap.Loaded)
	assert.False(t, snap.NoAvailability)
	assert.Equal(t, StateDateSelected, snap.State)
	assert.Equal(t, "2025-09-10", snap.SelectedDate)
	require.Len(t, snap.Dates, 2)
	assert.True(t, snap.Dates[0].IsRecommended)
	assert.Equal(t, []string{"10:00 AM", "12:00 PM", "2:00 PM"}, slotTimes(snap.Slots))
	assert.Equal(t, []int{30}, snap.Options.Durations)
}

func TestEngineLifecycleErrors(t *testing.T) {
	repo := &stubRepo{sessions: scenarioSessions(t)}
	e := NewEngine(mentorID, repo, Options{})

	assert.ErrorIs(t, e.Refresh(context.Background()), ErrEngineNotStarted)
	_, err := e.Book(context.Background())
	assert.ErrorIs(t, err, ErrEngineNotStarted)

	require.NoError(t, e.Start(context.Background()))
	assert.ErrorIs(t, e.Start(context.Background()), ErrEngineStarted)

	e.Stop()
	e.Stop()
	assert.ErrorIs(t, e.Refresh(context.Background()), ErrEngineStopped)
	assert.ErrorIs(t, e.SelectDate("2025-09-12"), ErrEngineStopped)
	assert.ErrorIs(t, e.Start(context.Background()), ErrEngineStopped)
	_, err = e.Book(context.Background())
	assert.ErrorIs(t, err, ErrEngineStopped)
}

func TestEngineFetchFailureDegrades(t *testing.T) {
	repo := &stubRepo{listErr: errors.New("connection reset")}
	e := NewEngine(mentorID, repo, Options{})

	err := e.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataFetchFailure)
	t.Cleanup(e.Stop)

	snap := e.Snapshot()
	assert.True(t, snap.FetchFailed)
	assert.True(t, snap.NoAvailability)
	assert.Equal(t, MsgNoAvailability, snap.Message)
	assert.Empty(t, snap.Dates)
	assert.Equal(t, StateIdle, snap.State)

	// the engine recovers on the next successful refresh
	repo.mu.Lock()
	repo.listErr = nil
	repo.sessions = scenarioSessions(t)
	repo.mu.Unlock()

	require.NoError(t, e.Refresh(context.Background()))
	snap = e.Snapshot()
	assert.False(t, snap.FetchFailed)
	assert.Equal(t, "2025-09-10", snap.SelectedDate)
}

func TestEngineFiltersToNothing(t *testing.T) {
	e := startEngine(t, &stubRepo{sessions: scenarioSessions(t)}, Options{})

	require.NoError(t, e.ApplyFilters(context.Background(), Filters{Duration: 60}))
	snap := e.Snapshot()
	assert.True(t, snap.NoAvailability)
	assert.Equal(t, MsgNoAvailability, snap.Message)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, Filters{Duration: 60}, snap.Filters)
	// options still describe the unfiltered data
	assert.Equal(t, []int{30}, snap.Options.Durations)

	require.NoError(t, e.ApplyFilters(context.Background(), Filters{}))
	assert.Equal(t, "2025-09-10", e.Snapshot().SelectedDate)
}

func TestEngineSelection(t *testing.T) {
	sessions := scenarioSessions(t)
	e := startEngine(t, &stubRepo{sessions: sessions}, Options{})

	assert.ErrorIs(t, e.SelectDate("2025-09-11"), ErrUnknownDate)

	ok, err := e.SelectTimeSlot(sessions[2].ID)
	require.NoError(t, err)
	assert.False(t, ok, "booked slot is not selectable")
	assert.Equal(t, StateDateSelected, e.Snapshot().State)

	_, err = e.SelectTimeSlot(sessions[3].ID)
	assert.ErrorIs(t, err, ErrUnknownSlot, "slot belongs to another day")

	ok, err = e.SelectTimeSlot(sessions[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	snap := e.Snapshot()
	assert.Equal(t, StateTimeSlotSelected, snap.State)
	require.NotNil(t, snap.SelectedSlot)
	assert.Equal(t, "2:00 PM", snap.SelectedSlot.Time)

	require.NoError(t, e.SelectDate("2025-09-12"))
	snap = e.Snapshot()
	assert.Equal(t, StateDateSelected, snap.State)
	assert.Nil(t, snap.SelectedSlot)
}

func TestEngineBookSuccess(t *testing.T) {
	sessions := scenarioSessions(t)
	repo := &stubRepo{sessions: sessions}

	var mu sync.Mutex
	var seen []Outcome
	e := startEngine(t, repo, Options{
		Identity:  mentee,
		OnOutcome: func(o Outcome) { mu.Lock(); seen = append(seen, o); mu.Unlock() },
	})

	ok, err := e.SelectTimeSlot(sessions[1].ID)
	require.NoError(t, err)
	require.True(t, ok)

	outcome, err := e.Book(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, outcome.Kind)

	list, book := repo.calls()
	assert.Equal(t, 2, list, "snapshot is refreshed after booking")
	assert.Equal(t, 1, book)

	snap := e.Snapshot()
	assert.Equal(t, StateBookingSucceeded, snap.State)
	assert.Empty(t, snap.SelectedDate)
	require.NotNil(t, snap.LastOutcome)
	assert.Equal(t, outcome.Message, snap.LastOutcome.Message)

	slot, found := FindSlot(e.AllDates(), sessions[1].ID)
	require.True(t, found)
	assert.False(t, slot.Available)

	mu.Lock()
	require.Len(t, seen, 1)
	assert.Equal(t, OutcomeConfirmed, seen[0].Kind)
	mu.Unlock()

	require.NoError(t, e.Reset())
	snap = e.Snapshot()
	assert.Equal(t, StateDateSelected, snap.State)
	assert.Equal(t, "2025-09-10", snap.SelectedDate)
	assert.Equal(t, 1, snap.Dates[0].AvailableSlots)
}

func TestEngineBookLostRace(t *testing.T) {
	sessions := scenarioSessions(t)
	repo := &stubRepo{sessions: sessions}
	e := startEngine(t, repo, Options{Identity: mentee})

	_, err := e.SelectTimeSlot(sessions[0].ID)
	require.NoError(t, err)

	repo.mu.Lock()
	repo.sessions[0].Status = session.StatusBooked
	repo.mu.Unlock()

	outcome, err := e.Book(context.Background())
	assert.ErrorIs(t, err, ErrStaleSelection)
	assert.Equal(t, MsgSlotUnavailable, outcome.Message)
	assert.Equal(t, StateBookingFailed, e.Snapshot().State)

	list, _ := repo.calls()
	assert.Equal(t, 2, list)

	// picking a new day leaves the failed state
	require.NoError(t, e.SelectDate("2025-09-12"))
	assert.Equal(t, StateDateSelected, e.Snapshot().State)
}

func TestEngineBookTransportFailureStillRefreshes(t *testing.T) {
	sessions := scenarioSessions(t)
	repo := &stubRepo{sessions: sessions, bookErr: errors.New("connection refused")}

	var mu sync.Mutex
	var outcomes []Outcome
	e := startEngine(t, repo, Options{Identity: mentee, OnOutcome: func(o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, o)
	}})

	ok, err := e.SelectTimeSlot(sessions[0].ID)
	require.NoError(t, err)
	require.True(t, ok)

	outcome, err := e.Book(context.Background())
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.Equal(t, MsgBookingFailed, outcome.Message)
	assert.Equal(t, StateBookingFailed, e.Snapshot().State)

	list, _ := repo.calls()
	assert.Equal(t, 2, list, "the snapshot reloads after a failed backend call")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, outcomes, 1)
	assert.Equal(t, OutcomeFailed, outcomes[0].Kind)
}

func TestEngineBookRequiresIdentity(t *testing.T) {
	sessions := scenarioSessions(t)
	repo := &stubRepo{sessions: sessions}
	e := startEngine(t, repo, Options{})

	_, err := e.Book(context.Background())
	assert.ErrorIs(t, err, ErrNoSlotSelected)

	_, err = e.SelectTimeSlot(sessions[1].ID)
	require.NoError(t, err)

	outcome, err := e.Book(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, MsgNotAuthenticated, outcome.Message)
	assert.Equal(t, StateTimeSlotSelected, e.Snapshot().State)

	list, book := repo.calls()
	assert.Equal(t, 1, list)
	assert.Zero(t, book)

	e.SetIdentity(mentee)
	outcome, err = e.Book(context.Background())
	require.NoError(t, err)
	assert.True(t, outcome.Succeeded())
}

func TestEngineSingleBookingInFlight(t *testing.T) {
	sessions := scenarioSessions(t)
	repo := &stubRepo{sessions: sessions, bookGate: make(chan struct{}), bookStarted: make(chan struct{})}
	e := startEngine(t, repo, Options{Identity: mentee})

	_, err := e.SelectTimeSlot(sessions[1].ID)
	require.NoError(t, err)

	type result struct {
		outcome Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		o, err := e.Book(context.Background())
		done <- result{o, err}
	}()
	waitFor(t, repo.bookStarted)

	assert.Equal(t, StateBooking, e.Snapshot().State)

	_, err = e.Book(context.Background())
	assert.ErrorIs(t, err, ErrBookingInProgress)
	assert.ErrorIs(t, e.SelectDate("2025-09-12"), ErrBookingInProgress)
	_, err = e.SelectTimeSlot(sessions[0].ID)
	assert.ErrorIs(t, err, ErrBookingInProgress)
	assert.ErrorIs(t, e.ApplyFilters(context.Background(), Filters{Duration: 30}), ErrBookingInProgress)
	assert.ErrorIs(t, e.Reset(), ErrBookingInProgress)

	close(repo.bookGate)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, OutcomeConfirmed, r.outcome.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("booking never finished")
	}

	_, book := repo.calls()
	assert.Equal(t, 1, book)
}

func TestEngineStopDiscardsInFlightBooking(t *testing.T) {
	sessions := scenarioSessions(t)
	repo := &stubRepo{sessions: sessions, bookGate: make(chan struct{}), bookStarted: make(chan struct{})}

	emitted := make(chan Outcome, 1)
	e := startEngine(t, repo, Options{Identity: mentee, OnOutcome: func(o Outcome) { emitted <- o }})

	_, err := e.SelectTimeSlot(sessions[1].ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.Book(context.Background())
		done <- err
	}()
	waitFor(t, repo.bookStarted)

	e.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrEngineStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not cancel the booking call")
	}

	assert.Empty(t, emitted, "no outcome is delivered after stop")
	list, _ := repo.calls()
	assert.Equal(t, 1, list, "no refresh after stop")
}

func TestEngineStopDiscardsInFlightRefresh(t *testing.T) {
	repo := &stubRepo{sessions: scenarioSessions(t)}
	e := startEngine(t, repo, Options{})

	repo.mu.Lock()
	repo.listGate = make(chan struct{})
	repo.sessions = nil
	repo.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- e.Refresh(context.Background()) }()
	require.Eventually(t, func() bool {
		list, _ := repo.calls()
		return list == 2
	}, 2*time.Second, 5*time.Millisecond)

	e.Stop()
	assert.ErrorIs(t, <-done, ErrEngineStopped)

	// the old snapshot is left untouched
	assert.Len(t, e.AllDates(), 2)
}

func TestEngineDiscardsSupersededRefresh(t *testing.T) {
	repo := &stubRepo{sessions: scenarioSessions(t)}
	e := startEngine(t, repo, Options{})

	gate := make(chan struct{})
	repo.mu.Lock()
	repo.listGate = gate
	repo.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- e.Refresh(context.Background()) }()
	require.Eventually(t, func() bool {
		list, _ := repo.calls()
		return list == 2
	}, 2*time.Second, 5*time.Millisecond)

	repo.mu.Lock()
	repo.listGate = nil
	repo.sessions = repo.sessions[3:]
	repo.mu.Unlock()
	require.NoError(t, e.Refresh(context.Background()))

	// the older call now fails, but its result is ignored
	repo.mu.Lock()
	repo.listErr = errors.New("late failure")
	repo.mu.Unlock()
	close(gate)
	assert.NoError(t, <-done)

	snap := e.Snapshot()
	assert.False(t, snap.FetchFailed)
	require.Len(t, snap.Dates, 1)
	assert.Equal(t, "2025-09-12", snap.Dates[0].Date)
	assert.Equal(t, "2025-09-12", snap.SelectedDate, "vanished day is replaced by the recommended one")
}

func TestEngineRefreshDropsVanishedSlot(t *testing.T) {
	sessions := scenarioSessions(t)
	repo := &stubRepo{sessions: sessions}
	e := startEngine(t, repo, Options{})

	_, err := e.SelectTimeSlot(sessions[0].ID)
	require.NoError(t, err)

	repo.mu.Lock()
	repo.sessions[0].Status = session.StatusBooked
	repo.mu.Unlock()
	require.NoError(t, e.Refresh(context.Background()))

	snap := e.Snapshot()
	assert.Equal(t, StateDateSelected, snap.State)
	assert.Equal(t, "2025-09-10", snap.SelectedDate)
	assert.Nil(t, snap.SelectedSlot)
}

func TestEngineWindows(t *testing.T) {
	var sessions []session.Session
	for _, day := range []string{"01", "02", "03", "04", "05", "06"} {
		sessions = append(sessions, newSession(at(t, "2025-09-"+day+" 09:00"), session.StatusAvailable))
	}
	for _, hour := range []string{"10", "11", "12", "13", "14"} {
		sessions = append(sessions, newSession(at(t, "2025-09-01 "+hour+":00"), session.StatusAvailable))
	}

	e := startEngine(t, &stubRepo{sessions: sessions}, Options{PageSize: 4})

	snap := e.Snapshot()
	assert.Len(t, snap.Dates, 4)
	assert.Equal(t, WindowInfo{Start: 0, Size: 4, Total: 6, HasPrev: false, HasNext: true}, snap.DateWindow)
	assert.Len(t, snap.Slots, 4)
	assert.Equal(t, 6, snap.SlotWindow.Total)

	e.NextDates()
	snap = e.Snapshot()
	require.Len(t, snap.Dates, 2)
	assert.Equal(t, "2025-09-05", snap.Dates[0].Date)
	assert.False(t, snap.DateWindow.HasNext)

	e.NextDates()
	assert.Equal(t, 4, e.Snapshot().DateWindow.Start, "next on the last page is a no-op")

	e.PrevDates()
	e.PrevDates()
	assert.Equal(t, 0, e.Snapshot().DateWindow.Start)

	e.NextSlots()
	snap = e.Snapshot()
	assert.Equal(t, []string{"1:00 PM", "2:00 PM"}, slotTimes(snap.Slots))
	assert.True(t, snap.SlotWindow.HasPrev)

	require.NoError(t, e.SelectDate("2025-09-06"))
	snap = e.Snapshot()
	assert.Equal(t, 4, snap.DateWindow.Start, "selecting a day off the page moves the date window to it")
	assert.Equal(t, "2025-09-06", snap.SelectedDate)

	require.NoError(t, e.SelectDate("2025-09-01"))
	snap = e.Snapshot()
	assert.Equal(t, 0, snap.DateWindow.Start)
	assert.Equal(t, 0, snap.SlotWindow.Start, "selecting a day restarts the slot window")

	e.NextSlots()
	e.PrevSlots()
	assert.Equal(t, 0, e.Snapshot().SlotWindow.Start)
}

func TestEngineCountsMalformedSessions(t *testing.T) {
	sessions := append(scenarioSessions(t), newSession(time.Time{}, session.StatusAvailable))
	e := startEngine(t, &stubRepo{sessions: sessions}, Options{})

	snap := e.Snapshot()
	assert.Equal(t, 1, snap.Skipped)
	assert.Len(t, snap.Dates, 2)
}
