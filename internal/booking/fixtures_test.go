package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/trial-session-booking/internal/session"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	require.NoError(t, err)
	return ts.UTC()
}

func newSession(start time.Time, status session.Status, mods ...func(*session.Session)) session.Session {
	s := session.Session{
		ID:              uuid.New(),
		MentorID:        mentorID,
		ScheduledAt:     start,
		DurationMinutes: 30,
		Status:          status,
		SessionType:     "intro",
	}
	for _, mod := range mods {
		mod(&s)
	}
	return s
}

func withDuration(m int) func(*session.Session) {
	return func(s *session.Session) { s.DurationMinutes = m }
}

func withType(t string) func(*session.Session) {
	return func(s *session.Session) { s.SessionType = t }
}

func requiringConfirmation(s *session.Session) { s.RequireConfirmation = true }

var mentorID = uuid.MustParse("5b0d3f5e-4a52-4d43-9a57-0c5e4a1a9b10")

// scenarioSessions: three sessions on 2025-09-10 (two open, one booked) and one
// open session on 2025-09-12.
func scenarioSessions(t *testing.T) []session.Session {
	return []session.Session{
		newSession(at(t, "2025-09-10 14:00"), session.StatusAvailable),
		newSession(at(t, "2025-09-10 10:00"), session.StatusAvailable),
		newSession(at(t, "2025-09-10 12:00"), session.StatusBooked),
		newSession(at(t, "2025-09-12 09:00"), session.StatusAvailable),
	}
}

func randomSessions(f *gofakeit.Faker, n int) []session.Session {
	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	statuses := []string{
		string(session.StatusAvailable),
		string(session.StatusAvailable),
		string(session.StatusBooked),
		string(session.StatusCancelled),
		string(session.StatusCompleted),
		string(session.StatusPendingConfirmation),
	}
	types := []string{"intro", "career", "code-review", "mock-interview"}
	zones := []string{"", "UTC", "Asia/Kolkata", "America/New_York"}
	durations := []int{15, 30, 45, 60}

	out := make([]session.Session, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, session.Session{
			ID:                uuid.New(),
			MentorID:          mentorID,
			ScheduledAt:       base.Add(time.Duration(f.Number(0, 14*24*60)) * time.Minute),
			DurationMinutes:   durations[f.Number(0, len(durations)-1)],
			Status:            session.Status(f.RandomString(statuses)),
			SessionType:       f.RandomString(types),
			TimeZone:          f.RandomString(zones),
			IsRecurring:       f.Bool(),
			AllowRescheduling: f.Bool(),
		})
	}
	return out
}

// stubRepo is an in-memory session.Repository. Gates, when set, block the
// matching call until closed or the context ends.
type stubRepo struct {
	mu           sync.Mutex
	sessions     []session.Session
	listErr      error
	bookErr      error
	listCalls    int
	bookRequests []session.BookingRequest
	listGate     chan struct{}
	bookGate     chan struct{}
	bookStarted  chan struct{}
}

func (r *stubRepo) ListAvailableSessions(ctx context.Context, id uuid.UUID) ([]session.Session, error) {
	r.mu.Lock()
	r.listCalls++
	gate := r.listGate
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]session.Session(nil), r.sessions...), nil
}

func (r *stubRepo) BookSession(ctx context.Context, req session.BookingRequest) (*session.Session, error) {
	r.mu.Lock()
	r.bookRequests = append(r.bookRequests, req)
	gate := r.bookGate
	started := r.bookStarted
	r.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bookErr != nil {
		return nil, r.bookErr
	}
	for i := range r.sessions {
		s := &r.sessions[i]
		if s.ID != req.SessionID {
			continue
		}
		if s.Status != session.StatusAvailable {
			return nil, session.ErrSessionNotAvailable
		}
		s.Status = session.StatusBooked
		if s.RequireConfirmation {
			s.Status = session.StatusPendingConfirmation
		}
		cp := *s
		return &cp, nil
	}
	return nil, session.ErrSessionNotFound
}

func (r *stubRepo) calls() (list, book int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls, len(r.bookRequests)
}
