package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/trial-session-booking/internal/config"
	redisclient "github.com/hackgods/trial-session-booking/internal/redis"
)

const (
	EventSessionBooked    = "SESSION_BOOKED"
	EventSessionRequested = "SESSION_REQUESTED"
	EventSessionConfirmed = "SESSION_CONFIRMED"
	EventPendingExpired   = "SESSION_PENDING_EXPIRED"
)

var (
	ErrSessionBeingBooked      = errors.New("session is currently being booked, please retry")
	ErrInvalidContact          = errors.New("mentee name and a valid email are required")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrPendingExpired          = errors.New("pending booking has expired")
)

type Service struct {
	store  Store
	locker redisclient.Locker
	cfg    config.Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, locker redisclient.Locker, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// ListAvailableSessions returns every session of the mentor. Status filtering is
// left to the caller.
func (s *Service) ListAvailableSessions(ctx context.Context, mentorID uuid.UUID) ([]Session, error) {
	sessions, err := s.store.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []Session{}
	}
	return sessions, nil
}

// BookSession reserves an available session for a mentee. Sessions that require
// confirmation are held in StatusPendingConfirmation until the mentor confirms or
// the pending TTL runs out.
func (s *Service) BookSession(ctx context.Context, req BookingRequest) (*Session, error) {
	req.MenteeName = strings.TrimSpace(req.MenteeName)
	req.MenteeEmail = strings.TrimSpace(strings.ToLower(req.MenteeEmail))
	req.MenteePhone = strings.TrimSpace(req.MenteePhone)
	if req.MenteeName == "" || !isValidEmail(req.MenteeEmail) {
		return nil, ErrInvalidContact
	}

	current, err := s.store.GetByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !current.Available() {
		return nil, ErrSessionNotAvailable
	}

	var booked *Session

	err = s.locker.WithSessionLock(ctx, req.SessionID, func(lockCtx context.Context) error {
		to := StatusBooked
		event := EventSessionBooked
		var expiresAt *time.Time
		if current.RequireConfirmation {
			to = StatusPendingConfirmation
			event = EventSessionRequested
			exp := s.now().Add(s.cfg.PendingTTL)
			expiresAt = &exp
		}

		reserved, err := s.store.Reserve(lockCtx, req, to, expiresAt)
		if err != nil {
			// the conditional update matched nothing: someone else got there first
			if errors.Is(err, ErrSessionNotFound) {
				return ErrSessionNotAvailable
			}
			return fmt.Errorf("reserve session: %w", err)
		}

		booked = reserved

		payload := map[string]any{
			"mentor_id":    reserved.MentorID.String(),
			"mentee_email": req.MenteeEmail,
		}
		if expiresAt != nil {
			payload["pending_expires_at"] = *expiresAt
		}
		s.logEvent(lockCtx, reserved.ID, event, payload)

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSessionBeingBooked
		}
		return nil, err
	}

	return booked, nil
}

// ConfirmSession moves a pending-confirmation session to booked.
func (s *Service) ConfirmSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if current.Status != StatusPendingConfirmation {
		return nil, ErrInvalidStatusTransition
	}

	if current.PendingExpiresAt != nil && current.PendingExpiresAt.Before(s.now()) {
		if _, relErr := s.store.Release(ctx, id); relErr != nil && !errors.Is(relErr, ErrSessionNotFound) {
			s.logger.Warn("failed to release expired pending session during confirm",
				zap.String("session_id", id.String()), zap.Error(relErr))
		}
		s.logEvent(ctx, id, EventPendingExpired, map[string]any{
			"reason": "confirm_after_expiry",
		})
		return nil, ErrPendingExpired
	}

	updated, err := s.store.UpdateStatus(ctx, id, StatusPendingConfirmation, StatusBooked)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("confirm session: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventSessionConfirmed, map[string]any{})

	return updated, nil
}

// ExpirePendingSessions is intended to be called by the worker periodically.
// It returns the number of sessions released back to AVAILABLE.
func (s *Service) ExpirePendingSessions(ctx context.Context) (int, error) {
	candidates, err := s.store.FindExpiredPending(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("find expired pending sessions: %w", err)
	}

	released := 0
	for _, candidate := range candidates {
		_, err := s.store.Release(ctx, candidate.ID)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				s.logger.Warn("failed to release pending session",
					zap.String("session_id", candidate.ID.String()), zap.Error(err))
			}
			continue
		}
		released++
		s.logEvent(ctx, candidate.ID, EventPendingExpired, map[string]any{
			"reason": "worker",
		})
	}

	return released, nil
}

func (s *Service) logEvent(ctx context.Context, sessionID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	id := sessionID

	ev := EventLog{
		EventType: eventType,
		SessionID: &id,
		Payload:   data,
		CreatedAt: s.now(),
	}

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to insert session event",
			zap.String("event", eventType), zap.String("session_id", sessionID.String()), zap.Error(err))
	}
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}
