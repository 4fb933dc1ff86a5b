package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotAvailable = errors.New("session is no longer available")
)

// Repository is the contract the booking engine consumes. It is satisfied by the
// server-side Service and by the remote Client.
type Repository interface {
	ListAvailableSessions(ctx context.Context, mentorID uuid.UUID) ([]Session, error)
	BookSession(ctx context.Context, req BookingRequest) (*Session, error)
}

// Store contains all DB interactions needed by the service.
type Store interface {
	ListByMentor(ctx context.Context, mentorID uuid.UUID) ([]Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Session, error)

	// Conditional transitions; ErrSessionNotFound when the row is not in the from status.
	Reserve(ctx context.Context, req BookingRequest, to Status, pendingExpiresAt *time.Time) (*Session, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Session, error)
	Release(ctx context.Context, id uuid.UUID) (*Session, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Session, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
