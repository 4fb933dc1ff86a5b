package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/trial-session-booking/internal/session"
)

// Identity is the contact of the signed-in mentee. A nil *Identity means nobody
// is signed in.
type Identity struct {
	Name  string
	Email string
	Phone string
}

func (i *Identity) present() bool {
	return i != nil && strings.TrimSpace(i.Name) != "" && strings.TrimSpace(i.Email) != ""
}

type OutcomeKind string

const (
	OutcomeConfirmed OutcomeKind = "confirmed"
	OutcomePending   OutcomeKind = "pending"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the result of one booking attempt, ready for the host to render.
type Outcome struct {
	Kind      OutcomeKind      `json:"kind"`
	Message   string           `json:"message"`
	SessionID uuid.UUID        `json:"session_id"`
	Session   *session.Session `json:"session,omitempty"`
	Err       error            `json:"-"`
}

func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeConfirmed || o.Kind == OutcomePending
}

// Coordinator validates a selection, issues the booking and interprets the
// result. Engine.Book sequences Check and Submit around the selection lock and
// refreshes afterwards.
type Coordinator struct {
	repo   session.Repository
	loc    *time.Location
	logger *zap.Logger
}

func NewCoordinator(repo session.Repository, loc *time.Location, logger *zap.Logger) *Coordinator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{repo: repo, loc: loc, logger: logger}
}

// Check verifies the preconditions that can be decided locally. The availability
// check is best effort against the last known calendar; the backend has the final say.
func (c *Coordinator) Check(identity *Identity, sessionID uuid.UUID, known []DateSlot) (TimeSlot, error) {
	if !identity.present() {
		return TimeSlot{}, &BookingError{Kind: ErrNotAuthenticated, Message: MsgNotAuthenticated}
	}

	slot, ok := FindSlot(known, sessionID)
	if !ok || !slot.Available {
		return TimeSlot{}, &BookingError{Kind: ErrStaleSelection, Message: MsgSlotUnavailable}
	}

	return slot, nil
}

// Submit sends the booking request for a slot that passed Check.
func (c *Coordinator) Submit(ctx context.Context, identity *Identity, slot TimeSlot) Outcome {
	req := session.BookingRequest{
		SessionID:   slot.SessionID,
		MenteeName:  strings.TrimSpace(identity.Name),
		MenteeEmail: strings.TrimSpace(identity.Email),
		MenteePhone: strings.TrimSpace(identity.Phone),
	}

	booked, err := c.repo.BookSession(ctx, req)
	if err != nil {
		berr := classify(err)
		c.logger.Info("booking failed",
			zap.String("session_id", slot.SessionID.String()),
			zap.String("kind", berr.Kind.Error()),
			zap.Error(err))
		return failedOutcome(slot.SessionID, berr)
	}

	when := slot.StartsAt.In(c.loc).Format("Mon, Jan 2 at " + TimeLayout)

	if slot.RequireConfirmation || booked.Status == session.StatusPendingConfirmation {
		c.logger.Info("booking pending confirmation", zap.String("session_id", slot.SessionID.String()))
		return Outcome{
			Kind:      OutcomePending,
			Message:   fmt.Sprintf("Your request for %s was sent and is pending confirmation from the mentor.", when),
			SessionID: slot.SessionID,
			Session:   booked,
		}
	}

	c.logger.Info("booking confirmed", zap.String("session_id", slot.SessionID.String()))
	return Outcome{
		Kind:      OutcomeConfirmed,
		Message:   fmt.Sprintf("Your trial session on %s is booked.", when),
		SessionID: slot.SessionID,
		Session:   booked,
	}
}

func classify(err error) *BookingError {
	kind := ErrTransportFailure
	message := MsgBookingFailed
	if errors.Is(err, session.ErrSessionNotAvailable) || errors.Is(err, session.ErrSessionBeingBooked) {
		kind = ErrStaleSelection
		message = MsgSlotUnavailable
	}

	if apiErr, ok := session.AsAPIError(err); ok && apiErr.Message != "" {
		message = apiErr.Message
	}

	return &BookingError{Kind: kind, Message: message, Err: err}
}

func failedOutcome(sessionID uuid.UUID, err error) Outcome {
	message := MsgBookingFailed
	var berr *BookingError
	if errors.As(err, &berr) {
		message = berr.Message
	}
	return Outcome{Kind: OutcomeFailed, Message: message, SessionID: sessionID, Err: err}
}
