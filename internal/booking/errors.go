package booking

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrBookingInProgress = errors.New("a booking is already in progress")
	ErrNoDateSelected    = errors.New("no date selected")
	ErrNoSlotSelected    = errors.New("no time slot selected")
	ErrUnknownDate       = errors.New("date has no availability")
	ErrUnknownSlot       = errors.New("time slot not found on the selected date")
	ErrEngineStopped     = errors.New("booking engine stopped")
	ErrEngineStarted     = errors.New("booking engine already started")
	ErrEngineNotStarted  = errors.New("booking engine not started")
)

// Booking failure kinds, matched with errors.Is against a *BookingError.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrStaleSelection   = errors.New("stale selection")
	ErrTransportFailure = errors.New("booking transport failure")
	ErrDataFetchFailure = errors.New("data fetch failure")
)

// User-facing messages.
const (
	MsgNotAuthenticated = "Please log in to book a trial session."
	MsgSlotUnavailable  = "This time slot is no longer available. Please choose another one."
	MsgBookingFailed    = "Failed to book the session. Please try again."
	MsgNoAvailability   = "No availability right now. Please try again later."
)

// BookingError is the failure of one booking attempt.
type BookingError struct {
	Kind    error  // one of ErrNotAuthenticated, ErrStaleSelection, ErrTransportFailure
	Message string // human readable, safe to show
	Err     error
}

func (e *BookingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *BookingError) Is(target error) bool { return target == e.Kind }

func (e *BookingError) Unwrap() error { return e.Err }

// FetchError wraps a failed session listing. The engine degrades to an empty
// calendar when it happens.
type FetchError struct {
	MentorID uuid.UUID
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch sessions for mentor %s: %v", e.MentorID, e.Err)
}

func (e *FetchError) Is(target error) bool { return target == ErrDataFetchFailure }

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedSessionError describes a record the aggregator had to skip.
type MalformedSessionError struct {
	SessionID uuid.UUID
	Reason    string
}

func (e *MalformedSessionError) Error() string {
	return fmt.Sprintf("session %s skipped: %s", e.SessionID, e.Reason)
}
