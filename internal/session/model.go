package session

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAvailable           Status = "AVAILABLE"
	StatusPendingConfirmation Status = "PENDING_CONFIRMATION"
	StatusBooked              Status = "BOOKED"
	StatusCancelled           Status = "CANCELLED"
	StatusCompleted           Status = "COMPLETED"
)

// DefaultTimeZone is the display label used when a session carries none.
const DefaultTimeZone = "UTC"

// Session is a single trial-mentoring time unit owned by a mentor.
// Only sessions in StatusAvailable can be booked.
type Session struct {
	ID                  uuid.UUID `json:"id"`
	MentorID            uuid.UUID `json:"mentor_id"`
	ScheduledAt         time.Time `json:"scheduled_date_time"`
	DurationMinutes     int       `json:"duration_minutes"`
	Status              Status    `json:"status"`
	SessionType         string    `json:"session_type"`
	TimeZone            string    `json:"time_zone,omitempty"`
	IsRecurring         bool      `json:"is_recurring"`
	AllowRescheduling   bool      `json:"allow_rescheduling"`
	RequireConfirmation bool      `json:"require_confirmation"`
	Title               string    `json:"session_title,omitempty"`
	Description         string    `json:"session_description,omitempty"`
	SpecialInstructions string    `json:"special_instructions,omitempty"`

	MenteeName       *string    `json:"mentee_name,omitempty"`
	MenteeEmail      *string    `json:"mentee_email,omitempty"`
	MenteePhone      *string    `json:"mentee_phone,omitempty"`
	PendingExpiresAt *time.Time `json:"pending_expires_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (s Session) Available() bool {
	return s.Status == StatusAvailable
}

// Zone returns the session's display timezone label, falling back to DefaultTimeZone.
func (s Session) Zone() string {
	if s.TimeZone == "" {
		return DefaultTimeZone
	}
	return s.TimeZone
}

// BookingRequest is what a mentee submits to reserve a session.
type BookingRequest struct {
	SessionID   uuid.UUID `json:"session_id"`
	MenteeName  string    `json:"mentee_name"`
	MenteeEmail string    `json:"mentee_email"`
	MenteePhone string    `json:"mentee_phone,omitempty"`
}

type EventLog struct {
	ID        int64
	EventType string
	SessionID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
