package api

import (
	"github.com/google/uuid"

	"github.com/hackgods/trial-session-booking/internal/booking"
	"github.com/hackgods/trial-session-booking/internal/session"
)

type BookSessionRequest struct {
	SessionID   string `json:"session_id"`
	MenteeName  string `json:"mentee_name"`
	MenteeEmail string `json:"mentee_email"`
	MenteePhone string `json:"mentee_phone,omitempty"`
}

type ListSessionsResponse struct {
	MentorID uuid.UUID         `json:"mentor_id"`
	Sessions []session.Session `json:"sessions"`
}

// AvailabilityResponse is the server-side rendering of the booking calendar.
type AvailabilityResponse struct {
	MentorID    uuid.UUID             `json:"mentor_id"`
	DisplayZone string                `json:"display_time_zone"`
	Filters     booking.Filters       `json:"filters"`
	Options     booking.FilterOptions `json:"options"`
	Dates       []booking.DateSlot    `json:"dates"`
	Skipped     int                   `json:"skipped"`
	Message     string                `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
