package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/trial-session-booking/internal/booking"
	"github.com/hackgods/trial-session-booking/internal/metrics"
	redisclient "github.com/hackgods/trial-session-booking/internal/redis"
	"github.com/hackgods/trial-session-booking/internal/session"
)

func listSessionsHandler(svc SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mentorID, err := uuid.Parse(chi.URLParam(r, "mentorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_mentor_id", "mentorID must be a valid UUID")
			return
		}

		sessions, err := svc.ListAvailableSessions(r.Context(), mentorID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, ListSessionsResponse{MentorID: mentorID, Sessions: sessions})
	}
}

// availabilityHandler filters and aggregates a mentor's sessions into calendar
// days, the same way the booking engine does on the client.
func availabilityHandler(svc SessionService, defaultLoc *time.Location, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mentorID, err := uuid.Parse(chi.URLParam(r, "mentorID"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_mentor_id", "mentorID must be a valid UUID")
			return
		}

		filters, err := parseFilters(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
			return
		}

		loc := defaultLoc
		if tz := r.URL.Query().Get("display_tz"); tz != "" {
			loc, err = time.LoadLocation(tz)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_display_tz", "display_tz must be an IANA time zone")
				return
			}
		}

		sessions, err := svc.ListAvailableSessions(r.Context(), mentorID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		dates, skipped := booking.Aggregate(booking.Apply(sessions, filters), loc)
		for _, skipErr := range skipped {
			logger.Warn("skipping malformed session",
				zap.String("request_id", GetRequestID(r.Context())), zap.Error(skipErr))
		}

		resp := AvailabilityResponse{
			MentorID:    mentorID,
			DisplayZone: loc.String(),
			Filters:     filters,
			Options:     booking.FilterOptionsFor(sessions),
			Dates:       dates,
			Skipped:     len(skipped),
		}
		if len(dates) == 0 {
			resp.Message = booking.MsgNoAvailability
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func bookSessionHandler(svc SessionService, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			m.RecordBooking("invalid_request_body")
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		sessionID, err := uuid.Parse(req.SessionID)
		if err != nil {
			m.RecordBooking("invalid_session_id")
			writeError(w, http.StatusBadRequest, "invalid_session_id", "session_id must be a valid UUID")
			return
		}

		booked, err := svc.BookSession(r.Context(), session.BookingRequest{
			SessionID:   sessionID,
			MenteeName:  req.MenteeName,
			MenteeEmail: req.MenteeEmail,
			MenteePhone: req.MenteePhone,
		})
		if err != nil {
			status, code, details := bookErrorResponse(err)
			m.RecordBooking(code)
			writeError(w, status, code, details)
			return
		}

		if booked.Status == session.StatusPendingConfirmation {
			m.RecordBooking("pending")
		} else {
			m.RecordBooking("booked")
		}

		writeJSON(w, http.StatusCreated, booked)
	}
}

func confirmSessionHandler(svc SessionService, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session_id", "id must be a valid UUID")
			return
		}

		confirmed, err := svc.ConfirmSession(r.Context(), id)
		if err != nil {
			status, code, details := confirmErrorResponse(err)
			m.RecordConfirmation(code)
			writeError(w, status, code, details)
			return
		}

		m.RecordConfirmation("confirmed")
		writeJSON(w, http.StatusOK, confirmed)
	}
}

func bookErrorResponse(err error) (int, string, string) {
	switch {
	case errors.Is(err, session.ErrInvalidContact):
		return http.StatusBadRequest, "invalid_contact", err.Error()
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found", err.Error()
	case errors.Is(err, session.ErrSessionNotAvailable):
		return http.StatusConflict, "session_not_available", err.Error()
	case errors.Is(err, session.ErrSessionBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		return http.StatusConflict, "session_being_booked", "session is currently being booked, please retry shortly"
	default:
		return http.StatusInternalServerError, "internal_error", err.Error()
	}
}

func confirmErrorResponse(err error) (int, string, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found", err.Error()
	case errors.Is(err, session.ErrPendingExpired):
		return http.StatusConflict, "pending_expired", err.Error()
	case errors.Is(err, session.ErrInvalidStatusTransition):
		return http.StatusConflict, "invalid_status_transition", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", err.Error()
	}
}

func parseFilters(r *http.Request) (booking.Filters, error) {
	q := r.URL.Query()
	f := booking.Filters{
		SessionType: strings.TrimSpace(q.Get("session_type")),
		TimeZone:    strings.TrimSpace(q.Get("time_zone")),
	}

	if raw := q.Get("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 0 {
			return booking.Filters{}, errors.New("duration must be a non-negative number of minutes")
		}
		f.Duration = d
	}

	if raw := q.Get("recurring_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return booking.Filters{}, errors.New("recurring_only must be a boolean")
		}
		f.ShowRecurringOnly = v
	}

	if raw := q.Get("allow_rescheduling"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return booking.Filters{}, errors.New("allow_rescheduling must be a boolean")
		}
		f.AllowRescheduling = &v
	}

	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
