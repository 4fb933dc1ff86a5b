package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// APIError is a non-2xx response from the session API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("session api: %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("session api: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is lets callers match API errors against the package sentinels.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case "session_not_available":
		return target == ErrSessionNotAvailable
	case "session_not_found":
		return target == ErrSessionNotFound
	case "session_being_booked":
		return target == ErrSessionBeingBooked
	case "invalid_contact":
		return target == ErrInvalidContact
	}
	return false
}

// Client implements Repository against the HTTP session API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type listSessionsResponse struct {
	MentorID uuid.UUID       `json:"mentor_id"`
	Sessions []sessionRecord `json:"sessions"`
}

// sessionRecord tolerates an unparseable start time so one bad record does not
// fail the whole listing. Such records keep a zero ScheduledAt.
type sessionRecord struct {
	Session
	ScheduledAt string `json:"scheduled_date_time"`
}

func (r sessionRecord) toSession() Session {
	s := r.Session
	if t, err := time.Parse(time.RFC3339, r.ScheduledAt); err == nil {
		s.ScheduledAt = t
	} else {
		s.ScheduledAt = time.Time{}
	}
	return s
}

func (c *Client) ListAvailableSessions(ctx context.Context, mentorID uuid.UUID) ([]Session, error) {
	var resp listSessionsResponse
	if err := c.do(ctx, http.MethodGet, "/mentors/"+mentorID.String()+"/sessions", nil, &resp); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]Session, 0, len(resp.Sessions))
	for _, rec := range resp.Sessions {
		sessions = append(sessions, rec.toSession())
	}
	return sessions, nil
}

func (c *Client) BookSession(ctx context.Context, req BookingRequest) (*Session, error) {
	var rec sessionRecord
	if err := c.do(ctx, http.MethodPost, "/sessions/book", req, &rec); err != nil {
		return nil, fmt.Errorf("book session: %w", err)
	}
	s := rec.toSession()
	return &s, nil
}

func (c *Client) ConfirmSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var rec sessionRecord
	if err := c.do(ctx, http.MethodPost, "/sessions/"+id.String()+"/confirm", nil, &rec); err != nil {
		return nil, fmt.Errorf("confirm session: %w", err)
	}
	s := rec.toSession()
	return &s, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}

	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			apiErr.Code = body.Error
		}
		apiErr.Message = body.Details
	}
	return apiErr
}

// AsAPIError extracts the server response carried by err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
