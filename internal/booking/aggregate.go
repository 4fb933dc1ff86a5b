package booking

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/trial-session-booking/internal/session"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "3:04 PM"
)

// DateSlot aggregates the sessions that start on one calendar day.
type DateSlot struct {
	Date           string     `json:"date"`
	Day            string     `json:"day"`
	DayOfMonth     string     `json:"day_of_month"`
	Month          string     `json:"month"`
	Slots          []TimeSlot `json:"slots"`
	TotalSlots     int        `json:"total_slots"`
	AvailableSlots int        `json:"available_slots"`
	IsRecommended  bool       `json:"is_recommended"`
}

// TimeSlot is the per-session selection unit inside a DateSlot.
type TimeSlot struct {
	Time                string    `json:"time"`
	StartsAt            time.Time `json:"starts_at"`
	Duration            int       `json:"duration"`
	Available           bool      `json:"available"`
	SessionID           uuid.UUID `json:"session_id"`
	SessionType         string    `json:"session_type"`
	Title               string    `json:"title,omitempty"`
	Description         string    `json:"description,omitempty"`
	SpecialInstructions string    `json:"special_instructions,omitempty"`
	TimeZone            string    `json:"time_zone"`
	AllowRescheduling   bool      `json:"allow_rescheduling"`
	RequireConfirmation bool      `json:"require_confirmation"`
}

// Aggregate groups sessions into calendar days of loc (UTC when nil).
//
// Only days with at least one available slot are kept, sorted ascending, with the
// earliest one marked recommended. Records that cannot be placed on a calendar are
// skipped and returned as *MalformedSessionError values; they never abort the run.
func Aggregate(sessions []session.Session, loc *time.Location) ([]DateSlot, []error) {
	if loc == nil {
		loc = time.UTC
	}

	var skipped []error
	groups := make(map[string]*DateSlot)

	for _, s := range sessions {
		if s.ScheduledAt.IsZero() {
			skipped = append(skipped, &MalformedSessionError{SessionID: s.ID, Reason: "missing or unparseable start time"})
			continue
		}
		if s.DurationMinutes <= 0 {
			skipped = append(skipped, &MalformedSessionError{SessionID: s.ID, Reason: "non-positive duration"})
			continue
		}

		local := s.ScheduledAt.In(loc)
		key := local.Format(DateLayout)

		ds, ok := groups[key]
		if !ok {
			ds = &DateSlot{
				Date:       key,
				Day:        local.Format("Mon"),
				DayOfMonth: local.Format("2"),
				Month:      local.Format("Jan"),
			}
			groups[key] = ds
		}

		ds.Slots = append(ds.Slots, newTimeSlot(s, local))
	}

	dates := make([]DateSlot, 0, len(groups))
	for _, ds := range groups {
		sort.SliceStable(ds.Slots, func(i, j int) bool {
			a, b := ds.Slots[i], ds.Slots[j]
			if !a.StartsAt.Equal(b.StartsAt) {
				return a.StartsAt.Before(b.StartsAt)
			}
			return a.SessionID.String() < b.SessionID.String()
		})

		ds.TotalSlots = len(ds.Slots)
		for _, slot := range ds.Slots {
			if slot.Available {
				ds.AvailableSlots++
			}
		}
		if ds.AvailableSlots == 0 {
			continue
		}
		dates = append(dates, *ds)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Date < dates[j].Date })

	if len(dates) > 0 {
		dates[0].IsRecommended = true
	}

	return dates, skipped
}

func newTimeSlot(s session.Session, local time.Time) TimeSlot {
	return TimeSlot{
		Time:                local.Format(TimeLayout),
		StartsAt:            s.ScheduledAt,
		Duration:            s.DurationMinutes,
		Available:           s.Available(),
		SessionID:           s.ID,
		SessionType:         s.SessionType,
		Title:               s.Title,
		Description:         s.Description,
		SpecialInstructions: s.SpecialInstructions,
		TimeZone:            s.Zone(),
		AllowRescheduling:   s.AllowRescheduling,
		RequireConfirmation: s.RequireConfirmation,
	}
}

// Recommended returns the recommended day, if any.
func Recommended(dates []DateSlot) (DateSlot, bool) {
	for _, d := range dates {
		if d.IsRecommended {
			return d, true
		}
	}
	return DateSlot{}, false
}

// FindDate looks a day up by its DateLayout key.
func FindDate(dates []DateSlot, date string) (DateSlot, int, bool) {
	for i, d := range dates {
		if d.Date == date {
			return d, i, true
		}
	}
	return DateSlot{}, -1, false
}

// FindSlot locates the time slot backed by sessionID across all days.
func FindSlot(dates []DateSlot, sessionID uuid.UUID) (TimeSlot, bool) {
	for _, d := range dates {
		for _, slot := range d.Slots {
			if slot.SessionID == sessionID {
				return slot, true
			}
		}
	}
	return TimeSlot{}, false
}
