package booking

import (
	"sort"

	"github.com/hackgods/trial-session-booking/internal/session"
)

// Filters narrows the raw session set. Zero values impose no constraint, except
// AllowRescheduling which is tri-state: nil means any, true/false require an exact match.
type Filters struct {
	Duration          int    `json:"duration,omitempty"`
	SessionType       string `json:"session_type,omitempty"`
	TimeZone          string `json:"time_zone,omitempty"`
	ShowRecurringOnly bool   `json:"recurring_only,omitempty"`
	AllowRescheduling *bool  `json:"allow_rescheduling,omitempty"`
}

// IsZero reports whether no filter field is set.
func (f Filters) IsZero() bool {
	return f.Duration == 0 && f.SessionType == "" && f.TimeZone == "" &&
		!f.ShowRecurringOnly && f.AllowRescheduling == nil
}

// Match reports whether s satisfies every set constraint.
func (f Filters) Match(s session.Session) bool {
	if f.Duration != 0 && s.DurationMinutes != f.Duration {
		return false
	}
	if f.SessionType != "" && s.SessionType != f.SessionType {
		return false
	}
	if f.TimeZone != "" && s.Zone() != f.TimeZone {
		return false
	}
	if f.ShowRecurringOnly && !s.IsRecurring {
		return false
	}
	if f.AllowRescheduling != nil && s.AllowRescheduling != *f.AllowRescheduling {
		return false
	}
	return true
}

// Apply returns the sessions matching f, preserving input order. The result never
// aliases the input slice.
func Apply(sessions []session.Session, f Filters) []session.Session {
	out := make([]session.Session, 0, len(sessions))
	for _, s := range sessions {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// FilterOptions lists the distinct values present in an unfiltered session set,
// for building a filter picker.
type FilterOptions struct {
	Durations    []int    `json:"durations"`
	SessionTypes []string `json:"session_types"`
	TimeZones    []string `json:"time_zones"`
}

func FilterOptionsFor(sessions []session.Session) FilterOptions {
	durations := make(map[int]struct{})
	types := make(map[string]struct{})
	zones := make(map[string]struct{})

	for _, s := range sessions {
		if s.DurationMinutes > 0 {
			durations[s.DurationMinutes] = struct{}{}
		}
		if s.SessionType != "" {
			types[s.SessionType] = struct{}{}
		}
		zones[s.Zone()] = struct{}{}
	}

	opts := FilterOptions{
		Durations:    make([]int, 0, len(durations)),
		SessionTypes: sortedKeys(types),
		TimeZones:    sortedKeys(zones),
	}
	for d := range durations {
		opts.Durations = append(opts.Durations, d)
	}
	sort.Ints(opts.Durations)
	return opts
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
