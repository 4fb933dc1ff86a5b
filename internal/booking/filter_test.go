package booking

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"

	"github.com/hackgods/trial-session-booking/internal/session"
)

func TestApplyNoFiltersKeepsEverythingInOrder(t *testing.T) {
	sessions := scenarioSessions(t)

	got := Apply(sessions, Filters{})
	assert.Equal(t, sessions, got)
}

func TestApplyEachConstraint(t *testing.T) {
	yes, no := true, false
	base := at(t, "2025-09-10 10:00")

	long := newSession(base, session.StatusAvailable, withDuration(60))
	career := newSession(base, session.StatusAvailable, withType("career"))
	kolkata := newSession(base, session.StatusAvailable, func(s *session.Session) { s.TimeZone = "Asia/Kolkata" })
	recurring := newSession(base, session.StatusAvailable, func(s *session.Session) { s.IsRecurring = true })
	flexible := newSession(base, session.StatusAvailable, func(s *session.Session) { s.AllowRescheduling = true })
	all := []session.Session{long, career, kolkata, recurring, flexible}

	cases := []struct {
		name    string
		filters Filters
		want    int
	}{
		{"duration", Filters{Duration: 60}, 1},
		{"session type", Filters{SessionType: "career"}, 1},
		{"time zone", Filters{TimeZone: "Asia/Kolkata"}, 1},
		{"unset zone matches default", Filters{TimeZone: session.DefaultTimeZone}, 4},
		{"recurring only", Filters{ShowRecurringOnly: true}, 1},
		{"reschedulable", Filters{AllowRescheduling: &yes}, 1},
		{"not reschedulable", Filters{AllowRescheduling: &no}, 4},
		{"combined", Filters{Duration: 60, SessionType: "career"}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, Apply(all, tc.filters), tc.want)
		})
	}
}

func TestApplyIsMonotonic(t *testing.T) {
	f := gofakeit.New(7)
	yes := true

	for i := 0; i < 100; i++ {
		sessions := randomSessions(f, f.Number(0, 50))
		steps := []Filters{
			{},
			{Duration: 30},
			{Duration: 30, SessionType: "intro"},
			{Duration: 30, SessionType: "intro", ShowRecurringOnly: true},
			{Duration: 30, SessionType: "intro", ShowRecurringOnly: true, AllowRescheduling: &yes},
			{Duration: 30, SessionType: "intro", ShowRecurringOnly: true, AllowRescheduling: &yes, TimeZone: "UTC"},
		}

		prev := len(sessions)
		for _, filters := range steps {
			got := Apply(sessions, filters)
			assert.LessOrEqual(t, len(got), prev)
			assert.Equal(t, got, Apply(got, filters), "applying the same filters twice changes nothing")
			prev = len(got)
		}
	}
}

func TestOptionsListsDistinctValues(t *testing.T) {
	base := at(t, "2025-09-10 10:00")
	sessions := []session.Session{
		newSession(base, session.StatusAvailable, withDuration(60), withType("career")),
		newSession(base, session.StatusBooked, withDuration(30), withType("intro")),
		newSession(base, session.StatusAvailable, withDuration(60), func(s *session.Session) { s.TimeZone = "Asia/Kolkata" }),
	}

	opts := FilterOptionsFor(sessions)
	assert.Equal(t, []int{30, 60}, opts.Durations)
	assert.Equal(t, []string{"career", "intro"}, opts.SessionTypes)
	assert.Equal(t, []string{"Asia/Kolkata", "UTC"}, opts.TimeZones)
}

func TestFiltersIsZero(t *testing.T) {
	no := false
	assert.True(t, Filters{}.IsZero())
	assert.False(t, Filters{AllowRescheduling: &no}.IsZero())
	assert.False(t, Filters{Duration: 15}.IsZero())
}
