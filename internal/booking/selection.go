package booking

type State string

const (
	StateIdle             State = "idle"
	StateDateSelected     State = "date_selected"
	StateTimeSlotSelected State = "time_slot_selected"
	StateBooking          State = "booking"
	StateBookingSucceeded State = "booking_succeeded"
	StateBookingFailed    State = "booking_failed"
)

// Terminal reports whether the state ends a booking attempt.
func (s State) Terminal() bool {
	return s == StateBookingSucceeded || s == StateBookingFailed
}

// Selection tracks the user's progress from picking a day to a booking outcome.
// The zero value is Idle.
type Selection struct {
	state State
	date  string
	slot  *TimeSlot
}

func (s *Selection) State() State {
	if s.state == "" {
		return StateIdle
	}
	return s.state
}

// Date returns the selected day key.
func (s *Selection) Date() (string, bool) {
	return s.date, s.date != ""
}

// Slot returns the selected time slot.
func (s *Selection) Slot() (TimeSlot, bool) {
	if s.slot == nil {
		return TimeSlot{}, false
	}
	return *s.slot, true
}

// SelectDate chooses a day and discards any time-slot choice. Allowed from every
// state except Booking.
func (s *Selection) SelectDate(date string) error {
	if s.State() == StateBooking {
		return ErrBookingInProgress
	}
	if date == "" {
		return ErrUnknownDate
	}
	s.state = StateDateSelected
	s.date = date
	s.slot = nil
	return nil
}

// SelectTimeSlot chooses a slot of the selected day. Picking an unavailable slot
// is ignored and reports false. Choosing another slot while one is already
// selected is treated as going back to DateSelected first.
func (s *Selection) SelectTimeSlot(slot TimeSlot) (bool, error) {
	switch s.State() {
	case StateBooking:
		return false, ErrBookingInProgress
	case StateDateSelected:
	case StateTimeSlotSelected:
		// Reselecting goes TimeSlotSelected -> DateSelected -> TimeSlotSelected.
		// An unavailable slot keeps the current one.
	default:
		return false, ErrNoDateSelected
	}

	if !slot.Available {
		return false, nil
	}

	s.state = StateTimeSlotSelected
	s.slot = &slot
	return true, nil
}

// BeginBooking locks the selection for a booking attempt.
func (s *Selection) BeginBooking() (TimeSlot, error) {
	switch s.State() {
	case StateBooking:
		return TimeSlot{}, ErrBookingInProgress
	case StateTimeSlotSelected:
		s.state = StateBooking
		return *s.slot, nil
	default:
		return TimeSlot{}, ErrNoSlotSelected
	}
}

// Finish records the outcome of the attempt in progress and clears the choice.
// It is a no-op outside Booking.
func (s *Selection) Finish(succeeded bool) {
	if s.State() != StateBooking {
		return
	}
	if succeeded {
		s.state = StateBookingSucceeded
	} else {
		s.state = StateBookingFailed
	}
	s.date = ""
	s.slot = nil
}

// Reset returns to Idle unless a booking is in flight.
func (s *Selection) Reset() error {
	if s.State() == StateBooking {
		return ErrBookingInProgress
	}
	*s = Selection{}
	return nil
}
