package model

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Shift is the named half-day window for queue-token bookings.
// The empty string means the appointment was booked against an exact
// time slot instead of a shift.
type Shift string

const (
	ShiftNone    Shift = ""
	ShiftMorning Shift = "morning"
	ShiftEvening Shift = "evening"
)

func (s Shift) Valid() bool {
	return s == ShiftMorning || s == ShiftEvening
}

// Mode distinguishes the two booking paths. Slot-mode appointments get
// overlap checking on a fixed 30-minute grid; shift-mode appointments
// get a sequential queue token per (day, shift) instead.
type Mode int

const (
	ModeSlot Mode = iota
	ModeShift
)

type Appointment struct {
	ID            string
	PatientName   string
	PatientEmail  string
	PatientPhone  string
	ServiceID     string
	AppointmentAt time.Time
	EndTime       time.Time
	Status        Status
	Shift         Shift
	TokenNumber   *int
	Notes         string
	CancelledAt   *time.Time
	CancelReason  string
	CreatedAt     time.Time
}

func (a *Appointment) Mode() Mode {
	if a.Shift == ShiftNone {
		return ModeSlot
	}
	return ModeShift
}

type Service struct {
	ID           string
	Name         string
	DurationMins int
	Price        string
	Description  string
	Active       bool
	CreatedAt    time.Time
}

func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMins) * time.Minute
}
