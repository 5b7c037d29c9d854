package telemedicine

import (
	"time"

	"github.com/healthhub/healthhub/internal/platform/sandbox"
)

// BookingWindowDays is how far ahead slots are offered.
const BookingWindowDays = 14

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

// AvailableSlot is a bookable start time with a doctor.
type AvailableSlot struct {
	DoctorID string    `json:"doctor_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

type BookingRequest struct {
	DoctorID string    `json:"doctor_id" validate:"required"`
	Start    time.Time `json:"start" validate:"required"`
	Reason   string    `json:"reason" validate:"max=500"`
	// PatientName is used in the confirmation message.
	PatientName string `json:"patient_name" validate:"max=100"`
}

type Appointment struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	DoctorID     string     `json:"doctor_id"`
	DoctorName   string     `json:"doctor_name"`
	Specialty    string     `json:"specialty"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	Reason       string     `json:"reason,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

// booking is the cross-user record that keeps a slot from being taken twice.
type booking struct {
	AppointmentID string    `json:"appointment_id"`
	UserID        string    `json:"user_id"`
	DoctorID      string    `json:"doctor_id"`
	Start         time.Time `json:"start"`
	Active        bool      `json:"active"`
}

type DoctorView struct {
	sandbox.Doctor
	NextSlot *time.Time `json:"next_slot,omitempty"`
}
