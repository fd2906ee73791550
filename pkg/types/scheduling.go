package types

import "time"

// AppointmentStatus represents appointment status values
type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
	StatusWaiting   AppointmentStatus = "waiting"
)

// Appointment represents a booked appointment
type Appointment struct {
	ID        string            `json:"_id"`
	PatientID string            `json:"patient_id"`
	DoctorID  string            `json:"doctor_id"`
	Date      time.Time         `json:"date"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Status    AppointmentStatus `json:"status"`
	Note      string            `json:"secretary_note,omitempty"`
}

// SlotStatus is the availability of a doctor's time slot
type SlotStatus string

const (
	SlotFree SlotStatus = "ledig"
	SlotBusy SlotStatus = "optaget"
)

// TimeSlot represents a doctor's bookable slot
type TimeSlot struct {
	ID        string     `json:"_id"`
	DoctorID  string     `json:"doctor_id"`
	Date      time.Time  `json:"date"`
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
	Status    SlotStatus `json:"status"`
}

// SlotStatusUpdate is the body of PATCH /doctors/timeslots/{id}/status
type SlotStatusUpdate struct {
	Status SlotStatus `json:"status" validate:"required,slotstatus"`
}

// Valid reports whether s is a known slot status
func (s SlotStatus) Valid() bool {
	return s == SlotFree || s == SlotBusy
}
