package types

import "time"

// JournalEntry is a single note in a patient's journal
type JournalEntry struct {
	ID          string           `json:"_id"`
	JournalID   string           `json:"journal_id"`
	Notes       string           `json:"notes"`
	CreatedByAI bool             `json:"created_by_ai"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	Appointment *AppointmentInfo `json:"appointment,omitempty"`
	Doctor      *DoctorInfo      `json:"doctor,omitempty"`
}

// AppointmentInfo is the appointment summary embedded in a journal entry
type AppointmentInfo struct {
	ID        string    `json:"_id"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
}

// DoctorInfo is the doctor summary embedded in a journal entry
type DoctorInfo struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Journal holds all entries for one patient
type Journal struct {
	ID        string         `json:"_id"`
	PatientID string         `json:"patient_id"`
	Entries   []JournalEntry `json:"entries"`
}

// Prescription is a medication issued to a patient
type Prescription struct {
	ID             string    `json:"_id,omitempty"`
	PatientID      string    `json:"patient_id" validate:"required"`
	MedicationName string    `json:"medication_name" validate:"required,max=120"`
	Dosage         string    `json:"dosage" validate:"required,max=120"`
	Instructions   string    `json:"instructions" validate:"max=1000"`
	IssuedAt       time.Time `json:"issued_date,omitempty"`
}

// TestResult is a lab result attached to a patient
type TestResult struct {
	ID        string    `json:"_id"`
	PatientID string    `json:"patient_id"`
	TestName  string    `json:"test_name"`
	Result    string    `json:"result"`
	Date      time.Time `json:"date"`
}

// ChatMessage is one turn of an AI chat transcript
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

// SaveChatRequest is the body of POST /patients/ai/save-chat
type SaveChatRequest struct {
	AppointmentID string        `json:"appointmentId" validate:"required"`
	Messages      []ChatMessage `json:"messages" validate:"required,min=1,dive"`
}
