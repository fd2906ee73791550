package devserver

import (
	"time"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

// IDs of the seeded records
const (
	SeedClinicID       = "clinic-1"
	SeedAdminID        = "admin-1"
	SeedNewAdminID     = "admin-2"
	SeedDoctorID       = "doctor-1"
	SeedSecondDoctorID = "doctor-2"
	SeedSecretaryID    = "secretary-1"
	SeedPatientID      = "patient-1"
	SeedOtherPatientID = "patient-2"
	SeedJournalID      = "journal-1"
	SeedAppointmentID  = "appointment-1"
	SeedFreeSlotID     = "slot-1"
	SeedBusySlotID     = "slot-2"
)

// NewSeededStore returns a store holding one clinic with staff, patients and
// their records. SeedNewAdminID is an admin without a clinic.
func NewSeededStore() *Store {
	s := NewStore()
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	s.AddClinic(types.Clinic{ID: SeedClinicID, Name: "Nørrebro Lægehus", Address: "Nørrebrogade 1, 2200 København N", AdminID: SeedAdminID})

	for _, u := range []types.User{
		{ID: SeedAdminID, Name: "Anne Admin", Email: "admin@clinic.dk", Role: types.RoleAdmin, ClinicID: SeedClinicID},
		{ID: SeedNewAdminID, Name: "Niels Ny", Email: "ny@clinic.dk", Role: types.RoleAdmin},
		{ID: SeedDoctorID, Name: "Dorte Læge", Email: "dorte@clinic.dk", Role: types.RoleDoctor, ClinicID: SeedClinicID},
		{ID: SeedSecondDoctorID, Name: "Bo Læge", Email: "bo@clinic.dk", Role: types.RoleDoctor, ClinicID: SeedClinicID},
		{ID: SeedSecretaryID, Name: "Sofie Sekretær", Email: "sofie@clinic.dk", Role: types.RoleSecretary, ClinicID: SeedClinicID},
		{ID: SeedPatientID, Name: "Peter Patient", Email: "peter@example.dk", Role: types.RolePatient, ClinicID: SeedClinicID},
		{ID: SeedOtherPatientID, Name: "Pia Patient", Email: "pia@example.dk", Role: types.RolePatient, ClinicID: SeedClinicID},
	} {
		s.AddUser(u)
	}

	s.AddAppointment(types.Appointment{
		ID:        SeedAppointmentID,
		PatientID: SeedPatientID,
		DoctorID:  SeedDoctorID,
		Date:      day,
		StartTime: "09:00",
		EndTime:   "09:15",
		Status:    types.StatusConfirmed,
	})

	s.AddJournal(types.Journal{
		ID:        SeedJournalID,
		PatientID: SeedPatientID,
		Entries: []types.JournalEntry{{
			ID:          "entry-1",
			JournalID:   SeedJournalID,
			Notes:       "Kontrol af blodtryk. Ingen bemærkninger.",
			CreatedAt:   day.Add(9 * time.Hour),
			UpdatedAt:   day.Add(9 * time.Hour),
			Appointment: &types.AppointmentInfo{ID: SeedAppointmentID, Date: day, StartTime: "09:00"},
			Doctor:      &types.DoctorInfo{ID: SeedDoctorID, Name: "Dorte Læge"},
		}},
	})

	s.AddTestResult(types.TestResult{ID: "result-1", PatientID: SeedPatientID, TestName: "Hæmoglobin", Result: "8.9 mmol/L", Date: day})

	s.AddTimeSlot(types.TimeSlot{ID: SeedFreeSlotID, DoctorID: SeedDoctorID, Date: day.AddDate(0, 0, 1), StartTime: "10:00", EndTime: "10:15", Status: types.SlotFree})
	s.AddTimeSlot(types.TimeSlot{ID: SeedBusySlotID, DoctorID: SeedDoctorID, Date: day.AddDate(0, 0, 1), StartTime: "10:15", EndTime: "10:30", Status: types.SlotBusy})

	return s
}
