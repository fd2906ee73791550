package hooks

import (
	"net/http"
	"net/url"

	"github.com/kanb1/clinic-ai-app-sub001/internal/querycache"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

// Cache key roots
const (
	KeyAdminDoctors        = "admin-doctors"
	KeyDoctors             = "doctors"
	KeyAdminSecretaries    = "admin-secretaries"
	KeyAdminPatients       = "admin-patients"
	KeyTestResults         = "test-results"
	KeyJournal             = "journal"
	KeyPatientJournals     = "patient-journals"
	KeyPrescriptions       = "prescriptions"
	KeyMyClinic            = "my-clinic"
	KeyMe                  = "me"
	KeyPing                = "ping"
	KeyDoctorTimeSlots     = "doctor-timeslots"
	KeyPatientAppointments = "patient-appointments"
)

const doctorsListPath = "/admin/staff/doctors-list"

// Staff

// AdminDoctors lists the clinic's doctors for the admin staff pages.
// It shares its endpoint with Doctors but not its cache entry.
func (h *Hooks) AdminDoctors() *Query[[]types.User] {
	return newQuery[[]types.User](h, querycache.NewKey(KeyAdminDoctors), doctorsListPath, true)
}

// Doctors lists the clinic's doctors for pickers outside the admin pages
func (h *Hooks) Doctors() *Query[[]types.User] {
	return newQuery[[]types.User](h, querycache.NewKey(KeyDoctors), doctorsListPath, true)
}

// AdminSecretaries lists the clinic's secretaries
func (h *Hooks) AdminSecretaries() *Query[[]types.User] {
	return newQuery[[]types.User](h, querycache.NewKey(KeyAdminSecretaries), "/admin/staff/secretaries-list", true)
}

// DeleteDoctor removes a doctor by ID
func (h *Hooks) DeleteDoctor() *Mutation[string, types.MessageResponse] {
	return &Mutation[string, types.MessageResponse]{
		h:           h,
		name:        "delete doctor",
		method:      http.MethodDelete,
		path:        func(id string) string { return "/admin/staff/doctors/" + url.PathEscape(id) },
		invalidates: func(string) []querycache.Key { return []querycache.Key{querycache.NewKey(KeyAdminDoctors)} },
	}
}

// DeleteSecretary removes a secretary by ID
func (h *Hooks) DeleteSecretary() *Mutation[string, types.MessageResponse] {
	return &Mutation[string, types.MessageResponse]{
		h:           h,
		name:        "delete secretary",
		method:      http.MethodDelete,
		path:        func(id string) string { return "/admin/staff/secretaries/" + url.PathEscape(id) },
		invalidates: func(string) []querycache.Key { return []querycache.Key{querycache.NewKey(KeyAdminSecretaries)} },
	}
}

// DeletePatient removes a patient by ID
func (h *Hooks) DeletePatient() *Mutation[string, types.MessageResponse] {
	return &Mutation[string, types.MessageResponse]{
		h:           h,
		name:        "delete patient",
		method:      http.MethodDelete,
		path:        func(id string) string { return "/admin/" + url.PathEscape(id) },
		invalidates: func(string) []querycache.Key { return []querycache.Key{querycache.NewKey(KeyAdminPatients)} },
	}
}

// Clinical records

// TestResults lists a patient's test results. Disabled without a patient.
func (h *Hooks) TestResults(patientID string) *Query[[]types.TestResult] {
	return newQuery[[]types.TestResult](h, querycache.NewKey(KeyTestResults, patientID),
		"/doctors/testresults/"+url.PathEscape(patientID), patientID != "")
}

// Journal loads one journal. Disabled without a journal ID.
func (h *Hooks) Journal(journalID string) *Query[*types.Journal] {
	return newQuery[*types.Journal](h, querycache.NewKey(KeyJournal, journalID),
		"/doctors/journals/"+url.PathEscape(journalID), journalID != "")
}

// PatientJournals loads a patient's journal. Disabled without a patient.
func (h *Hooks) PatientJournals(patientID string) *Query[*types.Journal] {
	return newQuery[*types.Journal](h, querycache.NewKey(KeyPatientJournals, patientID),
		"/doctors/journals/patient/"+url.PathEscape(patientID), patientID != "")
}

// Prescriptions lists a patient's prescriptions. Disabled without a patient.
func (h *Hooks) Prescriptions(patientID string) *Query[[]types.Prescription] {
	return newQuery[[]types.Prescription](h, querycache.NewKey(KeyPrescriptions, patientID),
		"/doctors/prescriptions/"+url.PathEscape(patientID), patientID != "")
}

// CreatePrescription issues a prescription and invalidates that patient's list
func (h *Hooks) CreatePrescription() *Mutation[types.Prescription, *types.Prescription] {
	return &Mutation[types.Prescription, *types.Prescription]{
		h:      h,
		name:   "create prescription",
		method: http.MethodPost,
		path:   func(types.Prescription) string { return "/doctors/prescriptions" },
		body:   func(p types.Prescription) any { return p },
		invalidates: func(p types.Prescription) []querycache.Key {
			return []querycache.Key{querycache.NewKey(KeyPrescriptions, p.PatientID)}
		},
	}
}

// SaveChat stores an AI chat transcript. Every patient journal is invalidated
// because the request names an appointment, not a patient.
func (h *Hooks) SaveChat() *Mutation[types.SaveChatRequest, types.MessageResponse] {
	return &Mutation[types.SaveChatRequest, types.MessageResponse]{
		h:           h,
		name:        "save chat",
		method:      http.MethodPost,
		path:        func(types.SaveChatRequest) string { return "/patients/ai/save-chat" },
		body:        func(req types.SaveChatRequest) any { return req },
		invalidates: func(types.SaveChatRequest) []querycache.Key { return []querycache.Key{querycache.NewKey(KeyPatientJournals)} },
	}
}

// Clinics

// MyClinic loads the admin's clinic. Not found is a valid answer meaning the
// admin has no clinic yet, so the query never retries.
func (h *Hooks) MyClinic() *Query[*types.Clinic] {
	return newQuery[*types.Clinic](h, querycache.NewKey(KeyMyClinic), "/clinics/my", true, querycache.WithRetry(0))
}

// CreateClinic creates the admin's clinic
func (h *Hooks) CreateClinic() *Mutation[types.CreateClinicRequest, *types.Clinic] {
	return &Mutation[types.CreateClinicRequest, *types.Clinic]{
		h:           h,
		name:        "create clinic",
		method:      http.MethodPost,
		path:        func(types.CreateClinicRequest) string { return "/clinics" },
		body:        func(req types.CreateClinicRequest) any { return req },
		invalidates: func(types.CreateClinicRequest) []querycache.Key { return []querycache.Key{querycache.NewKey(KeyMyClinic)} },
	}
}

// Profile

// Me loads the caller's profile
func (h *Hooks) Me() *Query[*types.User] {
	return newQuery[*types.User](h, querycache.NewKey(KeyMe), "/users/me", true)
}

// Ping probes the backend
func (h *Hooks) Ping() *Query[*types.Pong] {
	return newQuery[*types.Pong](h, querycache.NewKey(KeyPing), "/ping", true)
}

// Scheduling

// DoctorTimeSlots lists the calling doctor's time slots
func (h *Hooks) DoctorTimeSlots() *Query[[]types.TimeSlot] {
	return newQuery[[]types.TimeSlot](h, querycache.NewKey(KeyDoctorTimeSlots), "/doctors/timeslots", true)
}

// SlotStatusChange names a slot and its new status
type SlotStatusChange struct {
	SlotID string
	Status types.SlotStatus
}

// UpdateTimeSlotStatus marks a slot free or busy
func (h *Hooks) UpdateTimeSlotStatus() *Mutation[SlotStatusChange, *types.TimeSlot] {
	return &Mutation[SlotStatusChange, *types.TimeSlot]{
		h:      h,
		name:   "update time slot status",
		method: http.MethodPatch,
		path: func(c SlotStatusChange) string {
			return "/doctors/timeslots/" + url.PathEscape(c.SlotID) + "/status"
		},
		body:        func(c SlotStatusChange) any { return types.SlotStatusUpdate{Status: c.Status} },
		invalidates: func(SlotStatusChange) []querycache.Key { return []querycache.Key{querycache.NewKey(KeyDoctorTimeSlots)} },
	}
}

// PatientAppointments lists the calling patient's appointments
func (h *Hooks) PatientAppointments() *Query[[]types.Appointment] {
	return newQuery[[]types.Appointment](h, querycache.NewKey(KeyPatientAppointments), "/patients/appointments", true)
}
