package devserver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a record already exists
	ErrConflict = errors.New("already exists")
)

// Store is the in-memory data set behind the development backend
type Store struct {
	mu            sync.RWMutex
	users         map[string]types.User
	clinics       map[string]types.Clinic
	journals      map[string]*types.Journal
	testResults   map[string][]types.TestResult
	prescriptions map[string][]types.Prescription
	timeSlots     map[string]types.TimeSlot
	appointments  map[string]types.Appointment
	now           func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:         make(map[string]types.User),
		clinics:       make(map[string]types.Clinic),
		journals:      make(map[string]*types.Journal),
		testResults:   make(map[string][]types.TestResult),
		prescriptions: make(map[string][]types.Prescription),
		timeSlots:     make(map[string]types.TimeSlot),
		appointments:  make(map[string]types.Appointment),
		now:           time.Now,
	}
}

// AddUser inserts or replaces a user
func (s *Store) AddUser(u types.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// User returns the user with id
func (s *Store) User(id string) (types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return u, nil
}

// Users returns every user, ordered by ID
func (s *Store) Users() []types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]types.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// Staff returns the users of clinicID holding role, ordered by name
func (s *Store) Staff(clinicID string, role types.UserRole) []types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	staff := make([]types.User, 0)
	for _, u := range s.users {
		if u.Role == role && u.ClinicID == clinicID {
			staff = append(staff, u)
		}
	}
	sort.Slice(staff, func(i, j int) bool { return staff[i].Name < staff[j].Name })
	return staff
}

// DeleteUser removes the user id of clinicID if it holds role
func (s *Store) DeleteUser(clinicID, id string, role types.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Role != role || u.ClinicID != clinicID {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// ClinicByAdmin returns the clinic owned by adminID
func (s *Store) ClinicByAdmin(adminID string) (types.Clinic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clinics {
		if c.AdminID == adminID {
			return c, nil
		}
	}
	return types.Clinic{}, ErrNotFound
}

// CreateClinic creates the clinic of adminID. An admin owns at most one clinic.
func (s *Store) CreateClinic(adminID string, req types.CreateClinicRequest) (types.Clinic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.clinics {
		if c.AdminID == adminID {
			return types.Clinic{}, ErrConflict
		}
	}

	clinic := types.Clinic{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Address: req.Address,
		AdminID: adminID,
	}
	s.clinics[clinic.ID] = clinic

	if admin, ok := s.users[adminID]; ok {
		admin.ClinicID = clinic.ID
		s.users[adminID] = admin
	}
	return clinic, nil
}

// AddClinic inserts a clinic as-is
func (s *Store) AddClinic(c types.Clinic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clinics[c.ID] = c
}

// AddTestResult appends a test result for its patient
func (s *Store) AddTestResult(r types.TestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testResults[r.PatientID] = append(s.testResults[r.PatientID], r)
}

// TestResults returns the results of patientID
func (s *Store) TestResults(patientID string) []types.TestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.TestResult{}, s.testResults[patientID]...)
}

// AddJournal inserts a journal
func (s *Store) AddJournal(j types.Journal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journals[j.ID] = &j
}

// Journal returns the journal with id
func (s *Store) Journal(id string) (types.Journal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.journals[id]
	if !ok {
		return types.Journal{}, ErrNotFound
	}
	return copyJournal(j), nil
}

// JournalByPatient returns the journal of patientID
func (s *Store) JournalByPatient(patientID string) (types.Journal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if j := s.journalByPatientLocked(patientID); j != nil {
		return copyJournal(j), nil
	}
	return types.Journal{}, ErrNotFound
}

func (s *Store) journalByPatientLocked(patientID string) *types.Journal {
	for _, j := range s.journals {
		if j.PatientID == patientID {
			return j
		}
	}
	return nil
}

func copyJournal(j *types.Journal) types.Journal {
	c := *j
	c.Entries = append([]types.JournalEntry{}, j.Entries...)
	return c
}

// AddPrescription stores p, assigning its ID and issue time
func (s *Store) AddPrescription(p types.Prescription) (types.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patient, ok := s.users[p.PatientID]
	if !ok || patient.Role != types.RolePatient {
		return types.Prescription{}, ErrNotFound
	}

	p.ID = uuid.NewString()
	p.IssuedAt = s.now().UTC()
	s.prescriptions[p.PatientID] = append(s.prescriptions[p.PatientID], p)
	return p, nil
}

// Prescriptions returns the prescriptions of patientID
func (s *Store) Prescriptions(patientID string) []types.Prescription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]types.Prescription{}, s.prescriptions[patientID]...)
}

// AddAppointment inserts an appointment
func (s *Store) AddAppointment(a types.Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[a.ID] = a
}

// Appointments returns the appointments of patientID ordered by date
func (s *Store) Appointments(patientID string) []types.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appts := make([]types.Appointment, 0)
	for _, a := range s.appointments {
		if a.PatientID == patientID {
			appts = append(appts, a)
		}
	}
	sort.Slice(appts, func(i, j int) bool { return appts[i].Date.Before(appts[j].Date) })
	return appts
}

// SaveChat records an AI chat transcript as a journal entry of the patient
// who owns the appointment.
func (s *Store) SaveChat(patientID string, req types.SaveChatRequest) (types.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[req.AppointmentID]
	if !ok || appt.PatientID != patientID {
		return types.JournalEntry{}, ErrNotFound
	}

	journal := s.journalByPatientLocked(patientID)
	if journal == nil {
		journal = &types.Journal{ID: uuid.NewString(), PatientID: patientID}
		s.journals[journal.ID] = journal
	}

	now := s.now().UTC()
	entry := types.JournalEntry{
		ID:          uuid.NewString(),
		JournalID:   journal.ID,
		Notes:       transcript(req.Messages),
		CreatedByAI: true,
		CreatedAt:   now,
		UpdatedAt:   now,
		Appointment: &types.AppointmentInfo{ID: appt.ID, Date: appt.Date, StartTime: appt.StartTime},
	}
	if doctor, ok := s.users[appt.DoctorID]; ok {
		entry.Doctor = &types.DoctorInfo{ID: doctor.ID, Name: doctor.Name}
	}
	journal.Entries = append(journal.Entries, entry)
	return entry, nil
}

func transcript(messages []types.ChatMessage) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", m.Role, m.Content)
	}
	return b.String()
}

// AddTimeSlot inserts a time slot
func (s *Store) AddTimeSlot(ts types.TimeSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeSlots[ts.ID] = ts
}

// TimeSlots returns the slots of doctorID ordered by date and start time
func (s *Store) TimeSlots(doctorID string) []types.TimeSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make([]types.TimeSlot, 0)
	for _, ts := range s.timeSlots {
		if ts.DoctorID == doctorID {
			slots = append(slots, ts)
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].StartTime < slots[j].StartTime
	})
	return slots
}

// SetTimeSlotStatus changes the status of one of doctorID's slots
func (s *Store) SetTimeSlotStatus(doctorID, slotID string, status types.SlotStatus) (types.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.timeSlots[slotID]
	if !ok || ts.DoctorID != doctorID {
		return types.TimeSlot{}, ErrNotFound
	}
	ts.Status = status
	s.timeSlots[slotID] = ts
	return ts, nil
}
