package devserver

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/config"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Auth:      config.AuthConfig{SecretKey: "test-secret", TokenTTL: 3600, Issuer: "clinic-devserver"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		LogLevel:  "panic",
	}
}

func createTestServer(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(cfg, NewSeededStore(), logger.Discard())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func doRequest(t *testing.T, s *Server, ts *httptest.Server, method, path, userID, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+PathPrefix+path, reader)
	require.NoError(t, err)
	if userID != "" {
		token, err := s.IssueToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestPing_Public(t *testing.T) {
	s, ts := createTestServer(t, testConfig())

	resp := doRequest(t, s, ts, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "pong", decode[types.Pong](t, resp).Message)
}

func TestAuth(t *testing.T) {
	s, ts := createTestServer(t, testConfig())

	t.Run("missing_token", func(t *testing.T) {
		resp := doRequest(t, s, ts, http.MethodGet, "/users/me", "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "missing authorization header", decode[types.ErrorBody](t, resp).Message)
	})

	t.Run("bad_token", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+PathPrefix+"/users/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me", func(t *testing.T) {
		resp := doRequest(t, s, ts, http.MethodGet, "/users/me", SeedDoctorID, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		user := decode[types.User](t, resp)
		assert.Equal(t, SeedDoctorID, user.ID)
		assert.Equal(t, types.RoleDoctor, user.Role)
	})

	t.Run("wrong_role", func(t *testing.T) {
		resp := doRequest(t, s, ts, http.MethodGet, "/admin/staff/doctors-list", SeedPatientID, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestStaff_ListAndDelete(t *testing.T) {
	s, ts := createTestServer(t, testConfig())

	resp := doRequest(t, s, ts, http.MethodGet, "/admin/staff/doctors-list", SeedAdminID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]types.User](t, resp), 2)

	resp = doRequest(t, s, ts, http.MethodDelete, "/admin/staff/doctors/"+SeedSecondDoctorID, SeedAdminID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Doctor deleted", decode[types.MessageResponse](t, resp).Message)

	resp = doRequest(t, s, ts, http.MethodGet, "/admin/staff/doctors-list", SeedAdminID, "")
	doctors := decode[[]types.User](t, resp)
	require.Len(t, doctors, 1)
	assert.Equal(t, SeedDoctorID, doctors[0].ID)

	// a secretary is not deleted through the doctor route
	resp = doRequest(t, s, ts, http.MethodDelete, "/admin/staff/doctors/"+SeedSecretaryID, SeedAdminID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, s, ts, http.MethodDelete, "/admin/staff/secretaries/"+SeedSecretaryID, SeedAdminID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, s, ts, http.MethodDelete, "/admin/"+SeedOtherPatientID, SeedAdminID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, err := s.store.User(SeedOtherPatientID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClinics(t *testing.T) {
	s, ts := createTestServer(t, testConfig())

	resp := doRequest(t, s, ts, http.MethodGet, "/clinics/my", SeedNewAdminID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No clinic found", decode[types.ErrorBody](t, resp).Message)

	resp = doRequest(t, s, ts, http.MethodPost, "/clinics", SeedNewAdminID, `{"name":"Vesterbro Klinik","address":"Istedgade 2"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[types.Clinic](t, resp)
	assert.Equal(t, SeedNewAdminID, created.AdminID)

	resp = doRequest(t, s, ts, http.MethodGet, "/clinics/my", SeedNewAdminID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[types.Clinic](t, resp).ID)

	resp = doRequest(t, s, ts, http.MethodPost, "/clinics", SeedNewAdminID, `{"name":"Igen","address":"Vej 3"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doRequest(t, s, ts, http.MethodPost, "/clinics", SeedAdminID, `{"name":"","address":"Vej 3"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTimeSlotStatusValidation(t *testing.T) {
	s, ts := createTestServer(t, testConfig())

	resp := doRequest(t, s, ts, http.MethodPatch, "/doctors/timeslots/"+SeedFreeSlotID+"/status", SeedDoctorID, `{"status":"optaget"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, types.SlotBusy, decode[types.TimeSlot](t, resp).Status)

	resp = doRequest(t, s, ts, http.MethodPatch, "/doctors/timeslots/"+SeedFreeSlotID+"/status", SeedDoctorID, `{"status":"closed"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[types.ErrorBody](t, resp)
	assert.Equal(t, "Invalid input", body.Message)
	assert.Equal(t, []string{"status must be one of: ledig, optaget"}, body.Errors)

	resp = doRequest(t, s, ts, http.MethodPatch, "/doctors/timeslots/missing/status", SeedDoctorID, `{"status":"ledig"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, s, ts, http.MethodGet, "/doctors/timeslots", SeedDoctorID, "")
	slots := decode[[]types.TimeSlot](t, resp)
	require.Len(t, slots, 2)
	assert.Equal(t, types.SlotBusy, slots[0].Status)
}

func TestClinicalRecords(t *testing.T) {
	s, ts := createTestServer(t, testConfig())

	resp := doRequest(t, s, ts, http.MethodGet, "/doctors/testresults/"+SeedPatientID, SeedDoctorID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]types.TestResult](t, resp), 1)

	resp = doRequest(t, s, ts, http.MethodGet, "/doctors/journals/"+SeedJournalID, SeedDoctorID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, SeedPatientID, decode[types.Journal](t, resp).PatientID)

	resp = doRequest(t, s, ts, http.MethodGet, "/doctors/journals/missing", SeedDoctorID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, s, ts, http.MethodPost, "/doctors/prescriptions", SeedDoctorID,
		`{"patient_id":"`+SeedPatientID+`","medication_name":"Ibuprofen","dosage":"400 mg","instructions":"3 gange dagligt"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[types.Prescription](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IssuedAt.IsZero())

	resp = doRequest(t, s, ts, http.MethodPost, "/doctors/prescriptions", SeedDoctorID, `{"medication_name":"Ibuprofen"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, s, ts, http.MethodGet, "/doctors/prescriptions/"+SeedPatientID, SeedDoctorID, "")
	assert.Len(t, decode[[]types.Prescription](t, resp), 1)
}

func TestSaveChat(t *testing.T) {
	s, ts := createTestServer(t, testConfig())

	body := `{"appointmentId":"` + SeedAppointmentID + `","messages":[{"role":"user","content":"Jeg har hovedpine"},{"role":"assistant","content":"Hvor længe?"}]}`
	resp := doRequest(t, s, ts, http.MethodPost, "/patients/ai/save-chat", SeedPatientID, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, s, ts, http.MethodGet, "/doctors/journals/patient/"+SeedPatientID, SeedDoctorID, "")
	journal := decode[types.Journal](t, resp)
	require.Len(t, journal.Entries, 2)
	entry := journal.Entries[1]
	assert.True(t, entry.CreatedByAI)
	assert.Equal(t, "user: Jeg har hovedpine\nassistant: Hvor længe?", entry.Notes)
	require.NotNil(t, entry.Doctor)
	assert.Equal(t, SeedDoctorID, entry.Doctor.ID)

	// another patient's appointment
	resp = doRequest(t, s, ts, http.MethodPost, "/patients/ai/save-chat", SeedOtherPatientID, body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPatientAppointments(t *testing.T) {
	s, ts := createTestServer(t, testConfig())

	resp := doRequest(t, s, ts, http.MethodGet, "/patients/appointments", SeedPatientID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	appts := decode[[]types.Appointment](t, resp)
	require.Len(t, appts, 1)
	assert.Equal(t, types.StatusConfirmed, appts[0].Status)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 2}
	s, ts := createTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		resp := doRequest(t, s, ts, http.MethodGet, "/users/me", SeedPatientID, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := doRequest(t, s, ts, http.MethodGet, "/users/me", SeedPatientID, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// other users keep their own budget
	resp = doRequest(t, s, ts, http.MethodGet, "/users/me", SeedDoctorID, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	s, ts := createTestServer(t, testConfig())
	resp := doRequest(t, s, ts, http.MethodGet, "/nowhere", SeedAdminID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
