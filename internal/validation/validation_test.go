package validation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

func TestCheck_SlotStatus(t *testing.T) {
	v := New()

	testCases := []struct {
		name     string
		status   types.SlotStatus
		expected []string
	}{
		{name: "busy", status: types.SlotBusy},
		{name: "free", status: types.SlotFree},
		{name: "unknown", status: "closed", expected: []string{"status must be one of: ledig, optaget"}},
		{name: "wrong_case", status: "Optaget", expected: []string{"status must be one of: ledig, optaget"}},
		{name: "missing", status: "", expected: []string{"status is required"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, v.Check(types.SlotStatusUpdate{Status: tc.status}))
		})
	}
}

func TestCheck_NestedAndLengthRules(t *testing.T) {
	v := New()

	errs := v.Check(types.SaveChatRequest{
		AppointmentID: "a1",
		Messages:      []types.ChatMessage{{Role: "system", Content: "hej"}},
	})
	assert.Equal(t, []string{"role must be one of: user, assistant"}, errs)

	errs = v.Check(types.SaveChatRequest{AppointmentID: "a1", Messages: []types.ChatMessage{}})
	assert.Equal(t, []string{"messages must contain at least 1 item(s)"}, errs)

	errs = v.Check(types.CreateClinicRequest{Name: "A", Address: "Vej 1"})
	assert.Equal(t, []string{"name must be at least 2 characters"}, errs)

	assert.Nil(t, v.Check(types.Prescription{PatientID: "p1", MedicationName: "Ibuprofen", Dosage: "400mg"}))
}

func TestCheck_MessagesHideInternals(t *testing.T) {
	v := New()
	errs := v.Check(types.Prescription{})
	require.NotEmpty(t, errs)
	for _, e := range errs {
		assert.NotContains(t, e, "Prescription.")
		assert.NotContains(t, e, "Key:")
	}
}

func newRouter(v *Validator, reached *bool) *mux.Router {
	router := mux.NewRouter()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		body, ok := FromContext[types.SlotStatusUpdate](r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	router.Handle("/doctors/timeslots/{id}/status", Body[types.SlotStatusUpdate](v)(handler)).Methods(http.MethodPatch)
	return router
}

func TestBody_ValidPassesThrough(t *testing.T) {
	reached := false
	router := newRouter(New(), &reached)

	req := httptest.NewRequest(http.MethodPatch, "/doctors/timeslots/s1/status", strings.NewReader(`{"status":"optaget"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)

	var echoed types.SlotStatusUpdate
	require.NoError(t, json.NewDecoder(w.Body).Decode(&echoed))
	assert.Equal(t, types.SlotBusy, echoed.Status)
}

func TestBody_RejectsInvalid(t *testing.T) {
	testCases := []struct {
		name         string
		body         string
		expectedErrs []string
	}{
		{name: "unknown_status", body: `{"status":"closed"}`, expectedErrs: []string{"status must be one of: ledig, optaget"}},
		{name: "empty_object", body: `{}`, expectedErrs: []string{"status is required"}},
		{name: "malformed_json", body: `{"status":`, expectedErrs: []string{"request body must be valid JSON"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reached := false
			router := newRouter(New(), &reached)

			req := httptest.NewRequest(http.MethodPatch, "/doctors/timeslots/s1/status", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, reached)

			var body types.ErrorBody
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, InvalidInputMessage, body.Message)
			assert.Equal(t, tc.expectedErrs, body.Errors)
		})
	}
}
