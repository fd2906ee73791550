package devserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kanb1/clinic-ai-app-sub001/internal/validation"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

// pingHandler answers the unauthenticated liveness probe
func (s *Server) pingHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, types.Pong{Message: "pong"})
}

// meHandler returns the caller's profile
func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	user, err := s.store.User(claims.UserID)
	if err != nil {
		s.writeStoreError(w, err, "User not found")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, user)
}

// staffListHandler lists the caller's clinic staff with role
func (s *Server) staffListHandler(role types.UserRole) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := claimsFromContext(r.Context())
		clinic, err := s.store.ClinicByAdmin(claims.UserID)
		if err != nil {
			s.writeStoreError(w, err, "No clinic found")
			return
		}
		s.writeJSONResponse(w, http.StatusOK, s.store.Staff(clinic.ID, role))
	})
}

// deleteUserHandler removes a user with role from the caller's clinic
func (s *Server) deleteUserHandler(role types.UserRole, done string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := claimsFromContext(r.Context())
		id := mux.Vars(r)["id"]

		clinic, err := s.store.ClinicByAdmin(claims.UserID)
		if err != nil {
			s.writeStoreError(w, err, "No clinic found")
			return
		}
		if err := s.store.DeleteUser(clinic.ID, id, role); err != nil {
			s.writeStoreError(w, err, "User not found")
			return
		}

		s.logger.WithContext(r.Context()).WithField("user_id", id).WithField("role", role).Info("User deleted")
		s.writeJSONResponse(w, http.StatusOK, types.MessageResponse{Message: done})
	})
}

// testResultsHandler lists a patient's test results
func (s *Server) testResultsHandler(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["patientId"]
	s.writeJSONResponse(w, http.StatusOK, s.store.TestResults(patientID))
}

// journalHandler returns one journal
func (s *Server) journalHandler(w http.ResponseWriter, r *http.Request) {
	journal, err := s.store.Journal(mux.Vars(r)["journalId"])
	if err != nil {
		s.writeStoreError(w, err, "Journal not found")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, journal)
}

// patientJournalHandler returns a patient's journal
func (s *Server) patientJournalHandler(w http.ResponseWriter, r *http.Request) {
	journal, err := s.store.JournalByPatient(mux.Vars(r)["patientId"])
	if err != nil {
		s.writeStoreError(w, err, "Journal not found")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, journal)
}

// createPrescriptionHandler issues a prescription
func (s *Server) createPrescriptionHandler(w http.ResponseWriter, r *http.Request) {
	req, _ := validation.FromContext[types.Prescription](r.Context())

	prescription, err := s.store.AddPrescription(req)
	if err != nil {
		s.writeStoreError(w, err, "Patient not found")
		return
	}
	s.writeJSONResponse(w, http.StatusCreated, prescription)
}

// prescriptionsHandler lists a patient's prescriptions
func (s *Server) prescriptionsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, http.StatusOK, s.store.Prescriptions(mux.Vars(r)["patientId"]))
}

// timeSlotsHandler lists the calling doctor's slots
func (s *Server) timeSlotsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	s.writeJSONResponse(w, http.StatusOK, s.store.TimeSlots(claims.UserID))
}

// updateTimeSlotStatusHandler marks one of the calling doctor's slots free or busy
func (s *Server) updateTimeSlotStatusHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	req, _ := validation.FromContext[types.SlotStatusUpdate](r.Context())

	slot, err := s.store.SetTimeSlotStatus(claims.UserID, mux.Vars(r)["id"], req.Status)
	if err != nil {
		s.writeStoreError(w, err, "Time slot not found")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, slot)
}

// appointmentsHandler lists the calling patient's appointments
func (s *Server) appointmentsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	s.writeJSONResponse(w, http.StatusOK, s.store.Appointments(claims.UserID))
}

// createClinicHandler creates the calling admin's clinic
func (s *Server) createClinicHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	req, _ := validation.FromContext[types.CreateClinicRequest](r.Context())

	clinic, err := s.store.CreateClinic(claims.UserID, req)
	if err != nil {
		s.writeStoreError(w, err, "Clinic already exists")
		return
	}
	s.writeJSONResponse(w, http.StatusCreated, clinic)
}

// myClinicHandler returns the calling admin's clinic, 404 when there is none
func (s *Server) myClinicHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())

	clinic, err := s.store.ClinicByAdmin(claims.UserID)
	if err != nil {
		s.writeStoreError(w, err, "No clinic found")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, clinic)
}

// saveChatHandler stores an AI chat transcript in the patient's journal
func (s *Server) saveChatHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	req, _ := validation.FromContext[types.SaveChatRequest](r.Context())

	if _, err := s.store.SaveChat(claims.UserID, req); err != nil {
		s.writeStoreError(w, err, "Appointment not found")
		return
	}
	s.writeJSONResponse(w, http.StatusCreated, types.MessageResponse{Message: "Chat saved"})
}

// writeStoreError maps store errors onto statuses. message describes the
// expected failure of the calling handler.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, ErrNotFound):
		s.writeErrorResponse(w, http.StatusNotFound, message)
	case errors.Is(err, ErrConflict):
		s.writeErrorResponse(w, http.StatusConflict, message)
	default:
		s.logger.WithComponent("devserver").WithError(err).Error("Store operation failed")
		s.writeErrorResponse(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSONResponse writes a JSON response
func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithComponent("devserver").WithError(err).Error("Failed to encode JSON response")
	}
}

// writeErrorResponse writes a {message} error body
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, types.ErrorBody{Message: message})
}
