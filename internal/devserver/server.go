package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kanb1/clinic-ai-app-sub001/internal/validation"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/config"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/logger"
	"github.com/kanb1/clinic-ai-app-sub001/pkg/types"
)

// PathPrefix is where the REST API is mounted
const PathPrefix = "/api"

// Server is an in-memory implementation of the clinic REST backend
type Server struct {
	router      *mux.Router
	server      *http.Server
	store       *Store
	tokens      *TokenValidator
	rateLimiter *RateLimiter
	validator   *validation.Validator
	logger      *logger.Logger
	startTime   time.Time
}

// NewServer creates a backend serving store
func NewServer(cfg *config.Config, store *Store, log *logger.Logger) *Server {
	secret := cfg.Auth.SecretKey
	if secret == "" {
		secret = uuid.NewString()
		log.WithComponent("devserver").Warn("No auth.secret_key configured, using a random signing key")
	}

	s := &Server{
		router:    mux.NewRouter(),
		store:     store,
		tokens:    NewTokenValidator(secret, cfg.Auth.Issuer, time.Duration(cfg.Auth.TokenTTL)*time.Second),
		validator: validation.New(),
		logger:    log,
		startTime: time.Now(),
	}

	if cfg.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, time.Minute)
	}

	s.setupRoutes()
	s.setupMiddleware()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	if s.rateLimiter != nil {
		s.rateLimiter.StartCleanup(time.Duration(cfg.RateLimit.CleanupInterval) * time.Second)
	}

	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// IssueToken signs a bearer token for the stored user id
func (s *Server) IssueToken(userID string) (string, error) {
	user, err := s.store.User(userID)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", userID, err)
	}
	return s.tokens.IssueToken(user)
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.WithComponent("devserver").WithField("addr", s.server.Addr).Info("Starting development backend")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	s.logger.WithComponent("devserver").Info("Stopping development backend")
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return s.server.Shutdown(ctx)
}

// setupRoutes sets up the routing
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix(PathPrefix).Subrouter()

	admin := s.requireRole(types.RoleAdmin)
	doctor := s.requireRole(types.RoleDoctor)
	patient := s.requireRole(types.RolePatient)
	anyone := s.requireRole(types.RolePatient, types.RoleDoctor, types.RoleSecretary, types.RoleAdmin)

	api.HandleFunc("/ping", s.pingHandler).Methods(http.MethodGet)
	api.Handle("/users/me", anyone(http.HandlerFunc(s.meHandler))).Methods(http.MethodGet)

	// Staff management
	api.Handle("/admin/staff/doctors-list", admin(s.staffListHandler(types.RoleDoctor))).Methods(http.MethodGet)
	api.Handle("/admin/staff/secretaries-list", admin(s.staffListHandler(types.RoleSecretary))).Methods(http.MethodGet)
	api.Handle("/admin/staff/doctors/{id}", admin(s.deleteUserHandler(types.RoleDoctor, "Doctor deleted"))).Methods(http.MethodDelete)
	api.Handle("/admin/staff/secretaries/{id}", admin(s.deleteUserHandler(types.RoleSecretary, "Secretary deleted"))).Methods(http.MethodDelete)
	api.Handle("/admin/{id}", admin(s.deleteUserHandler(types.RolePatient, "Patient deleted"))).Methods(http.MethodDelete)

	// Clinical records
	api.Handle("/doctors/testresults/{patientId}", doctor(http.HandlerFunc(s.testResultsHandler))).Methods(http.MethodGet)
	api.Handle("/doctors/journals/patient/{patientId}", doctor(http.HandlerFunc(s.patientJournalHandler))).Methods(http.MethodGet)
	api.Handle("/doctors/journals/{journalId}", doctor(http.HandlerFunc(s.journalHandler))).Methods(http.MethodGet)
	api.Handle("/doctors/prescriptions", doctor(validation.Body[types.Prescription](s.validator)(http.HandlerFunc(s.createPrescriptionHandler)))).Methods(http.MethodPost)
	api.Handle("/doctors/prescriptions/{patientId}", doctor(http.HandlerFunc(s.prescriptionsHandler))).Methods(http.MethodGet)

	// Scheduling
	api.Handle("/doctors/timeslots", doctor(http.HandlerFunc(s.timeSlotsHandler))).Methods(http.MethodGet)
	api.Handle("/doctors/timeslots/{id}/status", doctor(validation.Body[types.SlotStatusUpdate](s.validator)(http.HandlerFunc(s.updateTimeSlotStatusHandler)))).Methods(http.MethodPatch)
	api.Handle("/patients/appointments", patient(http.HandlerFunc(s.appointmentsHandler))).Methods(http.MethodGet)

	// Clinics
	api.Handle("/clinics", admin(validation.Body[types.CreateClinicRequest](s.validator)(http.HandlerFunc(s.createClinicHandler)))).Methods(http.MethodPost)
	api.Handle("/clinics/my", admin(http.HandlerFunc(s.myClinicHandler))).Methods(http.MethodGet)

	// AI assistant
	api.Handle("/patients/ai/save-chat", patient(validation.Body[types.SaveChatRequest](s.validator)(http.HandlerFunc(s.saveChatHandler)))).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeErrorResponse(w, http.StatusNotFound, "route not found")
	})
}

// setupMiddleware sets up middleware
func (s *Server) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.authMiddleware)
	s.router.Use(s.rateLimitMiddleware)
}
