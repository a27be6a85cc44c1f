// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/post-analyzer/internal/logging"
	"github.com/post-analyzer/internal/models"
	"github.com/post-analyzer/internal/service"
	"github.com/post-analyzer/internal/types"
	"github.com/post-analyzer/internal/validator"
)

// Service interfaces for dependency injection and testing

// TaskServiceInterface defines task orchestration operations
type TaskServiceInterface interface {
	CreateAnalysisTask(ctx context.Context, userID, postURL string) (string, error)
	GetTask(ctx context.Context, userID, taskID string) (*service.TaskView, error)
	TransitionSubTask(ctx context.Context, subTaskID string, status types.TaskStatus) (*service.TaskView, error)
}

// EntitlementServiceInterface defines feature resolution
type EntitlementServiceInterface interface {
	HasFeature(ctx context.Context, userID, feature string) (bool, error)
}

// LimitServiceInterface defines plan limit checks
type LimitServiceInterface interface {
	CanCreate(ctx context.Context, userID string, kind types.ResourceKind) (bool, string, error)
}

// InvitationServiceInterface defines invitation token operations
type InvitationServiceInterface interface {
	Generate(ctx context.Context, planID string, ttl time.Duration) (*models.InvitationToken, error)
	Inspect(ctx context.Context, token string) (*models.InvitationToken, error)
	ConsumeInvitationToken(ctx context.Context, token, userID string) (string, error)
}

// SignupServiceInterface defines account creation and login
type SignupServiceInterface interface {
	Register(ctx context.Context, email, password, inviteToken string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// ResourceServiceInterface defines plan-bounded resource creation
type ResourceServiceInterface interface {
	ConnectIntegration(ctx context.Context, userID string, req service.ConnectIntegrationRequest) (*models.Integration, error)
	RevokeIntegration(ctx context.Context, userID, provider string) error
	AddTrackedKeyword(ctx context.Context, userID, keyword string) (*models.TrackedResource, error)
	AddCompetitor(ctx context.Context, userID, handle string) (*models.TrackedResource, error)
}

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Services groups the dependencies of the API
type Services struct {
	Tasks        TaskServiceInterface
	Entitlements EntitlementServiceInterface
	Limits       LimitServiceInterface
	Invitations  InvitationServiceInterface
	Signup       SignupServiceInterface
	Resources    ResourceServiceInterface
	// Health is optional; nil reports healthy
	Health HealthChecker
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	services   Services
	auth       *Authenticator
	validator  *validator.Validator
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int
	Burst             int
	AdminRole         string
	WorkerRole        string
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, services Services, auth *Authenticator, v *validator.Validator) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		services:  services,
		auth:      auth,
		validator: v,
		config:    config,
	}

	s.setupRouter()

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// order matters: logging wraps everything so panics and 401s are logged
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(CompressionMiddleware)

	s.setupRoutes(RateLimitMiddleware(rateLimiter))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes. Anonymous routes are registered
// first so the authenticated /api subrouter never sees them.
func (s *Server) setupRoutes(rateLimit func(http.Handler) http.Handler) {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	// Anonymous endpoints, limited per client IP
	s.router.Handle("/api/signup", rateLimit(http.HandlerFunc(s.handleSignup))).Methods(http.MethodPost)
	s.router.Handle("/api/login", rateLimit(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.auth.Middleware)
	api.Use(rateLimit)

	// Task endpoints
	api.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.handleGetTask).Methods(http.MethodGet)

	// Entitlement endpoints
	api.HandleFunc("/features/{name}", s.handleGetFeature).Methods(http.MethodGet)
	api.HandleFunc("/limits/{kind}", s.handleGetLimit).Methods(http.MethodGet)
	api.HandleFunc("/invitations/consume", s.handleConsumeInvitation).Methods(http.MethodPost)

	// Resource endpoints
	api.HandleFunc("/integrations", s.handleConnectIntegration).Methods(http.MethodPost)
	api.HandleFunc("/integrations/{provider}", s.handleRevokeIntegration).Methods(http.MethodDelete)
	api.HandleFunc("/keywords", s.handleAddKeyword).Methods(http.MethodPost)
	api.HandleFunc("/competitors", s.handleAddCompetitor).Methods(http.MethodPost)

	// Admin endpoints
	admin := s.router.PathPrefix("/admin").Subrouter()
	admin.Use(s.auth.Middleware)
	admin.Use(RequireRole(s.config.AdminRole))
	admin.HandleFunc("/invitations", s.handleGenerateInvitation).Methods(http.MethodPost)
	admin.HandleFunc("/invitations/{token}", s.handleInspectInvitation).Methods(http.MethodGet)

	// Worker callbacks (no rate limiting; workers report in bursts)
	internal := s.router.PathPrefix("/internal").Subrouter()
	internal.Use(s.auth.Middleware)
	internal.Use(RequireRole(s.config.WorkerRole, s.config.AdminRole))
	internal.HandleFunc("/subtasks/{id}/status", s.handleSubTaskStatus).Methods(http.MethodPost)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.services.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.services.Health.Ping(ctx); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Health check failed")
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "post-analyzer",
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "post-analyzer",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
