package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gymbody/internal/analytics"
	"gymbody/internal/assistant"
	"gymbody/internal/auth"
	"gymbody/internal/booking"
	"gymbody/internal/catalog"
	"gymbody/internal/config"
	"gymbody/internal/incidents"
	"gymbody/internal/members"
	"gymbody/internal/metrics"
	"gymbody/internal/models"
	"gymbody/internal/trainers"
	"gymbody/internal/wellness"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Services are the application services the transport layer calls into.
type Services struct {
	Auth      *auth.Service
	Catalog   *catalog.Service
	Booking   *booking.Service
	Members   *members.Service
	Wellness  *wellness.Service
	Assistant *assistant.Service
	Incidents *incidents.Service
	Trainers  *trainers.Service
	Analytics *analytics.Service
}

// HTTPServer exposes the JSON API used by the web and mobile clients.
type HTTPServer struct {
	cfg     config.APIConfig
	svc     Services
	limiter *rateLimiter
	server  *http.Server
	logger  zerolog.Logger
	now     func() time.Time
}

type authedHandler func(w http.ResponseWriter, r *http.Request, user models.User)

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		limiter: newRateLimiter(cfg.RateLimit),
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	if logger != nil {
		srv.logger = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("POST /api/v1/login", srv.handleLogin)
	mux.Handle("POST /api/v1/logout", srv.authed(srv.handleLogout))
	mux.Handle("GET /api/v1/me", srv.authed(srv.handleMe))

	mux.Handle("GET /api/v1/schedule", srv.authed(srv.handleSchedule))
	mux.Handle("GET /api/v1/sessions/{id}/availability", srv.authed(srv.handleAvailability))
	mux.Handle("POST /api/v1/sessions/{id}/book", srv.authed(srv.handleBook))
	mux.Handle("POST /api/v1/sessions/{id}/cancel", srv.authed(srv.handleCancel))
	mux.Handle("POST /api/v1/sessions/{id}/toggle", srv.authed(srv.handleToggle))
	mux.Handle("POST /api/v1/sessions/{id}/assign", srv.authed(srv.handleAssign))
	mux.Handle("GET /api/v1/bookings", srv.authed(srv.handleMySessions))
	mux.Handle("GET /api/v1/bookings/pending", srv.authed(srv.handlePending))
	mux.Handle("POST /api/v1/bookings/confirm", srv.authed(srv.handleConfirm))

	mux.Handle("GET /api/v1/members", srv.authed(srv.handleMembers))
	mux.Handle("POST /api/v1/members/{id}/checkin", srv.authed(srv.handleCheckIn))
	mux.Handle("GET /api/v1/payments", srv.authed(srv.handlePayments))
	mux.Handle("POST /api/v1/payments/{id}/confirm", srv.authed(srv.handleConfirmCash))
	mux.Handle("POST /api/v1/payments/{id}/remind", srv.authed(srv.handleRemind))

	mux.Handle("GET /api/v1/preferences", srv.authed(srv.handlePreferences))
	mux.Handle("PUT /api/v1/preferences", srv.authed(srv.handleSetPreference))
	mux.Handle("GET /api/v1/nutrition/meals", srv.authed(srv.handleMeals))
	mux.Handle("POST /api/v1/nutrition/meals", srv.authed(srv.handleLogMeal))
	mux.Handle("POST /api/v1/nutrition/idea", srv.authed(srv.handleFoodIdea))
	mux.Handle("GET /api/v1/progress", srv.authed(srv.handleProgress))

	mux.Handle("GET /api/v1/chat/{mode}", srv.authed(srv.handleChatHistory))
	mux.Handle("POST /api/v1/chat/{mode}", srv.authed(srv.handleChat))
	mux.Handle("DELETE /api/v1/chat/{mode}", srv.authed(srv.handleChatReset))

	mux.Handle("GET /api/v1/incidents", srv.authed(srv.handleIncidents))
	mux.Handle("POST /api/v1/incidents", srv.authed(srv.handleLogIncident))
	mux.Handle("GET /api/v1/incidents/{id}", srv.authed(srv.handleIncident))
	mux.Handle("POST /api/v1/incidents/{id}/notes", srv.authed(srv.handleIncidentNote))
	mux.Handle("POST /api/v1/incidents/{id}/resolve", srv.authed(srv.handleResolveIncident))

	mux.Handle("GET /api/v1/trainers", srv.authed(srv.handleTrainers))
	mux.Handle("PUT /api/v1/trainers/status", srv.authed(srv.handleTrainerStatus))
	mux.Handle("POST /api/v1/sessions/{id}/substitute", srv.authed(srv.handleSubstitute))

	mux.Handle("GET /api/v1/analytics", srv.authed(srv.handleAnalytics))

	mux.Handle("GET /api/v1/export", srv.authed(srv.handleExport))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler returns the root handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// authed resolves the bearer token and applies the per-user rate limit.
func (s *HTTPServer) authed(h authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.svc.Auth.Authenticate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if !s.limiter.Allow(user.ID) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		h(w, r, user)
	})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDMetadataKey))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDMetadataKey, requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		dur := time.Since(start)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint, strconv.Itoa(recorder.status))

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", dur).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeServiceError maps err to a status. Internal errors are logged and hidden.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, err.Error())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
