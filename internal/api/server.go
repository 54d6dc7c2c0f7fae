// Package api serves the notification HTTP surface: the feed, writes,
// search and the server-sent event stream.
package api

import (
	"context"
	"net/http"
	"time"

	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/notifications"
	"teamhub-notifications/internal/realtime"
	"teamhub-notifications/internal/search"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NotificationService is the part of notifications.Service the API calls.
type NotificationService interface {
	GetNotifications(ctx context.Context, q notifications.Query) (*notifications.Page, error)
	MarkAsRead(ctx context.Context, notificationID, userID string) (bool, error)
	CreateNotification(ctx context.Context, in notifications.NewNotification) (*notifications.CreateResult, error)
	CreateAdvancedNotification(ctx context.Context, in notifications.AdvancedNotification) (*notifications.CreateResult, error)
	ArchiveNotification(ctx context.Context, id string) error
	DeleteNotification(ctx context.Context, id string) error
}

type Searcher interface {
	Search(ctx context.Context, teamID, query string, limit int) (*search.Result, error)
}

type Subscriber interface {
	Watch(userID, role, teamID string, cb realtime.Callback) (*realtime.Channel, error)
	Release(ch *realtime.Channel) bool
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Config struct {
	ServiceName       string
	Version           string
	JWTSecret         string
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	StreamBuffer      int
}

// Server owns the router. Searcher and Subscriber may be nil when search or
// realtime is disabled.
type Server struct {
	config     Config
	service    NotificationService
	searcher   Searcher
	subscriber Subscriber
	checks     map[string]ReadinessCheck
	logger     logger.Logger
}

func NewServer(config Config, service NotificationService, searcher Searcher, subscriber Subscriber, log logger.Logger) *Server {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 25 * time.Second
	}
	if config.StreamBuffer <= 0 {
		config.StreamBuffer = 16
	}
	return &Server{
		config:     config,
		service:    service,
		searcher:   searcher,
		subscriber: subscriber,
		checks:     make(map[string]ReadinessCheck),
		logger:     log.WithFields(map[string]interface{}{"component": "http-api"}),
	}
}

// AddReadinessCheck registers a check run by /ready.
func (s *Server) AddReadinessCheck(name string, check ReadinessCheck) {
	s.checks[name] = check
}

// Routes builds the full handler, CORS included.
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	router.Use(s.recoverMiddleware, s.loggingMiddleware)

	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/ready", s.ready).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1/notifications").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("", s.getNotifications).Methods(http.MethodGet)
	api.HandleFunc("", s.createNotification).Methods(http.MethodPost)
	api.HandleFunc("/advanced", s.createAdvancedNotification).Methods(http.MethodPost)
	api.HandleFunc("/search", s.searchNotifications).Methods(http.MethodGet)
	api.HandleFunc("/stream", s.stream).Methods(http.MethodGet)
	api.HandleFunc("/{id}/read", s.markAsRead).Methods(http.MethodPut)
	api.HandleFunc("/{id}/archive", s.archiveNotification).Methods(http.MethodPost)
	api.HandleFunc("/{id}", s.deleteNotification).Methods(http.MethodDelete)

	return corsMiddleware(s.config.AllowedOrigins)(router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": s.config.ServiceName,
		"version": s.config.Version,
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"failed": failed})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not_ready", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
