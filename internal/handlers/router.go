package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/xelth-com/eckdesk/internal/ai"
	"github.com/xelth-com/eckdesk/internal/buildinfo"
	"github.com/xelth-com/eckdesk/internal/config"
	"github.com/xelth-com/eckdesk/internal/middleware"
	"github.com/xelth-com/eckdesk/internal/reporting"
	"github.com/xelth-com/eckdesk/internal/services/requests"
	"github.com/xelth-com/eckdesk/internal/storage"
	"github.com/xelth-com/eckdesk/internal/websocket"
)

// Pinger reports database reachability for the health check
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the HTTP surface is built on
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Pinger    Pinger
	Requests  *requests.Service
	Reports   *reporting.Aggregator
	Feed      reporting.Feed
	Hub       *websocket.Hub
	Assistant *ai.Assistant
}

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	cfg       *config.Config
	db        *gorm.DB
	pinger    Pinger
	requests  *requests.Service
	reports   *reporting.Aggregator
	feed      reporting.Feed
	hub       *websocket.Hub
	assistant *ai.Assistant
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(d Deps) *Router {
	r := &Router{
		Router:    mux.NewRouter(),
		cfg:       d.Config,
		db:        d.DB,
		pinger:    d.Pinger,
		requests:  d.Requests,
		reports:   d.Reports,
		feed:      d.Feed,
		hub:       d.Hub,
		assistant: d.Assistant,
	}
	r.Use(middleware.MetricsMiddleware())

	auth := middleware.AuthMiddleware(d.Config.JWTSecret)
	admin := func(h http.HandlerFunc) http.Handler { return middleware.RequireAdmin(h) }

	// Public endpoints
	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/api/status", r.getStatus).Methods("GET")
	r.HandleFunc("/api/options", r.getOptions).Methods("GET")

	// Auth routes
	authRoutes := r.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/login", r.login).Methods("POST")
	authRoutes.HandleFunc("/register", r.register).Methods("POST")
	authRoutes.HandleFunc("/refresh", r.refresh).Methods("POST")
	authRoutes.HandleFunc("/logout", r.logout).Methods("POST")

	// Protected API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth)
	api.HandleFunc("/me", r.me).Methods("GET")

	api.HandleFunc("/requests", r.listRequests).Methods("GET")
	api.HandleFunc("/requests", r.createRequest).Methods("POST")
	api.Handle("/requests/labels.pdf", admin(r.requestLabels)).Methods("GET")
	api.HandleFunc("/requests/{id}", r.getRequest).Methods("GET")
	api.HandleFunc("/requests/{id}", r.updateRequest).Methods("PUT")
	api.HandleFunc("/requests/{id}", r.deleteRequest).Methods("DELETE")
	api.HandleFunc("/requests/{id}/slip.pdf", r.requestSlip).Methods("GET")
	api.HandleFunc("/requests/{id}/events", r.requestEvents).Methods("GET")
	api.Handle("/requests/{id}/attachments", admin(r.addAttachment)).Methods("POST")
	api.Handle("/requests/{id}/attachments/{attachmentId}", admin(r.removeAttachment)).Methods("DELETE")

	api.HandleFunc("/reports", r.getReport).Methods("GET")
	api.Handle("/reports/export.csv", admin(r.exportReportCSV)).Methods("GET")
	api.Handle("/reports/export.pdf", admin(r.exportReportPDF)).Methods("GET")

	api.HandleFunc("/chat", r.chatTranscript).Methods("GET")
	api.HandleFunc("/chat", r.chat).Methods("POST")

	// Live report sessions (token passed as query parameter)
	r.Handle("/ws/reports", auth(http.HandlerFunc(r.serveReports))).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status := map[string]string{
		"status":   "ok",
		"database": "unknown",
	}
	if r.pinger != nil {
		if err := r.pinger.Ping(req.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			respondJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	respondJSON(w, http.StatusOK, status)
}

// getStatus returns build information and live counters
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	status := map[string]interface{}{
		"status":     "running",
		"buildTime":  buildinfo.BuildTime,
		"commitTime": buildinfo.CommitTime,
		"commitHash": buildinfo.CommitHash,
		"startTime":  buildinfo.StartTime,
	}
	if r.hub != nil {
		status["reportSessions"] = r.hub.Clients()
	}
	if r.reports != nil {
		status["requestsLoaded"] = r.reports.Len()
	}
	respondJSON(w, http.StatusOK, status)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError translates a service error into a status code
func respondServiceError(w http.ResponseWriter, err error) {
	var ve *requests.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, requests.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, requests.ErrForbidden), errors.Is(err, reporting.ErrNotPrivileged):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, storage.ErrNotConfigured):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, storage.ErrTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	default:
		log.Printf("🔴 Request failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writePDF sends a generated document inline
func writePDF(w http.ResponseWriter, filename string, pdf []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=\""+filename+"\"")
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}
