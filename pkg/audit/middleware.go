// Package audit provides middleware for auditing HTTP requests
package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

// Config holds the configuration for the audit middleware
type Config struct {
	// Source specifies the source of the audit events
	Source string
	// EventType specifies the type of audit events
	EventType string
	// Logger receives one record per audited request. Defaults to slog.Default().
	Logger *slog.Logger
}

// Middleware handles HTTP request auditing
type Middleware struct {
	config Config
}

func NewMiddleware(config Config) *Middleware {
	if config.Source == "" {
		config.Source = "multiemail"
	}
	if config.EventType == "" {
		config.EventType = "audit.account"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Middleware{config: config}
}

// Event represents an audited request
type Event struct {
	AccountID  string
	LoginEmail string
	URI        string
	Method     string
	Status     int
	Message    string
	Timestamp  time.Time
	Metadata   map[string]interface{}
}

// WithMetadata adds metadata to the audit event
func (e Event) WithMetadata(key string, value interface{}) Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AuditAuthMiddleware records the account behind each request together with
// the response status. It must run after the JWT verifier.
func (m *Middleware) AuditAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event := Event{
			URI:       r.RequestURI,
			Method:    r.Method,
			Timestamp: time.Now(),
		}
		if _, claims, err := jwtauth.FromContext(r.Context()); err == nil && claims != nil {
			event.AccountID, _ = claims["account_id"].(string)
			event.LoginEmail, _ = claims["login_email"].(string)
		}
		if event.AccountID == "" {
			event.Message = "No jwt token"
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event.Status = ww.Status()
		if event.Status == 0 {
			event.Status = http.StatusOK
		}
		m.auditRequest(r.Context(), event.WithMetadata("duration_ms", time.Since(event.Timestamp).Milliseconds()))
	})
}

func (m *Middleware) auditRequest(ctx context.Context, event Event) {
	m.config.Logger.InfoContext(ctx, "Audit",
		"source", m.config.Source,
		"type", m.config.EventType,
		"account_id", event.AccountID,
		"uri", event.URI,
		"method", event.Method,
		"status", event.Status,
		"message", event.Message,
		"timestamp", event.Timestamp.Format(time.RFC3339),
		"metadata", event.Metadata,
	)
}
