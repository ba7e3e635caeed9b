// Package http provides HTTP middleware for entitlement checks and request
// logging.
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/scriptingcat/scriptingcat/pkg/entitlement"
)

// SessionExtractor extracts the session id from an HTTP request.
// Return empty string if no session is present.
type SessionExtractor func(r *http.Request) string

// Config holds middleware configuration.
type Config struct {
	// Service evaluates entitlement (required)
	Service *entitlement.Service

	// GetSessionID extracts the session id from the request (required)
	GetSessionID SessionExtractor

	// OnDenied is called when the session is not entitled.
	// If nil, responds 402 Payment Required.
	OnDenied func(w http.ResponseWriter, r *http.Request, record *entitlement.Record, err error)

	// OnUnauthorized is called when no session id is present.
	// If nil, responds 401 Unauthorized.
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnError is called on storage failures.
	// If nil, responds 500 Internal Server Error.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware gates requests on the session's entitlement. It only checks;
// it never consumes. Handlers commit usage themselves after the gated action
// succeeded, so failed actions stay free.
func Middleware(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := config.GetSessionID(r)
			if sessionID == "" {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
				} else {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
				}
				return
			}

			record, err := config.Service.Check(r.Context(), sessionID)
			if err != nil {
				if isDenial(err) {
					if config.OnDenied != nil {
						config.OnDenied(w, r, record, err)
					} else {
						http.Error(w, err.Error(), http.StatusPaymentRequired)
					}
				} else {
					if config.OnError != nil {
						config.OnError(w, r, err)
					} else {
						http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					}
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HandlerFunc is the http.HandlerFunc variant of Middleware.
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := Middleware(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			middleware(next).ServeHTTP(w, r)
		}
	}
}

func isDenial(err error) bool {
	return errors.Is(err, entitlement.ErrQuotaExceeded) ||
		errors.Is(err, entitlement.ErrSubscriptionInactive) ||
		errors.Is(err, entitlement.ErrUnknownTier)
}

// Common extractors for convenience

// FromHeader returns a SessionExtractor that reads a header.
func FromHeader(headerName string) SessionExtractor {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromQuery returns a SessionExtractor that reads a query parameter.
func FromQuery(paramName string) SessionExtractor {
	return func(r *http.Request) string {
		return r.URL.Query().Get(paramName)
	}
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
