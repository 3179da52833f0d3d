package api

import (
	"context"
	"crypto/subtle"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"

	"github.com/povelc/portfolio/internal/adapters/ratelimit"
	"github.com/povelc/portfolio/pkg/logger"
	"github.com/povelc/portfolio/pkg/metrics"
)

// HTTP status code boundaries used for error classification.
const (
	statusBadRequest      = 400
	statusNotFound        = 404
	statusTooManyRequests = 429
	statusInternalError   = 500
)

// RequestIDHeader carries the correlation id of a request.
const RequestIDHeader = "X-Request-Id"

const anonymousClient = "unknown"

// Instrument wraps a handler to record Prometheus metrics.
func Instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		durationMs := float64(m.Duration.Microseconds()) / 1000
		statusCodeStr := strconv.Itoa(m.Code)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)

		if m.Code >= statusBadRequest {
			errorType := getErrorType(m.Code)
			metrics.RecordErrorByEndpoint(endpoint, r.Method, errorType)
			metrics.RecordErrorByType(errorType, getErrorSeverity(m.Code))
		}
	})
}

// RequestID echoes an incoming X-Request-Id or assigns a new one, and puts
// it in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// applyCORS annotates the response for allow-listed origins only.
func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Add("Vary", "Origin")
	origin := r.Header.Get("Origin")
	if _, ok := s.allowedOrigins[origin]; !ok || origin == "" {
		return
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, x-api-key")
}

// allow applies the rate limit and answers 429 when the client is over it.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, endpoint string) bool {
	if s.deps.Limiter == nil {
		return true
	}
	key := ratelimit.ClientKey(r)
	if key == "" {
		key = anonymousClient
	}
	if s.deps.Limiter.Allow(r.Context(), key) {
		return true
	}
	metrics.RecordRateLimited(endpoint)
	retry := s.retryAfter
	if ra, ok := s.deps.Limiter.(interface{ RetryAfter(string) time.Duration }); ok {
		if d := ra.RetryAfter(key); d > 0 {
			retry = d
		}
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	s.log.Warn(r.Context(), "rate limited", logger.String("client", key), logger.String("endpoint", endpoint))
	writeError(w, http.StatusTooManyRequests, "Too many requests")
	return false
}

// authorized checks X-API-Key and answers 401 when it does not match.
func (s *Server) authorized(w http.ResponseWriter, r *http.Request) bool {
	got := r.Header.Get("X-API-Key")
	if s.apiKey != "" && got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(s.apiKey)) == 1 {
		return true
	}
	s.log.Warn(r.Context(), "unauthorized request", logger.String("path", r.URL.Path), logger.String("method", r.Method))
	writeError(w, http.StatusUnauthorized, "Unauthorized")
	return false
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusTooManyRequests:
		return "rate_limit"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}

// getErrorSeverity returns error severity based on HTTP status code.
func getErrorSeverity(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "high"
	case statusCode >= statusBadRequest:
		return "medium"
	default:
		return "low"
	}
}
