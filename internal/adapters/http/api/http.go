// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"github.com/povelc/portfolio/internal/adapters/objectstore"
	"github.com/povelc/portfolio/internal/adapters/ratelimit"
	"github.com/povelc/portfolio/internal/domain/model"
	"github.com/povelc/portfolio/internal/domain/types"
	"github.com/povelc/portfolio/pkg/logger"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultRetryAfter     = time.Minute
	defaultCacheMaxAge    = time.Hour
	defaultAssetsPrefix   = "Build/"
	maxBodyBytes          = 64 << 10
)

// Leaderboard is the service surface the leaderboard routes need.
type Leaderboard interface {
	Display(ctx context.Context) ([]model.ScoreEntry, error)
	Submit(ctx context.Context, c model.Candidate) (model.SubmitResult, error)
	ClearAll(ctx context.Context) (int, error)
}

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Dependencies bundles what the handlers call into. Assets may be nil when
// object storage is not configured; Stats may be nil.
type Dependencies struct {
	Leaderboard Leaderboard
	Limiter     ratelimit.Limiter
	Assets      objectstore.Reader
	Stats       StatsProvider
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	deps Dependencies

	apiKey         string
	allowedOrigins map[string]struct{}
	requestTimeout time.Duration
	retryAfter     time.Duration
	exposeDetails  bool
	assetsPrefix   string
	cacheMaxAge    time.Duration
	log            logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAPIKey sets the shared secret for privileged routes.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) { s.apiKey = key }
}

// WithAllowedOrigins sets the CORS allow-list.
func WithAllowedOrigins(origins ...string) ServerOption {
	return func(s *Server) {
		for _, o := range origins {
			if o != "" {
				s.allowedOrigins[o] = struct{}{}
			}
		}
	}
}

// WithRequestTimeout bounds every API request.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithRetryAfter sets the Retry-After fallback for limiters that cannot compute one.
func WithRetryAfter(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.retryAfter = d
		}
	}
}

// WithExposeErrorDetails adds internal error text to 5xx bodies.
func WithExposeErrorDetails(on bool) ServerOption {
	return func(s *Server) { s.exposeDetails = on }
}

// WithAssetsPrefix sets the object key prefix for game files.
func WithAssetsPrefix(prefix string) ServerOption {
	return func(s *Server) { s.assetsPrefix = prefix }
}

// WithAssetCacheMaxAge sets the Cache-Control max-age of game files.
func WithAssetCacheMaxAge(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.cacheMaxAge = d
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{
		deps:           deps,
		allowedOrigins: make(map[string]struct{}),
		requestTimeout: defaultRequestTimeout,
		retryAfter:     defaultRetryAfter,
		assetsPrefix:   defaultAssetsPrefix,
		cacheMaxAge:    defaultCacheMaxAge,
		log:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/healthz", Instrument("healthz", NewHealthHandler()))
	mux.Handle("/stats", Instrument("stats", http.HandlerFunc(s.handleStats)))
	mux.Handle("/api/leaderboard", Instrument("leaderboard", s.withTimeout(http.HandlerFunc(s.handleLeaderboard))))
	// Asset bodies outlive request_timeout; only opening the object is bounded.
	mux.Handle("/api/game-files/", Instrument("game_files", http.HandlerFunc(s.handleGameFile)))
	mux.Handle("/api/storage/check", Instrument("storage_check", s.withTimeout(http.HandlerFunc(s.handleStorageCheck))))
}

// Response bodies.

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type invalidScoreResponse struct {
	Error    string         `json:"error"`
	Received map[string]any `json:"received"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type submittedResponse struct {
	Message string `json:"message"`
	Score   Entry  `json:"score"`
}

type clearedResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

var jsonAPI = sonic.Config{ //nolint:gochecknoglobals // frozen encoder config
	EscapeHTML:       true,
	SortMapKeys:      true,
	NoNullSliceOrMap: true,
}.Froze()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = jsonAPI.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServerError logs err and answers status with msg, plus the detail when enabled.
func (s *Server) writeServerError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	s.log.Error(r.Context(), msg, logger.String("path", r.URL.Path), logger.Error(err))
	body := errorResponse{Error: msg}
	if s.exposeDetails && err != nil {
		body.Details = err.Error()
	}
	writeJSON(w, status, body)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}
