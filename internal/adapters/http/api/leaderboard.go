package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	service "github.com/povelc/portfolio/internal/app"
	"github.com/povelc/portfolio/internal/domain/leaderboard"
	"github.com/povelc/portfolio/internal/domain/scoring"
	"github.com/povelc/portfolio/internal/domain/types"
	"github.com/povelc/portfolio/pkg/logger"
)

// Response messages of the leaderboard routes.
const (
	msgSubmitted    = "Score submitted successfully"
	msgCleared      = "Leaderboard cleared successfully"
	msgInvalidScore = "Invalid score data"
	msgServerError  = "Server error"
	msgServerBusy   = "Server busy"
)

// scoreRequest is the POST /api/leaderboard body once its field types are known.
type scoreRequest struct {
	PlayerName string  `validate:"required"`
	Time       float64 `validate:"required"`
}

var requestValidator = validator.New(validator.WithRequiredStructEnabled()) //nolint:gochecknoglobals // caches struct metadata

// handleLeaderboard serves /api/leaderboard. Order: CORS, preflight, rate
// limit, method, credential, validation, store.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.applyCORS(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if !s.allow(w, r, "leaderboard") {
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getLeaderboard(w, r)
	case http.MethodPost:
		if s.authorized(w, r) {
			s.postScore(w, r)
		}
	case http.MethodDelete:
		if s.authorized(w, r) {
			s.clearLeaderboard(w, r)
		}
	default:
		w.Header().Set("Allow", "GET, POST, DELETE, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	entries, err := s.deps.Leaderboard.Display(r.Context())
	if err != nil {
		s.writeStoreError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromScores(entries))
}

func (s *Server) postScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	body, err := readBody(w, r)
	if err != nil {
		s.writeInvalid(w, r, nil, WrapKind(op, ErrBadRequest, err))
		return
	}
	var raw map[string]any
	if err := jsonAPI.Unmarshal(body, &raw); err != nil {
		s.writeInvalid(w, r, nil, WrapKind(op, ErrBadRequest, err))
		return
	}
	received := map[string]any{"playerName": raw["playerName"], "time": raw["time"]}

	name, nameOK := raw["playerName"].(string)
	t, timeOK := raw["time"].(float64)
	if !nameOK || !timeOK {
		s.writeInvalid(w, r, received, NewKind(op, ErrBadRequest))
		return
	}
	if err := requestValidator.Struct(scoreRequest{PlayerName: name, Time: t}); err != nil {
		s.writeInvalid(w, r, received, WrapKind(op, ErrBadRequest, err))
		return
	}
	candidate, err := scoring.Prepare(name, t)
	if err != nil {
		s.writeInvalid(w, r, received, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := s.deps.Leaderboard.Submit(r.Context(), candidate)
	switch {
	case errors.Is(err, leaderboard.ErrValidation):
		s.writeInvalid(w, r, received, WrapKind(op, ErrBadRequest, err))
		return
	case err != nil:
		s.writeStoreError(w, r, Wrap(op, err))
		return
	case !res.Accepted:
		writeJSON(w, http.StatusOK, messageResponse{Message: leaderboard.ReasonNotInTop})
		return
	}
	writeJSON(w, http.StatusCreated, submittedResponse{Message: msgSubmitted, Score: types.FromScore(res.Entry)})
}

func (s *Server) clearLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.clear_leaderboard"
	n, err := s.deps.Leaderboard.ClearAll(r.Context())
	if err != nil {
		s.writeStoreError(w, r, Wrap(op, err))
		return
	}
	s.log.Info(r.Context(), "leaderboard cleared", logger.Int("deleted", n))
	writeJSON(w, http.StatusOK, clearedResponse{Message: msgCleared, Deleted: n})
}

func (s *Server) writeInvalid(w http.ResponseWriter, r *http.Request, received map[string]any, err error) {
	s.log.Debug(r.Context(), "invalid score data", logger.Error(err))
	writeJSON(w, http.StatusBadRequest, invalidScoreResponse{Error: msgInvalidScore, Received: received})
}

// writeStoreError maps service failures: a full writer queue is 503, anything else 500.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrBackpressure) {
		w.Header().Set("Retry-After", "1")
		s.writeServerError(w, r, http.StatusServiceUnavailable, msgServerBusy, err)
		return
	}
	s.writeServerError(w, r, http.StatusInternalServerError, msgServerError, err)
}
