package leaderboard

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrValidation         = errors.New("invalid score data")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidLimit       = errors.New("invalid leaderboard limit")
)

// ReasonNotInTop is reported when a valid candidate does not beat the worst entry.
const ReasonNotInTop = "Score not in top scores"
