// Package scorebench drives the leaderboard API concurrently and checks the
// ranking invariants on the result.
package scorebench

import (
	"errors"
	"time"
)

// Defaults.
const (
	DefaultBaseURL       = "http://localhost:9080"
	DefaultNumScores     = 200
	DefaultDisplayScores = 10
	DefaultTimeout       = 30 * time.Second
	MaxTime              = 300.0
)

// Sentinel errors.
var (
	ErrUnhealthy     = errors.New("service unhealthy")
	ErrReset         = errors.New("leaderboard reset failed")
	ErrFetch         = errors.New("leaderboard fetch failed")
	ErrVerification  = errors.New("leaderboard verification failed")
	ErrInvalidConfig = errors.New("invalid bench config")
)

// Config holds configuration for a bench run.
type Config struct {
	BaseURL       string
	APIKey        string
	NumScores     int
	Workers       int
	DisplayScores int // expected public list size
	Timeout       time.Duration
	Reset         bool   // clear the board first and verify the exact top list
	OutputFile    string // optional JSON dump of the submissions
	Verbose       bool
	Seed          uint64 // 0 picks a random seed
}

func (c *Config) validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("url is required"))
	case c.APIKey == "":
		return errors.Join(ErrInvalidConfig, errors.New("api key is required"))
	case c.NumScores < 1:
		return errors.Join(ErrInvalidConfig, errors.New("scores must be positive"))
	case c.Workers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	}
	if c.DisplayScores < 1 {
		c.DisplayScores = DefaultDisplayScores
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

// Submission is one generated score.
type Submission struct {
	PlayerName string  `json:"playerName"`
	Time       float64 `json:"time"`
}

// Entry is a leaderboard row as served by the API.
type Entry struct {
	PlayerName string  `json:"playerName"`
	Time       float64 `json:"time"`
	CreatedAt  string  `json:"createdAt"`
}

// Outcome classifies a submission response.
type Outcome int

// Submission outcomes.
const (
	OutcomeAccepted Outcome = iota
	OutcomeNotInTop
	OutcomeRateLimited
	OutcomeFailed
)

// Stats holds bench statistics.
type Stats struct {
	Generated          int
	Submitted          int
	Accepted           int
	NotInTop           int
	RateLimited        int
	Failed             int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
