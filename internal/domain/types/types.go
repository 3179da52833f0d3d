// Package types contains the public JSON shapes of the HTTP API.
package types

import (
	"time"

	"github.com/povelc/portfolio/internal/domain/model"
)

// TimestampLayout is ISO-8601 UTC with milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Entry is the public view of a leaderboard entry.
type Entry struct {
	PlayerName string  `json:"playerName"`
	Time       float64 `json:"time"`
	CreatedAt  string  `json:"createdAt"`
}

// FromScore converts a stored entry to its public view.
func FromScore(e model.ScoreEntry) Entry {
	return Entry{
		PlayerName: e.PlayerName,
		Time:       e.Time,
		CreatedAt:  FormatTime(e.CreatedAt),
	}
}

// FromScores converts a ranked slice, preserving order. Never returns nil.
func FromScores(entries []model.ScoreEntry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromScore(e))
	}
	return out
}

// FormatTime renders t in TimestampLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
