// Package model contains domain models passed between layers.
package model

import (
	"context"
	"time"
)

// ScoreEntry is one retained leaderboard record. Lower Time is better.
type ScoreEntry struct {
	ID         string    // opaque id assigned by the store
	PlayerName string    // sanitized display name
	Time       float64   // completion time in seconds
	CreatedAt  time.Time // insertion time, immutable
}

// Candidate is a submission before it is accepted.
type Candidate struct {
	PlayerName string
	Time       float64
}

// SortOrder selects the direction of a ranked read.
type SortOrder int

// Sort orders over (Time, CreatedAt, ID).
const (
	Ascending SortOrder = iota
	Descending
)

// Before reports whether e ranks ahead of other.
// Ties on time go to the earlier insertion, then the smaller id.
func (e ScoreEntry) Before(other ScoreEntry) bool {
	if e.Time != other.Time {
		return e.Time < other.Time
	}
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.ID < other.ID
}

// SubmitResult describes the outcome of a submission.
type SubmitResult struct {
	Accepted bool
	Entry    ScoreEntry   // stored entry when accepted
	Evicted  []ScoreEntry // entries removed to restore capacity
	Reason   string       // set when not accepted
}

// CommandKind identifies a serialized write.
type CommandKind int

// Write commands handled by the single writer.
const (
	CommandSubmit CommandKind = iota + 1
	CommandClear
)

func (k CommandKind) String() string {
	switch k {
	case CommandSubmit:
		return "submit"
	case CommandClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Command is a write queued for the single writer. Reply is buffered so the
// writer never blocks on an abandoned caller.
type Command struct {
	Kind       CommandKind
	Candidate  Candidate
	Ctx        context.Context //nolint:containedctx // request scope travels with the queued command
	Reply      chan CommandResult
	EnqueuedAt time.Time
}

// CommandResult is the writer's answer to a Command.
type CommandResult struct {
	Submit  SubmitResult
	Cleared int
	Err     error
}
