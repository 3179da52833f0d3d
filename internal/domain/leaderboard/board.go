// Package leaderboard implements the bounded ranking and retention rules.
//
// A Board keeps at most maxScores entries ordered by ascending time. A full
// board admits a candidate only when it is strictly faster than the current
// worst entry, which is then evicted. The Board is not safe for concurrent
// writers; callers serialize Submit and Clear.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/povelc/portfolio/internal/domain/model"
	"github.com/povelc/portfolio/internal/domain/scoring"
)

// Default capacities.
const (
	DefaultMaxScores     = 20
	DefaultDisplayScores = 10
)

// Store is the document collection the board is kept in.
type Store interface {
	Insert(ctx context.Context, e model.ScoreEntry) (model.ScoreEntry, error)
	Count(ctx context.Context) (int, error)
	FindSorted(ctx context.Context, order model.SortOrder, limit int) ([]model.ScoreEntry, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
}

// Option applies a configuration option to the Board.
type Option func(*Board)

// WithMaxScores sets the retention capacity.
func WithMaxScores(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.maxScores = n
		}
	}
}

// WithDisplayScores sets the public list size.
func WithDisplayScores(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.displayScores = n
		}
	}
}

// WithClock injects the insertion time source.
func WithClock(now func() time.Time) Option {
	return func(b *Board) {
		if now != nil {
			b.now = now
		}
	}
}

// WithValidator replaces the submission rules.
func WithValidator(v *scoring.Validator) Option {
	return func(b *Board) {
		if v != nil {
			b.validator = v
		}
	}
}

// Board applies the ranking rules on top of a Store.
type Board struct {
	store         Store
	maxScores     int
	displayScores int
	now           func() time.Time
	validator     *scoring.Validator
}

// New creates a Board over store.
func New(store Store, opts ...Option) *Board {
	b := &Board{
		store:         store,
		maxScores:     DefaultMaxScores,
		displayScores: DefaultDisplayScores,
		now:           time.Now,
		validator:     scoring.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MaxScores returns the retention capacity.
func (b *Board) MaxScores() int { return b.maxScores }

// DisplayScores returns the public list size.
func (b *Board) DisplayScores() int { return b.displayScores }

// ListTop returns up to n entries, fastest first.
func (b *Board) ListTop(ctx context.Context, n int) ([]model.ScoreEntry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	entries, err := b.store.FindSorted(ctx, model.Ascending, n)
	if err != nil {
		return nil, storageErr("list", err)
	}
	return entries, nil
}

// Display returns the public list.
func (b *Board) Display(ctx context.Context) ([]model.ScoreEntry, error) {
	return b.ListTop(ctx, b.displayScores)
}

// Count returns the number of retained entries.
func (b *Board) Count(ctx context.Context) (int, error) {
	n, err := b.store.Count(ctx)
	if err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

// Submit sanitizes, validates and ranks a candidate.
func (b *Board) Submit(ctx context.Context, c model.Candidate) (model.SubmitResult, error) {
	prepared, err := b.validator.Prepare(c.PlayerName, c.Time)
	if err != nil {
		return model.SubmitResult{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	count, err := b.store.Count(ctx)
	if err != nil {
		return model.SubmitResult{}, storageErr("count", err)
	}

	if count >= b.maxScores {
		worst, err := b.worst(ctx)
		if err != nil {
			return model.SubmitResult{}, err
		}
		if worst != nil && worst.Time <= prepared.Time {
			return model.SubmitResult{Reason: ReasonNotInTop}, nil
		}
	}

	entry, err := b.store.Insert(ctx, model.ScoreEntry{
		PlayerName: prepared.PlayerName,
		Time:       prepared.Time,
		CreatedAt:  b.now().UTC().Truncate(time.Millisecond),
	})
	if err != nil {
		return model.SubmitResult{}, storageErr("insert", err)
	}

	res := model.SubmitResult{Accepted: true, Entry: entry}
	count, err = b.store.Count(ctx)
	if err != nil {
		return res, storageErr("recount", err)
	}
	for ; count > b.maxScores; count-- {
		worst, err := b.worst(ctx)
		if err != nil {
			return res, err
		}
		if worst == nil {
			break
		}
		if err := b.store.DeleteByID(ctx, worst.ID); err != nil {
			return res, storageErr("evict", err)
		}
		res.Evicted = append(res.Evicted, *worst)
	}
	return res, nil
}

// Clear removes every entry and returns how many were removed.
func (b *Board) Clear(ctx context.Context) (int, error) {
	n, err := b.store.DeleteAll(ctx)
	if err != nil {
		return 0, storageErr("clear", err)
	}
	return n, nil
}

func (b *Board) worst(ctx context.Context) (*model.ScoreEntry, error) {
	entries, err := b.store.FindSorted(ctx, model.Descending, 1)
	if err != nil {
		return nil, storageErr("worst", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
