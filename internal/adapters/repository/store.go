// Package repository defines the score document store and its implementations.
package repository

import (
	"context"

	"github.com/povelc/portfolio/internal/domain/model"
)

// Store is a collection of score documents with ranked reads.
// Ranked reads order by (Time, CreatedAt, ID); Descending puts the worst first.
type Store interface {
	// Insert stores e and returns it with its assigned ID.
	Insert(ctx context.Context, e model.ScoreEntry) (model.ScoreEntry, error)
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
	// FindSorted returns up to limit entries in the given order.
	FindSorted(ctx context.Context, order model.SortOrder, limit int) ([]model.ScoreEntry, error)
	// DeleteByID removes one entry. Returns ErrNotFound if it does not exist.
	DeleteByID(ctx context.Context, id string) error
	// DeleteAll removes every entry and returns how many were removed.
	DeleteAll(ctx context.Context) (int, error)
	// Close releases resources.
	Close(ctx context.Context) error
}
