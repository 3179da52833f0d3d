package repository

import (
	"time"

	"github.com/google/uuid"
)

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithIDGenerator replaces the id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *TreapStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithSeed makes treap priorities deterministic.
func WithSeed(seed uint64) Option {
	return func(s *TreapStore) {
		s.seed = seed
	}
}

// defaultID returns time-ordered ids so that id order follows insertion order.
func defaultID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// MongoOption applies a configuration option to the MongoStore.
type MongoOption func(*MongoStore)

// WithOperationTimeout bounds each driver call when the caller has no deadline.
func WithOperationTimeout(d time.Duration) MongoOption {
	return func(s *MongoStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// WithoutIndexes skips index creation on open.
func WithoutIndexes() MongoOption {
	return func(s *MongoStore) {
		s.ensureIndexes = false
	}
}
