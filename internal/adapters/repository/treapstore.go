package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/povelc/portfolio/internal/domain/model"
	"github.com/povelc/portfolio/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: time ASC, then createdAt ASC, then id ASC (model.ScoreEntry.Before).
// In-order traversal yields the board from best to worst; reverse in-order
// yields the worst entries first.

// treap node
type node struct {
	entry model.ScoreEntry
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, e model.ScoreEntry, prio uint64) *node {
	if n == nil {
		return &node{entry: e, prio: prio, size: 1}
	}
	if e.Before(n.entry) {
		n.left = insert(n.left, e, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, e, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, e model.ScoreEntry) *node {
	if n == nil {
		return nil
	}
	if n.entry.ID == e.ID {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, e)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, e)
		}
	} else if e.Before(n.entry) {
		n.left = deleteNode(n.left, e)
	} else {
		n.right = deleteNode(n.right, e)
	}
	fix(n)
	return n
}

// collectAsc appends up to limit entries best first.
func collectAsc(n *node, limit int, out *[]model.ScoreEntry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectAsc(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.entry)
	}
	if len(*out) < limit {
		collectAsc(n.right, limit, out)
	}
}

// collectDesc appends up to limit entries worst first.
func collectDesc(n *node, limit int, out *[]model.ScoreEntry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectDesc(n.right, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.entry)
	}
	if len(*out) < limit {
		collectDesc(n.left, limit, out)
	}
}

// TreapStore keeps score documents in memory.
type TreapStore struct {
	mu    sync.RWMutex
	root  *node
	byID  map[string]model.ScoreEntry
	rng   *rand.Rand
	seed  uint64
	newID func() string
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID:  make(map[string]model.ScoreEntry),
		seed:  uint64(time.Now().UnixNano()), //nolint:gosec // priorities only need to be well spread
		newID: defaultID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rng = rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15)) //nolint:gosec // not security sensitive
	return s
}

// Insert implements Store.Insert in O(log n) expected time.
func (s *TreapStore) Insert(ctx context.Context, e model.ScoreEntry) (model.ScoreEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.ScoreEntry{}, unavailable("treap.insert", err)
	}
	defer observe("insert", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = s.newID()
	}
	if old, ok := s.byID[e.ID]; ok {
		s.root = deleteNode(s.root, old)
	}
	s.root = insert(s.root, e, s.rng.Uint64())
	s.byID[e.ID] = e
	return e, nil
}

// Count implements Store.Count.
func (s *TreapStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("treap.count", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return nsize(s.root), nil
}

// FindSorted implements Store.FindSorted.
func (s *TreapStore) FindSorted(ctx context.Context, order model.SortOrder, limit int) ([]model.ScoreEntry, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("treap.find", err)
	}
	defer observe("find", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ScoreEntry, 0, min(limit, nsize(s.root)))
	if order == model.Descending {
		collectDesc(s.root, limit, &out)
	} else {
		collectAsc(s.root, limit, &out)
	}
	return out, nil
}

// DeleteByID implements Store.DeleteByID.
func (s *TreapStore) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("treap.delete", err)
	}
	defer observe("delete", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	s.root = deleteNode(s.root, e)
	delete(s.byID, id)
	return nil
}

// DeleteAll implements Store.DeleteAll.
func (s *TreapStore) DeleteAll(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("treap.delete_all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := nsize(s.root)
	s.root = nil
	s.byID = make(map[string]model.ScoreEntry)
	return n, nil
}

// Close implements Store.Close.
func (s *TreapStore) Close(context.Context) error { return nil }

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
