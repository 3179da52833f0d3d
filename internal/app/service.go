// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
//
// Reads go straight to the store. Submissions and clears are queued and
// applied one at a time by a single writer, so the capacity check and the
// eviction that follows it never interleave with another write.
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/povelc/portfolio/internal/adapters/mq/queue"
	"github.com/povelc/portfolio/internal/adapters/mq/worker"
	"github.com/povelc/portfolio/internal/adapters/repository"
	"github.com/povelc/portfolio/internal/domain/leaderboard"
	"github.com/povelc/portfolio/internal/domain/model"
	"github.com/povelc/portfolio/internal/domain/scoring"
	"github.com/povelc/portfolio/pkg/logger"
	"github.com/povelc/portfolio/pkg/metrics"
)

const defaultQueueSize = 1024

// Service implements the leaderboard operations for the HTTP API.
type Service struct {
	mu sync.RWMutex

	store  repository.Store
	board  *leaderboard.Board
	queue  *queue.InMemoryQueue
	writer *worker.InMemoryWorker
	cancel context.CancelFunc

	maxScores     int
	displayScores int
	queueSize     int
	clock         func() time.Time

	started bool

	accepted atomic.Int64
	rejected atomic.Int64
	invalid  atomic.Int64
	evicted  atomic.Int64
	cleared  atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the document store. Defaults to an in-memory treap store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithMaxScores sets the retention capacity.
func WithMaxScores(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxScores = n
		}
	}
}

// WithDisplayScores sets the public list size.
func WithDisplayScores(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.displayScores = n
		}
	}
}

// WithQueueSize sets the maximum number of queued writes.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithClock injects the insertion time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		maxScores:     leaderboard.DefaultMaxScores,
		displayScores: leaderboard.DefaultDisplayScores,
		queueSize:     defaultQueueSize,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("leaderboard")
	}
	if s.store == nil {
		s.store = repository.NewTreapStore()
		s.logger.Info(ctx, "using in-memory treap store")
	}

	s.board = leaderboard.New(s.store,
		leaderboard.WithMaxScores(s.maxScores),
		leaderboard.WithDisplayScores(s.displayScores),
		leaderboard.WithClock(s.clock),
		leaderboard.WithValidator(scoring.New()),
	)
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.writer = worker.NewInMemoryWorker(s.queue, applierFunc(s.apply),
		worker.WithName("writer"), worker.WithLogger(s.logger.Named("writer")))

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	go s.writer.Run(runCtx)

	if n, err := s.board.Count(ctx); err == nil {
		metrics.UpdateLeaderboardEntries(n)
	} else {
		s.logger.Warn(ctx, "could not count entries at start", logger.Error(err))
	}

	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.Int("maxScores", s.maxScores),
		logger.Int("displayScores", s.displayScores),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop drains the writer and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping leaderboard service...")

	_ = s.queue.Close()
	err := s.writer.Shutdown(ctx)
	s.cancel()
	if cerr := s.store.Close(ctx); cerr != nil {
		err = errors.Join(err, cerr)
	}

	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
	return err
}

// Display returns the public leaderboard.
func (s *Service) Display(ctx context.Context) ([]model.ScoreEntry, error) {
	board, err := s.currentBoard()
	if err != nil {
		return nil, err
	}
	return board.Display(ctx)
}

// ListTop returns up to n entries, fastest first.
func (s *Service) ListTop(ctx context.Context, n int) ([]model.ScoreEntry, error) {
	board, err := s.currentBoard()
	if err != nil {
		return nil, err
	}
	return board.ListTop(ctx, n)
}

// Count returns the number of retained entries.
func (s *Service) Count(ctx context.Context) (int, error) {
	board, err := s.currentBoard()
	if err != nil {
		return 0, err
	}
	return board.Count(ctx)
}

// Submit queues a candidate for the writer and waits for the outcome.
func (s *Service) Submit(ctx context.Context, c model.Candidate) (model.SubmitResult, error) {
	res, err := s.dispatch(ctx, model.Command{Kind: model.CommandSubmit, Candidate: c})
	return res.Submit, err
}

// ClearAll queues a clear for the writer and returns how many entries were removed.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	res, err := s.dispatch(ctx, model.Command{Kind: model.CommandClear})
	return res.Cleared, err
}

func (s *Service) dispatch(ctx context.Context, c model.Command) (model.CommandResult, error) {
	s.mu.RLock()
	started, q := s.started, s.queue
	s.mu.RUnlock()
	if !started {
		return model.CommandResult{}, ErrNotStarted
	}

	reply := make(chan model.CommandResult, 1)
	c.Ctx = ctx
	c.Reply = reply
	c.EnqueuedAt = time.Now()
	if !q.Enqueue(ctx, c) {
		if err := ctx.Err(); err != nil {
			return model.CommandResult{}, err
		}
		return model.CommandResult{}, ErrBackpressure
	}

	select {
	case res := <-reply:
		return res, res.Err
	case <-ctx.Done():
		return model.CommandResult{}, ctx.Err()
	}
}

// apply runs on the writer goroutine only.
func (s *Service) apply(ctx context.Context, c model.Command) model.CommandResult {
	switch c.Kind {
	case model.CommandSubmit:
		return s.applySubmit(ctx, c.Candidate)
	case model.CommandClear:
		n, err := s.board.Clear(ctx)
		if err != nil {
			metrics.RecordErrorByComponent("leaderboard", "clear")
			s.logger.Error(ctx, "clear failed", logger.Error(err))
			return model.CommandResult{Err: err}
		}
		s.cleared.Add(1)
		metrics.RecordLeaderboardClear()
		metrics.UpdateLeaderboardEntries(0)
		s.logger.Info(ctx, "leaderboard cleared", logger.Int("deleted", n))
		return model.CommandResult{Cleared: n}
	default:
		return model.CommandResult{Err: errors.New("unknown command kind")}
	}
}

func (s *Service) applySubmit(ctx context.Context, c model.Candidate) model.CommandResult {
	res, err := s.board.Submit(ctx, c)
	switch {
	case errors.Is(err, leaderboard.ErrValidation):
		s.invalid.Add(1)
		metrics.RecordSubmission(metrics.OutcomeInvalid)
		return model.CommandResult{Err: err}
	case err != nil:
		metrics.RecordSubmission(metrics.OutcomeFailed)
		metrics.RecordErrorByComponent("leaderboard", "storage")
		s.logger.Error(ctx, "submit failed", logger.Error(err))
		return model.CommandResult{Submit: res, Err: err}
	case !res.Accepted:
		s.rejected.Add(1)
		metrics.RecordSubmission(metrics.OutcomeRejected)
		s.logger.Debug(ctx, "score not in top scores", logger.Float64("time", c.Time))
		return model.CommandResult{Submit: res}
	}

	s.accepted.Add(1)
	s.evicted.Add(int64(len(res.Evicted)))
	metrics.RecordSubmission(metrics.OutcomeAccepted)
	metrics.RecordEvictions(len(res.Evicted))
	if n, err := s.board.Count(ctx); err == nil {
		metrics.UpdateLeaderboardEntries(n)
	}
	s.logger.Info(ctx, "score accepted",
		logger.String("player", res.Entry.PlayerName),
		logger.Float64("time", res.Entry.Time),
		logger.Int("evicted", len(res.Evicted)),
	)
	return model.CommandResult{Submit: res}
}

func (s *Service) currentBoard() (*leaderboard.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.board, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"maxScores":     s.maxScores,
		"displayScores": s.displayScores,
		"queueCapacity": s.queueSize,
		"accepted":      s.accepted.Load(),
		"rejected":      s.rejected.Load(),
		"invalid":       s.invalid.Load(),
		"evicted":       s.evicted.Load(),
		"clears":        s.cleared.Load(),
	}
	if s.started {
		stats["queueLength"] = s.queue.Len()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if n, err := s.board.Count(ctx); err == nil {
			stats["entries"] = n
			metrics.UpdateLeaderboardEntries(n)
		}
	}
	return stats
}

// applierFunc adapts a function to worker.Applier.
type applierFunc func(ctx context.Context, c model.Command) model.CommandResult

func (f applierFunc) Apply(ctx context.Context, c model.Command) model.CommandResult { //nolint:gocritic // hugeParam: Command is passed by value for channel semantics
	return f(ctx, c)
}
