// Package worker runs the single writer that applies queued commands in order.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/povelc/portfolio/internal/domain/model"
	"github.com/povelc/portfolio/pkg/logger"
	"github.com/povelc/portfolio/pkg/metrics"
)

// ErrStopped answers commands still queued when the writer shuts down.
var ErrStopped = errors.New("writer stopped")

const defaultApplyTimeout = 10 * time.Second

// Command abstracts what the writer reads off the queue.
type Command = model.Command

// Applier executes one command. Calls never overlap.
type Applier interface {
	Apply(ctx context.Context, c Command) model.CommandResult
}

// Queue defines how the writer receives commands.
type Queue interface {
	Dequeue() <-chan Command
}

// Worker processes commands.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown stops the worker; commands still queued are answered with ErrStopped.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for one queue.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string
	timeout time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		applier:  applier,
		name:     "writer",
		timeout:  defaultApplyTimeout,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	commands := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx, commands)
			return
		case c, ok := <-commands:
			if !ok {
				return
			}
			w.process(c)
		}
	}
}

// drain answers whatever is still buffered without applying it.
func (w *InMemoryWorker) drain(ctx context.Context, commands <-chan Command) {
	n := 0
	for {
		select {
		case c, ok := <-commands:
			if !ok {
				if n > 0 {
					w.logger.Warn(ctx, "writer stopped with pending commands", logger.Int("pending", n))
				}
				return
			}
			n++
			reply(c, model.CommandResult{Err: ErrStopped})
		default:
			if n > 0 {
				w.logger.Warn(ctx, "writer stopped with pending commands", logger.Int("pending", n))
			}
			return
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process applies a single command unless its caller already gave up.
func (w *InMemoryWorker) process(c Command) { //nolint:gocritic // hugeParam: Command is passed by value for channel semantics
	if !c.EnqueuedAt.IsZero() {
		metrics.RecordQueueWaitLatency(float64(time.Since(c.EnqueuedAt).Microseconds()) / 1000)
	}

	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordErrorByComponent("writer", "caller_gone")
		reply(c, model.CommandResult{Err: err})
		return
	}

	// A started command runs to completion even if its caller leaves, so an
	// insert is never left without its eviction.
	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	res := w.applier.Apply(applyCtx, c)
	if res.Err != nil {
		metrics.RecordErrorByComponent("writer", c.Kind.String())
		w.logger.Debug(ctx, "command failed", logger.String("kind", c.Kind.String()), logger.Error(res.Err))
	}
	reply(c, res)
}

func reply(c Command, res model.CommandResult) { //nolint:gocritic // hugeParam: Command is passed by value for channel semantics
	if c.Reply == nil {
		return
	}
	select {
	case c.Reply <- res:
	default:
	}
}
