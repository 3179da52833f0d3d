package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/povelc/portfolio/internal/adapters/mq/queue"
	worker "github.com/povelc/portfolio/internal/adapters/mq/worker"
	model "github.com/povelc/portfolio/internal/domain/model"
	logging "github.com/povelc/portfolio/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// recordingApplier records applied commands and checks they never overlap.
type recordingApplier struct {
	mu      sync.Mutex
	active  int
	overlap bool
	applied []string
	delay   time.Duration
	fail    error
}

func (a *recordingApplier) Apply(_ context.Context, c model.Command) model.CommandResult {
	a.mu.Lock()
	a.active++
	if a.active > 1 {
		a.overlap = true
	}
	a.mu.Unlock()

	time.Sleep(a.delay)

	a.mu.Lock()
	a.active--
	a.applied = append(a.applied, c.Candidate.PlayerName)
	a.mu.Unlock()
	if a.fail != nil {
		return model.CommandResult{Err: a.fail}
	}
	return model.CommandResult{Submit: model.SubmitResult{Accepted: true, Entry: model.ScoreEntry{PlayerName: c.Candidate.PlayerName}}}
}

func (a *recordingApplier) names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.applied...)
}

func command(ctx context.Context, name string) model.Command {
	return model.Command{
		Kind:       model.CommandSubmit,
		Candidate:  model.Candidate{PlayerName: name, Time: 1},
		Ctx:        ctx,
		Reply:      make(chan model.CommandResult, 1),
		EnqueuedAt: time.Now(),
	}
}

func testLogger() logging.Logger {
	core, _ := observer.New(zapcore.DebugLevel)
	return logging.New(core)
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a writer over an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		applier := &recordingApplier{delay: time.Millisecond}
		w := worker.NewInMemoryWorker(q, applier, worker.WithName("writer-test"), worker.WithLogger(testLogger()))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When commands are enqueued concurrently", func() {
			var wg sync.WaitGroup
			results := make(chan model.CommandResult, 20)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					c := command(context.Background(), "p")
					if q.Enqueue(context.Background(), c) {
						results <- <-c.Reply
					}
				}()
			}
			wg.Wait()
			close(results)

			convey.Convey("Then every command is answered and none overlap", func() {
				n := 0
				for r := range results {
					convey.So(r.Err, convey.ShouldBeNil)
					convey.So(r.Submit.Accepted, convey.ShouldBeTrue)
					n++
				}
				convey.So(n, convey.ShouldEqual, 20)
				convey.So(applier.overlap, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When commands arrive in order", func() {
			var replies []chan model.CommandResult
			for _, name := range []string{"a", "b", "c"} {
				c := command(context.Background(), name)
				convey.So(q.Enqueue(context.Background(), c), convey.ShouldBeTrue)
				replies = append(replies, c.Reply)
			}
			for _, r := range replies {
				<-r
			}
			convey.So(applier.names(), convey.ShouldResemble, []string{"a", "b", "c"})
		})

		convey.Convey("When the caller already gave up", func() {
			callerCtx, callerCancel := context.WithCancel(context.Background())
			callerCancel()
			c := command(callerCtx, "gone")
			q.Enqueue(context.Background(), c)

			res := <-c.Reply
			convey.So(errors.Is(res.Err, context.Canceled), convey.ShouldBeTrue)
			convey.So(applier.names(), convey.ShouldNotContain, "gone")
		})

		convey.Convey("When the writer shuts down", func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerDrainOnShutdown(t *testing.T) {
	convey.Convey("Given queued commands and a writer that has not started", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		applier := &recordingApplier{}
		w := worker.NewInMemoryWorker(q, applier, worker.WithLogger(testLogger()))

		c1 := command(context.Background(), "a")
		c2 := command(context.Background(), "b")
		q.Enqueue(context.Background(), c1)
		q.Enqueue(context.Background(), c2)
		_ = q.Close()

		convey.Convey("Shutdown before Run answers pending commands with ErrStopped", func() {
			go func() {
				_ = w.Shutdown(context.Background())
			}()
			// Give Shutdown a moment to close its signal before the loop starts.
			time.Sleep(10 * time.Millisecond)
			w.Run(context.Background())

			r1, r2 := <-c1.Reply, <-c2.Reply
			applied := len(applier.names())
			stopped := 0
			for _, r := range []model.CommandResult{r1, r2} {
				if errors.Is(r.Err, worker.ErrStopped) {
					stopped++
				}
			}
			convey.So(applied+stopped, convey.ShouldEqual, 2)
		})
	})
}

func TestWorkerPropagatesErrors(t *testing.T) {
	convey.Convey("Given an applier that fails", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		boom := errors.New("boom")
		w := worker.NewInMemoryWorker(q, &recordingApplier{fail: boom}, worker.WithLogger(testLogger()))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		c := command(context.Background(), "x")
		q.Enqueue(context.Background(), c)
		res := <-c.Reply
		convey.So(errors.Is(res.Err, boom), convey.ShouldBeTrue)
	})
}

type applierFunc func(ctx context.Context, c model.Command) model.CommandResult

func (f applierFunc) Apply(ctx context.Context, c model.Command) model.CommandResult { return f(ctx, c) }

func TestWorkerFinishesStartedCommands(t *testing.T) {
	convey.Convey("Given a caller that leaves while its command is running", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(4))
		callerCtx, leave := context.WithCancel(context.Background())
		seen := make(chan error, 1)
		hasDeadline := make(chan bool, 1)
		applier := applierFunc(func(ctx context.Context, _ model.Command) model.CommandResult {
			leave()
			_, ok := ctx.Deadline()
			hasDeadline <- ok
			seen <- ctx.Err()
			return model.CommandResult{}
		})
		w := worker.NewInMemoryWorker(q, applier,
			worker.WithLogger(testLogger()), worker.WithApplyTimeout(time.Second))
		runCtx, stop := context.WithCancel(context.Background())
		defer stop()
		go w.Run(runCtx)

		c := command(callerCtx, "late")
		q.Enqueue(context.Background(), c)

		convey.Convey("Then the command keeps a live, bounded context", func() {
			convey.So(<-seen, convey.ShouldBeNil)
			convey.So(<-hasDeadline, convey.ShouldBeTrue)
			convey.So(callerCtx.Err(), convey.ShouldEqual, context.Canceled)
		})
	})
}
