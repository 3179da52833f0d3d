package scorebench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"github.com/povelc/portfolio/pkg/logger"
)

const (
	directoryPermission = 0750
	reportInterval      = time.Second
	percent             = 100
)

// Result is what a run produced.
type Result struct {
	Stats       Stats
	Processed   []Submission // submissions the server answered with 201 or 200
	Leaderboard []Entry
}

// Run executes the complete bench.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	res := &Result{Stats: Stats{StartTime: time.Now()}}
	c := newClient(cfg)

	log.Info(ctx, "starting score bench",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("scores", cfg.NumScores),
		logger.Int("workers", cfg.Workers),
		logger.String("timeout", cfg.Timeout.String()),
		logger.Any("reset", cfg.Reset))

	if err := c.health(ctx); err != nil {
		return nil, err
	}
	if cfg.Reset {
		n, err := c.clear(ctx)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "leaderboard cleared", logger.Int("deleted", n))
	}

	subs := Generate(cfg.NumScores, cfg.Seed)
	res.Stats.Generated = len(subs)

	res.Processed = submitAll(ctx, c, cfg, subs, &res.Stats, log)

	board, err := c.leaderboard(ctx)
	if err != nil {
		return res, err
	}
	res.Leaderboard = board
	res.Stats.LeaderboardEntries = len(board)

	if err := Verify(board, res.Processed, cfg.DisplayScores, cfg.Reset && res.Stats.Failed == 0); err != nil {
		return res, err
	}
	log.Info(ctx, "leaderboard verified", logger.Int("entries", len(board)))

	if cfg.OutputFile != "" {
		if err := saveSubmissions(cfg.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.Error(err))
		} else {
			log.Info(ctx, "submissions saved", logger.String("file", cfg.OutputFile))
		}
	}

	res.Stats.EndTime = time.Now()
	res.Stats.Duration = res.Stats.EndTime.Sub(res.Stats.StartTime)
	logStats(ctx, log, &res.Stats)
	return res, nil
}

// submitAll posts every submission through a worker pool and returns those
// the server processed.
func submitAll(ctx context.Context, c *client, cfg *Config, subs []Submission, stats *Stats, log logger.Logger) []Submission {
	var (
		accepted, notInTop, limited, failed, submitted atomic.Int64
		lastReport                                     atomic.Int64
		mu                                             sync.Mutex
		processed                                      = make([]Submission, 0, len(subs))
		wg                                             sync.WaitGroup
	)

	jobs := make(chan Submission, cfg.Workers*2)
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				outcome := c.submit(ctx, s)
				submitted.Add(1)
				switch outcome {
				case OutcomeAccepted:
					accepted.Add(1)
				case OutcomeNotInTop:
					notInTop.Add(1)
				case OutcomeRateLimited:
					limited.Add(1)
				default:
					failed.Add(1)
				}
				if outcome == OutcomeAccepted || outcome == OutcomeNotInTop {
					mu.Lock()
					processed = append(processed, s)
					mu.Unlock()
				}

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if cfg.Verbose && now-last >= int64(reportInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Any("submitted", submitted.Load()),
						logger.Int("total", len(subs)),
						logger.Any("accepted", accepted.Load()),
						logger.Any("rateLimited", limited.Load()))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, s := range subs {
			select {
			case <-ctx.Done():
				return
			case jobs <- s:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.NotInTop = int(notInTop.Load())
	stats.RateLimited = int(limited.Load())
	stats.Failed = int(failed.Load())
	if stats.RateLimited > 0 {
		log.Warn(ctx, "some submissions were rate limited", logger.Int("count", stats.RateLimited))
	}
	return processed
}

func saveSubmissions(filename string, subs []Submission) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := sonic.ConfigStd.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal submissions: %w", err)
	}
	return os.WriteFile(filename, data, 0o600)
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Accepted+stats.NotInTop) / float64(stats.Submitted) * percent
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("notInTop", stats.NotInTop),
		logger.Int("rateLimited", stats.RateLimited),
		logger.Int("failed", stats.Failed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("submissionsPerSecond", perSecond))
}
