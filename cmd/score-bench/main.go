package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/povelc/portfolio/internal/scorebench"
	"github.com/povelc/portfolio/pkg/logger"
)

const (
	defaultWorkersPerCPU = 2
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "bench failed:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "score-bench",
		Usage: "submit random scores concurrently and verify the leaderboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: scorebench.DefaultBaseURL, Usage: "base URL of the service"},
			&cli.StringFlag{Name: "api-key", Usage: "API key for privileged routes", Sources: cli.EnvVars("POVELC_API_KEY")},
			&cli.IntFlag{Name: "scores", Value: scorebench.DefaultNumScores, Usage: "number of scores to submit"},
			&cli.IntFlag{Name: "workers", Value: runtime.NumCPU() * defaultWorkersPerCPU, Usage: "concurrent submitters"},
			&cli.IntFlag{Name: "display", Value: scorebench.DefaultDisplayScores, Usage: "expected public list size"},
			&cli.DurationFlag{Name: "timeout", Value: scorebench.DefaultTimeout, Usage: "HTTP request timeout"},
			&cli.DurationFlag{Name: "run-timeout", Value: defaultRunTimeout, Usage: "limit for the whole run"},
			&cli.BoolFlag{Name: "reset", Usage: "clear the leaderboard first and verify the exact top list"},
			&cli.StringFlag{Name: "output", Usage: "write generated submissions to this JSON file"},
			&cli.BoolFlag{Name: "verbose", Usage: "log progress and debug output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			level := "info"
			if cmd.Bool("verbose") {
				level = "debug"
			}
			if err := logger.Init(logger.WithLevel(level), logger.WithFormat("console")); err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("run-timeout"))
			defer cancel()

			_, err := scorebench.Run(ctx, &scorebench.Config{
				BaseURL:       cmd.String("url"),
				APIKey:        cmd.String("api-key"),
				NumScores:     int(cmd.Int("scores")),
				Workers:       int(cmd.Int("workers")),
				DisplayScores: int(cmd.Int("display")),
				Timeout:       cmd.Duration("timeout"),
				Reset:         cmd.Bool("reset"),
				OutputFile:    cmd.String("output"),
				Verbose:       cmd.Bool("verbose"),
			}, logger.Named("score-bench"))
			return err
		},
	}
}
