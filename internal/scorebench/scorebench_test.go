package scorebench

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/povelc/portfolio/internal/adapters/http/api"
	service "github.com/povelc/portfolio/internal/app"
	"github.com/povelc/portfolio/pkg/logger"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := service.New(service.WithLogger(logger.Nop()))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	api.NewServer(api.Dependencies{Leaderboard: svc}, api.WithAPIKey("k")).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		_ = svc.Stop(context.Background())
	})
	return srv
}

func TestRun(t *testing.T) {
	Convey("Given a running leaderboard API", t, func() {
		srv := newTestServer(t)
		out := filepath.Join(t.TempDir(), "subs", "scores.json")
		cfg := &Config{
			BaseURL:    srv.URL,
			APIKey:     "k",
			NumScores:  150,
			Workers:    8,
			Timeout:    5 * time.Second,
			Reset:      true,
			OutputFile: out,
			Seed:       42,
		}

		Convey("A reset run verifies the exact top list", func() {
			res, err := Run(context.Background(), cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(res.Stats.Submitted, ShouldEqual, 150)
			So(res.Stats.Accepted+res.Stats.NotInTop, ShouldEqual, 150)
			So(res.Stats.Failed, ShouldEqual, 0)
			So(res.Leaderboard, ShouldHaveLength, DefaultDisplayScores)

			_, err = os.Stat(out)
			So(err, ShouldBeNil)
		})

		Convey("A second reset run starts from an empty board", func() {
			_, err := Run(context.Background(), cfg, logger.Nop())
			So(err, ShouldBeNil)
			cfg.Seed = 7
			res, err := Run(context.Background(), cfg, logger.Nop())
			So(err, ShouldBeNil)
			So(res.Leaderboard, ShouldHaveLength, DefaultDisplayScores)
		})

		Convey("A wrong key fails the reset", func() {
			cfg.APIKey = "wrong"
			_, err := Run(context.Background(), cfg, logger.Nop())
			So(errors.Is(err, ErrReset), ShouldBeTrue)
		})
	})

	Convey("Given an unreachable service", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()
		_, err := Run(context.Background(), &Config{BaseURL: srv.URL, APIKey: "k", NumScores: 1, Workers: 1}, logger.Nop())
		So(errors.Is(err, ErrUnhealthy), ShouldBeTrue)
	})

	Convey("Given an incomplete config", t, func() {
		_, err := Run(context.Background(), &Config{BaseURL: "http://x", NumScores: 1, Workers: 1}, logger.Nop())
		So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
	})
}

func TestGenerate(t *testing.T) {
	Convey("Generated submissions are valid and reproducible", t, func() {
		a := Generate(500, 99)
		b := Generate(500, 99)
		So(a, ShouldResemble, b)
		seen := map[string]bool{}
		for _, s := range a {
			So(s.Time, ShouldBeGreaterThan, 0)
			So(s.Time, ShouldBeLessThanOrEqualTo, MaxTime)
			So(seen[s.PlayerName], ShouldBeFalse)
			seen[s.PlayerName] = true
		}
	})
}

func TestVerify(t *testing.T) {
	Convey("Given processed submissions", t, func() {
		processed := []Submission{{Time: 5}, {Time: 1}, {Time: 3}, {Time: 4}, {Time: 2}}

		Convey("The fastest display times in order pass", func() {
			board := []Entry{{Time: 1}, {Time: 2}, {Time: 3}}
			So(Verify(board, processed, 3, true), ShouldBeNil)
		})

		Convey("A board longer than the display size fails", func() {
			board := []Entry{{Time: 1}, {Time: 2}, {Time: 3}, {Time: 4}}
			So(errors.Is(Verify(board, processed, 3, false), ErrVerification), ShouldBeTrue)
		})

		Convey("An unordered board fails", func() {
			board := []Entry{{Time: 2}, {Time: 1}}
			So(errors.Is(Verify(board, processed, 3, false), ErrVerification), ShouldBeTrue)
		})

		Convey("A missing fast time fails the exact check only", func() {
			board := []Entry{{Time: 1}, {Time: 3}, {Time: 4}}
			So(Verify(board, processed, 3, false), ShouldBeNil)
			So(errors.Is(Verify(board, processed, 3, true), ErrVerification), ShouldBeTrue)
		})
	})
}
