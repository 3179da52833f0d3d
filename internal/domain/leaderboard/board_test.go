package leaderboard_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/povelc/portfolio/internal/adapters/repository"
	"github.com/povelc/portfolio/internal/domain/leaderboard"
	"github.com/povelc/portfolio/internal/domain/model"
	"github.com/povelc/portfolio/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func newBoard(opts ...leaderboard.Option) (*leaderboard.Board, *repository.TreapStore) {
	store := repository.NewTreapStore(repository.WithSeed(1))
	clock := &stepClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]leaderboard.Option{leaderboard.WithClock(clock.Now)}, opts...)
	return leaderboard.New(store, opts...), store
}

func times(entries []model.ScoreEntry) []float64 {
	out := make([]float64, len(entries))
	for i, e := range entries {
		out[i] = e.Time
	}
	return out
}

func TestBoardSubmit(t *testing.T) {
	Convey("Given an empty board", t, func() {
		ctx := context.Background()
		board, store := newBoard()

		Convey("A valid submission is stored sanitized", func() {
			res, err := board.Submit(ctx, model.Candidate{PlayerName: "  Alice  ", Time: 42.5})
			So(err, ShouldBeNil)
			So(res.Accepted, ShouldBeTrue)
			So(res.Entry.PlayerName, ShouldEqual, "Alice")
			So(res.Entry.ID, ShouldNotBeEmpty)
			So(res.Entry.CreatedAt.IsZero(), ShouldBeFalse)
			So(res.Evicted, ShouldBeEmpty)
		})

		Convey("Long names are truncated to 50 characters", func() {
			res, err := board.Submit(ctx, model.Candidate{PlayerName: strings.Repeat("n", 80), Time: 1})
			So(err, ShouldBeNil)
			So(res.Entry.PlayerName, ShouldHaveLength, 50)
		})

		Convey("Boundary times are enforced", func() {
			for _, bad := range []float64{0, -5, 300.0001} {
				_, err := board.Submit(ctx, model.Candidate{PlayerName: "x", Time: bad})
				So(errors.Is(err, leaderboard.ErrValidation), ShouldBeTrue)
				So(errors.Is(err, scoring.ErrInvalidScore), ShouldBeTrue)
			}
			for _, good := range []float64{300.0, 0.0001} {
				res, err := board.Submit(ctx, model.Candidate{PlayerName: "x", Time: good})
				So(err, ShouldBeNil)
				So(res.Accepted, ShouldBeTrue)
			}
			n, _ := store.Count(ctx)
			So(n, ShouldEqual, 2)
		})

		Convey("A blank name is rejected", func() {
			_, err := board.Submit(ctx, model.Candidate{PlayerName: "   ", Time: 10})
			So(errors.Is(err, leaderboard.ErrValidation), ShouldBeTrue)
		})
	})

	Convey("Given a board filled with times 1..20", t, func() {
		ctx := context.Background()
		board, _ := newBoard()
		for i := 1; i <= 20; i++ {
			res, err := board.Submit(ctx, model.Candidate{PlayerName: fmt.Sprintf("p%d", i), Time: float64(i)})
			So(err, ShouldBeNil)
			So(res.Accepted, ShouldBeTrue)
		}

		Convey("A slower time 21 is not in the top scores", func() {
			res, err := board.Submit(ctx, model.Candidate{PlayerName: "slow", Time: 21})
			So(err, ShouldBeNil)
			So(res.Accepted, ShouldBeFalse)
			So(res.Reason, ShouldEqual, leaderboard.ReasonNotInTop)
			n, _ := board.Count(ctx)
			So(n, ShouldEqual, 20)
		})

		Convey("A time equal to the worst is not in the top scores", func() {
			res, err := board.Submit(ctx, model.Candidate{PlayerName: "tie", Time: 20})
			So(err, ShouldBeNil)
			So(res.Accepted, ShouldBeFalse)
		})

		Convey("A faster time 0.5 evicts exactly the entry with time 20", func() {
			res, err := board.Submit(ctx, model.Candidate{PlayerName: "fast", Time: 0.5})
			So(err, ShouldBeNil)
			So(res.Accepted, ShouldBeTrue)
			So(res.Evicted, ShouldHaveLength, 1)
			So(res.Evicted[0].Time, ShouldEqual, 20)

			n, _ := board.Count(ctx)
			So(n, ShouldEqual, 20)

			display, err := board.Display(ctx)
			So(err, ShouldBeNil)
			So(times(display), ShouldResemble, []float64{0.5, 1, 2, 3, 4, 5, 6, 7, 8, 9})

			all, _ := board.ListTop(ctx, 50)
			So(all[len(all)-1].Time, ShouldEqual, 19)
		})
	})

	Convey("Given a full board whose worst time is shared", t, func() {
		ctx := context.Background()
		board, _ := newBoard(leaderboard.WithMaxScores(3), leaderboard.WithDisplayScores(3))
		for _, name := range []string{"first", "second"} {
			_, err := board.Submit(ctx, model.Candidate{PlayerName: name, Time: 50})
			So(err, ShouldBeNil)
		}
		_, _ = board.Submit(ctx, model.Candidate{PlayerName: "leader", Time: 10})

		Convey("The most recent of the tied entries is evicted", func() {
			res, err := board.Submit(ctx, model.Candidate{PlayerName: "new", Time: 20})
			So(err, ShouldBeNil)
			So(res.Evicted, ShouldHaveLength, 1)
			So(res.Evicted[0].PlayerName, ShouldEqual, "second")

			display, _ := board.Display(ctx)
			names := []string{display[0].PlayerName, display[1].PlayerName, display[2].PlayerName}
			So(names, ShouldResemble, []string{"leader", "new", "first"})
		})
	})

	Convey("Given a board whose capacity was lowered below its size", t, func() {
		ctx := context.Background()
		store := repository.NewTreapStore()
		big := leaderboard.New(store, leaderboard.WithMaxScores(10))
		for i := 1; i <= 10; i++ {
			_, _ = big.Submit(ctx, model.Candidate{PlayerName: "p", Time: float64(i)})
		}
		small := leaderboard.New(store, leaderboard.WithMaxScores(5), leaderboard.WithDisplayScores(5))

		Convey("The next accepted submission trims back to capacity", func() {
			res, err := small.Submit(ctx, model.Candidate{PlayerName: "fast", Time: 0.1})
			So(err, ShouldBeNil)
			So(res.Accepted, ShouldBeTrue)
			So(res.Evicted, ShouldHaveLength, 6)
			n, _ := small.Count(ctx)
			So(n, ShouldEqual, 5)
		})
	})
}

func TestBoardInvariants(t *testing.T) {
	Convey("Given many random submissions", t, func() {
		ctx := context.Background()
		board, _ := newBoard()
		rng := rand.New(rand.NewSource(99))

		var submitted []float64
		for i := 0; i < 400; i++ {
			tm := float64(rng.Intn(300000)+1) / 1000
			submitted = append(submitted, tm)
			_, err := board.Submit(ctx, model.Candidate{PlayerName: "p", Time: tm})
			So(err, ShouldBeNil)

			n, _ := board.Count(ctx)
			So(n, ShouldBeLessThanOrEqualTo, 20)
		}

		Convey("The board retains exactly the 20 best times", func() {
			sort.Float64s(submitted)
			all, err := board.ListTop(ctx, 100)
			So(err, ShouldBeNil)
			So(times(all), ShouldResemble, submitted[:20])
		})

		Convey("The display list is ascending and at most 10 long", func() {
			display, _ := board.Display(ctx)
			So(len(display), ShouldBeLessThanOrEqualTo, 10)
			So(sort.Float64sAreSorted(times(display)), ShouldBeTrue)
		})
	})
}

type failingStore struct {
	repository.Store
	err error
}

func (f failingStore) Count(context.Context) (int, error) { return 0, f.err }
func (f failingStore) FindSorted(context.Context, model.SortOrder, int) ([]model.ScoreEntry, error) {
	return nil, f.err
}
func (f failingStore) DeleteAll(context.Context) (int, error) { return 0, f.err }

func TestBoardStorageErrors(t *testing.T) {
	Convey("Given a store that is down", t, func() {
		ctx := context.Background()
		board := leaderboard.New(failingStore{err: repository.ErrUnavailable})

		Convey("Every operation reports storage unavailable", func() {
			_, err := board.Submit(ctx, model.Candidate{PlayerName: "x", Time: 1})
			So(errors.Is(err, leaderboard.ErrStorageUnavailable), ShouldBeTrue)
			So(errors.Is(err, repository.ErrUnavailable), ShouldBeTrue)

			_, err = board.Display(ctx)
			So(errors.Is(err, leaderboard.ErrStorageUnavailable), ShouldBeTrue)

			_, err = board.Clear(ctx)
			So(errors.Is(err, leaderboard.ErrStorageUnavailable), ShouldBeTrue)

			_, err = board.Count(ctx)
			So(errors.Is(err, leaderboard.ErrStorageUnavailable), ShouldBeTrue)
		})

		Convey("Validation still wins over storage", func() {
			_, err := board.Submit(ctx, model.Candidate{PlayerName: "x", Time: 0})
			So(errors.Is(err, leaderboard.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestBoardClearAndLimits(t *testing.T) {
	Convey("Given a board with entries", t, func() {
		ctx := context.Background()
		board, _ := newBoard()
		for i := 1; i <= 5; i++ {
			_, _ = board.Submit(ctx, model.Candidate{PlayerName: "p", Time: float64(i)})
		}

		Convey("Clear removes everything", func() {
			n, err := board.Clear(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 5)
			display, _ := board.Display(ctx)
			So(display, ShouldBeEmpty)
		})

		Convey("ListTop rejects non-positive limits", func() {
			_, err := board.ListTop(ctx, 0)
			So(errors.Is(err, leaderboard.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("Capacities are exposed", func() {
			So(board.MaxScores(), ShouldEqual, 20)
			So(board.DisplayScores(), ShouldEqual, 10)
		})
	})
}
