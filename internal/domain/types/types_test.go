package types

import (
	"testing"
	"time"

	"github.com/povelc/portfolio/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEntryConversion(t *testing.T) {
	Convey("Given stored entries", t, func() {
		created := time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.FixedZone("CET", 3600))
		entries := []model.ScoreEntry{
			{ID: "1", PlayerName: "Alice", Time: 12.5, CreatedAt: created},
			{ID: "2", PlayerName: "Bob", Time: 30, CreatedAt: created},
		}

		Convey("When converted to the public view", func() {
			out := FromScores(entries)

			Convey("Then order and fields are preserved and ids hidden", func() {
				So(out, ShouldHaveLength, 2)
				So(out[0].PlayerName, ShouldEqual, "Alice")
				So(out[0].Time, ShouldEqual, 12.5)
				So(out[1].PlayerName, ShouldEqual, "Bob")
			})

			Convey("Then createdAt is UTC with milliseconds", func() {
				So(out[0].CreatedAt, ShouldEqual, "2025-03-04T04:06:07.890Z")
			})
		})

		Convey("When there are no entries", func() {
			out := FromScores(nil)
			So(out, ShouldNotBeNil)
			So(out, ShouldBeEmpty)
		})
	})
}
