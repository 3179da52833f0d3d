package scoring_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/povelc/portfolio/internal/domain/model"
	scoring "github.com/povelc/portfolio/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestValidate(t *testing.T) {
	Convey("Given the default time rules", t, func() {
		Convey("Then boundary values are handled", func() {
			So(scoring.Validate(model.Candidate{Time: 0}), ShouldBeFalse)
			So(scoring.Validate(model.Candidate{Time: -1}), ShouldBeFalse)
			So(scoring.Validate(model.Candidate{Time: 0.0001}), ShouldBeTrue)
			So(scoring.Validate(model.Candidate{Time: 300.0}), ShouldBeTrue)
			So(scoring.Validate(model.Candidate{Time: 300.0001}), ShouldBeFalse)
		})

		Convey("Then non-finite values fail closed", func() {
			So(scoring.Validate(model.Candidate{Time: math.NaN()}), ShouldBeFalse)
			So(scoring.Validate(model.Candidate{Time: math.Inf(1)}), ShouldBeFalse)
			So(scoring.Validate(model.Candidate{Time: math.Inf(-1)}), ShouldBeFalse)
		})
	})

	Convey("Given a custom upper bound", t, func() {
		v := scoring.New(scoring.WithMaxTime(60))
		So(v.Validate(model.Candidate{Time: 60}), ShouldBeTrue)
		So(v.Validate(model.Candidate{Time: 61}), ShouldBeFalse)
	})
}

func TestSanitizeName(t *testing.T) {
	Convey("Given player names", t, func() {
		Convey("Surrounding whitespace is trimmed", func() {
			name, err := scoring.SanitizeName("  Alice  ")
			So(err, ShouldBeNil)
			So(name, ShouldEqual, "Alice")
		})

		Convey("Long names are truncated to exactly 50 characters", func() {
			name, err := scoring.SanitizeName(strings.Repeat("x", 60))
			So(err, ShouldBeNil)
			So(name, ShouldHaveLength, 50)
		})

		Convey("Truncation counts characters, not bytes", func() {
			name, err := scoring.SanitizeName(strings.Repeat("é", 55))
			So(err, ShouldBeNil)
			So([]rune(name), ShouldHaveLength, 50)
		})

		Convey("Blank names are rejected", func() {
			_, err := scoring.SanitizeName("   ")
			So(errors.Is(err, scoring.ErrEmptyName), ShouldBeTrue)
		})
	})
}

func TestPrepare(t *testing.T) {
	Convey("Given raw submissions", t, func() {
		Convey("A valid submission is sanitized", func() {
			c, err := scoring.Prepare(" Bob ", 42.5)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, model.Candidate{PlayerName: "Bob", Time: 42.5})
		})

		Convey("An out of range time is an invalid score", func() {
			_, err := scoring.Prepare("Bob", 301)
			So(errors.Is(err, scoring.ErrInvalidScore), ShouldBeTrue)
			So(errors.Is(err, scoring.ErrTimeRange), ShouldBeTrue)
		})

		Convey("An empty name is an invalid score", func() {
			_, err := scoring.Prepare("", 10)
			So(errors.Is(err, scoring.ErrInvalidScore), ShouldBeTrue)
		})

		Convey("A custom name length applies", func() {
			v := scoring.New(scoring.WithMaxNameLength(3))
			c, err := v.Prepare("Charlie", 1)
			So(err, ShouldBeNil)
			So(c.PlayerName, ShouldEqual, "Cha")
		})
	})
}
