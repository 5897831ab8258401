package rank_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/pace/internal/domain/rank"
	. "github.com/smartystreets/goconvey/convey"
)

func files(n, done int) map[string]bool {
	m := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		key := string(rune('a' + i))
		m[key] = i < done
	}
	return m
}

func TestCompute(t *testing.T) {
	Convey("Given a leaderboard engine", t, func() {
		ctx := context.Background()
		e := rank.NewEngine()
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		Convey("When a user has 4 of 10 files complete", func() {
			out := e.Compute(ctx, "cs101", []rank.UserCourse{
				{UserID: "u1", Username: "ada", Files: files(10, 4), LastUpdate: base},
			})

			Convey("Then the entry shows 40.0 percent", func() {
				So(out, ShouldHaveLength, 1)
				So(out[0].Completed, ShouldEqual, 4)
				So(out[0].Total, ShouldEqual, 10)
				So(out[0].Percentage, ShouldEqual, 40.0)
			})
		})

		Convey("When a snapshot mentions incomplete files", func() {
			out := e.Compute(ctx, "cs101", []rank.UserCourse{
				{UserID: "u1", Username: "ada", Files: map[string]bool{"f1": true, "f2": false}, LastUpdate: base},
			})

			Convey("Then total counts every mentioned file", func() {
				So(out[0].Completed, ShouldEqual, 1)
				So(out[0].Total, ShouldEqual, 2)
				So(out[0].Percentage, ShouldEqual, 50.0)
			})
		})

		Convey("When percentages differ", func() {
			out := e.Compute(ctx, "cs101", []rank.UserCourse{
				{UserID: "low", Files: files(10, 3), LastUpdate: base},
				{UserID: "high", Files: files(10, 9), LastUpdate: base},
				{UserID: "mid", Files: files(10, 5), LastUpdate: base},
			})

			Convey("Then ordering is percentage descending", func() {
				So(out[0].UserID, ShouldEqual, "high")
				So(out[1].UserID, ShouldEqual, "mid")
				So(out[2].UserID, ShouldEqual, "low")
			})
		})

		Convey("When percentages tie", func() {
			out := e.Compute(ctx, "cs101", []rank.UserCourse{
				{UserID: "late", Files: files(4, 2), LastUpdate: base.Add(time.Hour)},
				{UserID: "early", Files: files(4, 2), LastUpdate: base},
			})

			Convey("Then the earlier lastUpdate ranks first", func() {
				So(out[0].UserID, ShouldEqual, "early")
				So(out[1].UserID, ShouldEqual, "late")
			})
		})

		Convey("When percentage and lastUpdate both tie", func() {
			out := e.Compute(ctx, "cs101", []rank.UserCourse{
				{UserID: "b", Files: files(2, 1), LastUpdate: base},
				{UserID: "a", Files: files(2, 1), LastUpdate: base},
			})

			Convey("Then userId breaks the tie deterministically", func() {
				So(out[0].UserID, ShouldEqual, "a")
			})
		})

		Convey("When a user's snapshot has no files for the course", func() {
			out := e.Compute(ctx, "cs101", []rank.UserCourse{
				{UserID: "empty", Files: map[string]bool{}, LastUpdate: base},
				{UserID: "real", Files: files(2, 2), LastUpdate: base},
			})

			Convey("Then the empty user is excluded", func() {
				So(out, ShouldHaveLength, 1)
				So(out[0].UserID, ShouldEqual, "real")
			})
		})

		Convey("When nobody has progress", func() {
			out := e.Compute(ctx, "ghost-course", nil)

			Convey("Then the result is an empty sequence, not nil-as-error", func() {
				So(out, ShouldNotBeNil)
				So(out, ShouldBeEmpty)
			})
		})

		Convey("When the user has no display name", func() {
			out := e.Compute(ctx, "cs101", []rank.UserCourse{
				{UserID: "u1", Files: files(3, 1), LastUpdate: base},
			})

			Convey("Then Anonymous is substituted", func() {
				So(out[0].Username, ShouldEqual, "Anonymous")
			})
		})

		Convey("When the percentage is not a round number", func() {
			out := e.Compute(ctx, "cs101", []rank.UserCourse{
				{UserID: "u1", Files: files(3, 1), LastUpdate: base},
			})

			Convey("Then it is rounded to one decimal", func() {
				So(out[0].Percentage, ShouldEqual, 33.3)
			})
		})
	})
}
