package coalesce_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/pace/internal/domain/coalesce"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTracker(t *testing.T) {
	Convey("Given a new tracker", t, func() {
		ctx := context.Background()
		tr := coalesce.NewTracker()

		Convey("The first mark for a course is not pending", func() {
			So(tr.MarkPending(ctx, "cs101"), ShouldBeFalse)
			So(tr.Size(), ShouldEqual, 1)

			Convey("And the second mark reports pending", func() {
				So(tr.MarkPending(ctx, "cs101"), ShouldBeTrue)
				So(tr.Size(), ShouldEqual, 1)
			})

			Convey("And clearing allows a fresh mark", func() {
				tr.ClearPending(ctx, "cs101")
				So(tr.Size(), ShouldEqual, 0)
				So(tr.MarkPending(ctx, "cs101"), ShouldBeFalse)
			})
		})

		Convey("Different courses are independent", func() {
			So(tr.MarkPending(ctx, "cs101"), ShouldBeFalse)
			So(tr.MarkPending(ctx, "cs102"), ShouldBeFalse)
			So(tr.Size(), ShouldEqual, 2)
		})

		Convey("Clearing an unknown course is a no-op", func() {
			tr.ClearPending(ctx, "ghost")
			So(tr.Size(), ShouldEqual, 0)
		})

		Convey("Concurrent marks admit exactly one enqueuer per course", func() {
			const goroutines = 32
			var wg sync.WaitGroup
			admitted := make(chan string, goroutines)

			for i := 0; i < goroutines; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					course := fmt.Sprintf("c%d", i%4)
					if !tr.MarkPending(ctx, course) {
						admitted <- course
					}
				}(i)
			}
			wg.Wait()
			close(admitted)

			seen := make(map[string]int)
			for c := range admitted {
				seen[c]++
			}
			So(seen, ShouldHaveLength, 4)
			for _, n := range seen {
				So(n, ShouldEqual, 1)
			}
		})
	})
}
