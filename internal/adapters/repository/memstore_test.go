package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	repository "github.com/okian/pace/internal/adapters/repository"
	"github.com/okian/pace/pkg/protocol"
	. "github.com/smartystreets/goconvey/convey"
)

func TestApplyFullSync(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore()

		Convey("When a full sync is applied", func() {
			courses := s.ApplyFullSync(ctx, "u1", "ada",
				protocol.ProgressSnapshot{"cs101": {"f1": true, "f2": false}},
				protocol.StudyItemsMap{"cs102": {"f9"}},
			)

			Convey("Then every touched course is reported", func() {
				So(courses, ShouldHaveLength, 2)
				So(courses, ShouldContain, "cs101")
				So(courses, ShouldContain, "cs102")
			})

			Convey("Then the course view holds the snapshot", func() {
				view := s.CourseView(ctx, "cs101")
				So(view, ShouldHaveLength, 1)
				So(view[0].UserID, ShouldEqual, "u1")
				So(view[0].Username, ShouldEqual, "ada")
				So(view[0].Files, ShouldResemble, map[string]bool{"f1": true, "f2": false})
			})
		})

		Convey("When a second sync replaces the first", func() {
			s.ApplyFullSync(ctx, "u1", "ada",
				protocol.ProgressSnapshot{"cs101": {"f1": true, "f2": true, "f3": true}}, nil)
			s.ApplyFullSync(ctx, "u1", "ada",
				protocol.ProgressSnapshot{"cs101": {"f1": true}}, nil)

			Convey("Then only the last snapshot counts; no accumulation", func() {
				view := s.CourseView(ctx, "cs101")
				So(view, ShouldHaveLength, 1)
				So(view[0].Files, ShouldResemble, map[string]bool{"f1": true})
			})
		})

		Convey("When a sync drops a course entirely", func() {
			s.ApplyFullSync(ctx, "u1", "ada",
				protocol.ProgressSnapshot{"cs101": {"f1": true}}, nil)
			s.ApplyFullSync(ctx, "u1", "ada",
				protocol.ProgressSnapshot{"cs200": {"x": true}}, nil)

			Convey("Then the dropped course no longer lists the user", func() {
				So(s.CourseView(ctx, "cs101"), ShouldBeEmpty)
				So(s.CourseView(ctx, "cs200"), ShouldHaveLength, 1)
			})
		})

		Convey("When the caller mutates the snapshot after syncing", func() {
			snap := protocol.ProgressSnapshot{"cs101": {"f1": true}}
			s.ApplyFullSync(ctx, "u1", "ada", snap, nil)
			snap["cs101"]["f1"] = false

			Convey("Then the store's copy is unaffected", func() {
				view := s.CourseView(ctx, "cs101")
				So(view[0].Files["f1"], ShouldBeTrue)
			})
		})
	})
}

func TestApplyProgressUpdate(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore()

		Convey("When an incremental update arrives for an unknown user", func() {
			s.ApplyProgressUpdate(ctx, "u2", "bob", "cs101", "f1", true)

			Convey("Then the user and course records are created", func() {
				view := s.CourseView(ctx, "cs101")
				So(view, ShouldHaveLength, 1)
				So(view[0].Username, ShouldEqual, "bob")
				So(view[0].Files["f1"], ShouldBeTrue)
			})
		})

		Convey("When the flag is cleared again", func() {
			s.ApplyProgressUpdate(ctx, "u2", "bob", "cs101", "f1", true)
			s.ApplyProgressUpdate(ctx, "u2", "bob", "cs101", "f1", false)

			Convey("Then the file stays known but incomplete", func() {
				view := s.CourseView(ctx, "cs101")
				So(view[0].Files, ShouldResemble, map[string]bool{"f1": false})
			})
		})
	})
}

func TestUsernameAndStudyItems(t *testing.T) {
	Convey("Given a memory store with one user", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore()
		s.ApplyFullSync(ctx, "u1", "ada", protocol.ProgressSnapshot{"cs101": {"f1": true}}, nil)

		Convey("SetUsername updates an existing user", func() {
			s.SetUsername(ctx, "u1", "grace")
			view := s.CourseView(ctx, "cs101")
			So(view[0].Username, ShouldEqual, "grace")
		})

		Convey("SetUsername before any sync creates the record", func() {
			s.SetUsername(ctx, "early", "dora")
			So(s.Count(ctx), ShouldEqual, 2)

			Convey("And the name survives a later sync without one", func() {
				s.ApplyFullSync(ctx, "early", "", protocol.ProgressSnapshot{"cs101": {"f1": true}}, nil)
				view := s.CourseView(ctx, "cs101")
				names := make(map[string]string, len(view))
				for _, uc := range view {
					names[uc.UserID] = uc.Username
				}
				So(names["early"], ShouldEqual, "dora")
			})

			Convey("But a sync carrying a name replaces it", func() {
				s.ApplyFullSync(ctx, "early", "explorer", protocol.ProgressSnapshot{"cs101": {"f1": true}}, nil)
				view := s.CourseView(ctx, "cs101")
				names := make(map[string]string, len(view))
				for _, uc := range view {
					names[uc.UserID] = uc.Username
				}
				So(names["early"], ShouldEqual, "explorer")
			})
		})

		Convey("SetStudyItems creates records when needed", func() {
			s.SetStudyItems(ctx, "fresh", "cs101", []string{"a", "b"})
			So(s.Count(ctx), ShouldEqual, 2)
		})
	})
}

func TestRemoveClearCount(t *testing.T) {
	Convey("Given a store with several users", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore(repository.WithShardCount(4))
		for i := 0; i < 10; i++ {
			s.ApplyFullSync(ctx, fmt.Sprintf("u%d", i), "n",
				protocol.ProgressSnapshot{"cs101": {"f": true}}, nil)
		}
		So(s.Count(ctx), ShouldEqual, 10)

		Convey("Remove deletes exactly one user", func() {
			So(s.Remove(ctx, "u3"), ShouldBeNil)
			So(s.Count(ctx), ShouldEqual, 9)
			So(s.CourseView(ctx, "cs101"), ShouldHaveLength, 9)
		})

		Convey("Remove on an unknown user returns ErrNotFound", func() {
			So(s.Remove(ctx, "nope"), ShouldEqual, repository.ErrNotFound)
		})

		Convey("Clear drops everything and reports the count", func() {
			So(s.Clear(ctx), ShouldEqual, 10)
			So(s.Count(ctx), ShouldEqual, 0)
			So(s.CourseView(ctx, "cs101"), ShouldBeEmpty)
		})
	})
}

func TestClockOption(t *testing.T) {
	Convey("Given a store with a fixed clock", t, func() {
		ctx := context.Background()
		fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		s := repository.NewMemStore(repository.WithClock(func() time.Time { return fixed }))

		s.ApplyFullSync(ctx, "u1", "ada", protocol.ProgressSnapshot{"cs101": {"f1": true}}, nil)

		Convey("Then lastUpdate carries the injected time", func() {
			view := s.CourseView(ctx, "cs101")
			So(view[0].LastUpdate.Equal(fixed), ShouldBeTrue)
		})
	})
}

func TestConcurrentSyncs(t *testing.T) {
	Convey("Given concurrent full syncs from different users", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore()

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				userID := fmt.Sprintf("u%d", i)
				for j := 0; j < 20; j++ {
					s.ApplyFullSync(ctx, userID, "n",
						protocol.ProgressSnapshot{"cs101": {"f1": j%2 == 0}}, nil)
					_ = s.CourseView(ctx, "cs101")
				}
			}(i)
		}
		wg.Wait()

		Convey("Then every user's last write is visible", func() {
			So(s.Count(ctx), ShouldEqual, 50)
			view := s.CourseView(ctx, "cs101")
			So(view, ShouldHaveLength, 50)
			for _, st := range view {
				So(st.Files["f1"], ShouldBeFalse) // last iteration j=19 writes false
			}
		})
	})
}
