package runs_test

import (
	"testing"

	"github.com/okian/laprank/internal/domain/runs"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTracker(t *testing.T) {
	Convey("Given an empty run tracker", t, func() {
		tr := runs.NewTracker()

		Convey("When a checkpoint arrives without an open run", func() {
			tr.OnCheckpoint("alice", 2, 12000)

			Convey("Then it is dropped", func() {
				_, ok := tr.Current("alice")
				So(ok, ShouldBeFalse)
				So(tr.Len(), ShouldEqual, 0)
			})
		})

		Convey("When a player drives through checkpoints", func() {
			tr.OnCheckpoint("alice", 0, 5000)
			tr.OnCheckpoint("alice", 1, 11000)
			tr.OnCheckpoint("alice", 2, 17000)

			Convey("Then the run holds every split in order", func() {
				run, ok := tr.Current("alice")
				So(ok, ShouldBeTrue)
				So(run, ShouldResemble, []int{5000, 11000, 17000})

				split, ok := tr.Split("alice", 1)
				So(ok, ShouldBeTrue)
				So(split, ShouldEqual, 11000)
				_, ok = tr.Split("alice", 3)
				So(ok, ShouldBeFalse)
			})

			Convey("And the returned run is a copy", func() {
				run, _ := tr.Current("alice")
				run[0] = 1
				again, _ := tr.Current("alice")
				So(again[0], ShouldEqual, 5000)
			})

			Convey("And the player restarts", func() {
				tr.OnCheckpoint("alice", 0, 4900)

				Convey("Then the run starts over", func() {
					run, _ := tr.Current("alice")
					So(run, ShouldResemble, []int{4900})
				})
			})

			Convey("And the run is reset", func() {
				tr.Reset("alice")
				_, ok := tr.Current("alice")
				So(ok, ShouldBeFalse)
			})

			Convey("And the map changes", func() {
				tr.OnCheckpoint("bob", 0, 6000)
				tr.OnMapBegin()

				Convey("Then all runs are cleared", func() {
					So(tr.Len(), ShouldEqual, 0)
				})
			})
		})
	})
}
