package types_test

import (
	"testing"

	"github.com/okian/laprank/internal/domain/model"
	types "github.com/okian/laprank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFormatTime(t *testing.T) {
	Convey("Given lap times in milliseconds", t, func() {
		So(types.FormatTime(35000), ShouldEqual, "0:35.000")
		So(types.FormatTime(61234), ShouldEqual, "1:01.234")
		So(types.FormatTime(7), ShouldEqual, "0:00.007")
		So(types.FormatTime(-1500), ShouldEqual, "-0:01.500")
	})
}

func TestFromRecords(t *testing.T) {
	Convey("Given leaderboard records", t, func() {
		records := []model.Record{
			{Login: "bob", NickName: "Bob", BestTimeMs: 30000, Rank: 1},
			{Login: "alice", NickName: "Alice", BestTimeMs: 35000, Rank: 2},
		}

		Convey("When converting them to entries", func() {
			entries := types.FromRecords(records)

			Convey("Then rank, identity and formatted time are kept", func() {
				So(entries, ShouldHaveLength, 2)
				So(entries[0], ShouldResemble, types.Entry{Rank: 1, Login: "bob", NickName: "Bob", TimeMs: 30000, Time: "0:30.000"})
				So(entries[1].Rank, ShouldEqual, 2)
			})
		})
	})
}
