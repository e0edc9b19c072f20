package ranking_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/laprank/internal/adapters/repository"
	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/internal/domain/ranking"
	"github.com/okian/laprank/internal/domain/runs"
	"github.com/okian/laprank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type fakeRanks struct {
	server  string
	players map[string]model.PlayerInfo
}

func (f *fakeRanks) ServerMaxRank() string { return f.server }

func (f *fakeRanks) Player(login string) (model.PlayerInfo, bool) {
	p, ok := f.players[login]
	return p, ok
}

type fixture struct {
	board   *repository.Leaderboard
	pending *repository.PendingQueue
	runs    *runs.Tracker
	ranks   *fakeRanks
	engine  *ranking.Engine
}

func newFixture() *fixture {
	f := &fixture{
		board:   repository.NewLeaderboard(),
		pending: repository.NewPendingQueue(),
		runs:    runs.NewTracker(),
		ranks: &fakeRanks{server: "30", players: map[string]model.PlayerInfo{
			"alice": {Login: "alice", NickName: "Alice", MaxRank: "30"},
			"bob":   {Login: "bob", NickName: "Bob", MaxRank: "30"},
			"carol": {Login: "carol", NickName: "Carol", MaxRank: "5"},
		}},
	}
	f.engine = ranking.NewEngine(f.board, f.runs, f.ranks, f.pending, ranking.WithDisplayLimit(1))
	return f
}

// drive opens a run with two splits and submits the finish.
func (f *fixture) drive(login string, finishMs int) (ranking.Result, error) {
	f.runs.OnCheckpoint(login, 0, finishMs/3)
	f.runs.OnCheckpoint(login, 1, 2*finishMs/3)
	return f.engine.Submit(context.Background(), login, finishMs)
}

func rankable() model.MapContext {
	return model.MapContext{MapID: "A01", AuthorTimeMs: 30000, CheckpointCount: 4}
}

func TestMapCheck(t *testing.T) {
	Convey("Given a classification engine", t, func() {
		f := newFixture()
		ctx := context.Background()

		Convey("When the map has a short author time", func() {
			m, err := f.engine.MapCheck(ctx, model.MapContext{MapID: "short", AuthorTimeMs: 6199, CheckpointCount: 4})

			Convey("Then it stays inactive and submissions are no-ops", func() {
				So(errors.Is(err, ranking.ErrMapNotRankable), ShouldBeTrue)
				So(m.Active, ShouldBeFalse)
				So(f.engine.State(), ShouldEqual, ranking.StateInactive)

				res, err := f.drive("alice", 35000)
				So(err, ShouldBeNil)
				So(res.Kind, ShouldEqual, ranking.KindIgnored)
				So(f.board.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the map has a single checkpoint", func() {
			_, err := f.engine.MapCheck(ctx, model.MapContext{MapID: "one", AuthorTimeMs: 40000, CheckpointCount: 1})
			So(err, ShouldNotBeNil)
			So(f.engine.State(), ShouldEqual, ranking.StateInactive)
		})

		Convey("When the map is rankable", func() {
			m, err := f.engine.MapCheck(ctx, rankable())
			So(err, ShouldBeNil)
			So(m.Active, ShouldBeTrue)
			So(f.engine.State(), ShouldEqual, ranking.StateActive)

			Convey("And the map ends", func() {
				f.engine.MapEnd()
				So(f.engine.State(), ShouldEqual, ranking.StateInactive)
				So(f.engine.Map().Active, ShouldBeFalse)
			})
		})
	})
}

func TestSubmitScenarios(t *testing.T) {
	Convey("Given an active engine on an empty map", t, func() {
		f := newFixture()
		_, _ = f.engine.MapCheck(context.Background(), rankable())

		Convey("Scenario A: alice finishes 35000ms", func() {
			res, err := f.drive("alice", 35000)

			So(err, ShouldBeNil)
			So(res.Kind, ShouldEqual, ranking.KindNew)
			So(res.Record.Rank, ShouldEqual, 1)
			So(res.Record.Checkpoints, ShouldResemble, []int{11666, 23333})
			So(res.Announcement.Text, ShouldEqual, "Alice drove the 1. Dedimania Record, with a time of 0:35.000!")
			So(res.Announcement.Broadcast, ShouldBeTrue)
			So(f.pending.Len(), ShouldEqual, 1)

			Convey("Scenario B: bob finishes 30000ms", func() {
				res, err := f.drive("bob", 30000)

				So(err, ShouldBeNil)
				So(res.Kind, ShouldEqual, ranking.KindNew)
				So(res.Record.Rank, ShouldEqual, 1)
				alice, _ := f.board.Get("alice")
				So(alice.Rank, ShouldEqual, 2)

				Convey("Scenario C: alice drives bob's exact time", func() {
					res, err := f.drive("alice", 30000)

					So(err, ShouldBeNil)
					So(res.Kind, ShouldEqual, ranking.KindImproved)
					records := f.board.Records()
					So(records[0].Login, ShouldEqual, "bob")
					So(records[1].Login, ShouldEqual, "alice")
					So(records[1].Rank, ShouldEqual, 2)
					So(res.Announcement.Broadcast, ShouldBeFalse)
					So(res.Announcement.Text, ShouldEqual, "Alice improved their 2. Dedimania Record, with a time of 0:30.000 (2. 0:35.000/-0:05.000)!")

					Convey("And bob equals his own time", func() {
						res, err := f.drive("bob", 30000)

						So(err, ShouldBeNil)
						So(res.Kind, ShouldEqual, ranking.KindEqual)
						So(res.Record.Rank, ShouldEqual, 1)
						So(f.board.Records()[0].Login, ShouldEqual, "bob")
					})
				})

				Convey("And alice overtakes bob", func() {
					res, err := f.drive("alice", 29000)

					So(err, ShouldBeNil)
					So(res.Kind, ShouldEqual, ranking.KindGained)
					So(res.Announcement.PreviousRank, ShouldEqual, 2)
					So(res.Announcement.Text, ShouldStartWith, "Alice gained the 1. Dedimania Record")
					So(f.pending.Len(), ShouldEqual, 2)
				})

				Convey("And alice drives slower than her record", func() {
					before := f.board.Records()
					res, err := f.drive("alice", 36000)

					So(err, ShouldBeNil)
					So(res.Kind, ShouldEqual, ranking.KindIgnored)
					So(res.Accepted(), ShouldBeFalse)
					So(f.board.Records(), ShouldResemble, before)
				})

				Convey("Scenario D: carol drives the fastest time with a wider personal ceiling", func() {
					f.ranks.server = "2"
					res, err := f.drive("carol", 28000)

					So(err, ShouldBeNil)
					So(res.Kind, ShouldEqual, ranking.KindNew)
					So(res.Record.Rank, ShouldEqual, 1)
					So(res.Record.MaxRank, ShouldEqual, 5)
				})
			})
		})

		Convey("A finish below the plausibility floor is ignored", func() {
			res, err := f.drive("alice", 5999)
			So(err, ShouldBeNil)
			So(res.Kind, ShouldEqual, ranking.KindIgnored)
			So(f.board.Len(), ShouldEqual, 0)
		})

		Convey("A finish without an open run is ignored", func() {
			res, err := f.engine.Submit(context.Background(), "alice", 35000)
			So(err, ShouldBeNil)
			So(res.Kind, ShouldEqual, ranking.KindIgnored)
		})

		Convey("A non-numeric server rank makes rank data unavailable", func() {
			f.ranks.server = ""
			res, err := f.drive("alice", 35000)

			So(errors.Is(err, ranking.ErrRankDataUnavailable), ShouldBeTrue)
			So(res.Accepted(), ShouldBeFalse)
			So(f.board.Len(), ShouldEqual, 0)
			So(f.pending.Len(), ShouldEqual, 0)
		})

		Convey("A player unknown to the authority cannot be ranked", func() {
			f.runs.OnCheckpoint("dave", 0, 10000)
			_, err := f.engine.Submit(context.Background(), "dave", 35000)
			So(errors.Is(err, ranking.ErrRankDataUnavailable), ShouldBeTrue)
		})

		Convey("A banned player is ignored", func() {
			f.ranks.players["bob"] = model.PlayerInfo{Login: "bob", MaxRank: "0", Banned: true}
			res, err := f.drive("bob", 30000)
			So(err, ShouldBeNil)
			So(res.Accepted(), ShouldBeFalse)
			So(f.board.Len(), ShouldEqual, 0)
		})

		Convey("A prospective rank beyond both ceilings is rejected", func() {
			f.ranks.server = "2"
			f.ranks.players["carol"] = model.PlayerInfo{Login: "carol", MaxRank: "1"}
			_, _ = f.drive("alice", 30000)
			_, _ = f.drive("bob", 31000)
			pendingBefore := f.pending.Len()

			res, err := f.drive("carol", 32000)

			So(errors.Is(err, ranking.ErrRankRejected), ShouldBeTrue)
			So(res.Announcement, ShouldBeNil)
			_, found := f.board.Get("carol")
			So(found, ShouldBeFalse)
			So(f.pending.Len(), ShouldEqual, pendingBefore)
		})

		Convey("Admit re-checks a time against the board as it stands", func() {
			f.ranks.server = "2"
			f.ranks.players["carol"] = model.PlayerInfo{Login: "carol", MaxRank: "1"}
			f.board.Replace([]model.Record{
				{Login: "dave", BestTimeMs: 29000},
				{Login: "erin", BestTimeMs: 29500},
			})

			So(f.engine.Admit("alice", 28000, 0), ShouldBeNil)
			So(errors.Is(f.engine.Admit("carol", 32000, 0), ranking.ErrRankRejected), ShouldBeTrue)
			So(errors.Is(f.engine.Admit("alice", 29200, 1), ranking.ErrRankRejected), ShouldBeTrue)
			So(errors.Is(f.engine.Admit("dave", 28000, 0), ranking.ErrRankDataUnavailable), ShouldBeTrue)

			f.ranks.players["bob"] = model.PlayerInfo{Login: "bob", MaxRank: "30", Banned: true}
			So(errors.Is(f.engine.Admit("bob", 20000, 0), ranking.ErrRankRejected), ShouldBeTrue)
			So(f.board.Len(), ShouldEqual, 2)
		})
	})
}

func TestMessages(t *testing.T) {
	Convey("Given a board with records", t, func() {
		f := newFixture()
		_, _ = f.engine.MapCheck(context.Background(), rankable())
		_, _ = f.drive("bob", 30000)
		_, _ = f.drive("alice", 35000)

		Convey("Personal record lines are addressed to one player", func() {
			So(f.engine.PersonalRecord("alice"), ShouldEqual, "Your current Dedimania Record is: 2. with a time of 0:35.000")
			So(f.engine.PersonalRecord("carol"), ShouldEqual, "You do not have a Dedimania Record on this map.")
		})

		Convey("Checkpoint deltas compare against the record trace", func() {
			delta, ok := f.engine.CheckpointDelta("bob", 0, 9800)
			So(ok, ShouldBeTrue)
			So(delta, ShouldEqual, -200)
			So(ranking.DeltaText(0, delta), ShouldEqual, "Checkpoint 1: -0:00.200 to your record")

			_, ok = f.engine.CheckpointDelta("bob", 5, 9800)
			So(ok, ShouldBeFalse)
		})

		Convey("The summary lists the top of the board", func() {
			So(f.engine.Summary("A01", 1), ShouldEqual, "Dedimania Records on A01: 1. Bob 0:30.000")
		})
	})
}
