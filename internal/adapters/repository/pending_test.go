package repository

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/okian/laprank/internal/domain/model"
)

func accept(b *Leaderboard, q *PendingQueue, login string, ms int) uint64 {
	c := b.Upsert(rec(login, ms), false)
	return q.Put(model.PendingChange{Login: login, BestTimeMs: ms}, c)
}

func TestPendingQueue_OverwritePerLogin(t *testing.T) {
	b := NewLeaderboard()
	q := NewPendingQueue()

	first := accept(b, q, "alice", 35000)
	second := accept(b, q, "alice", 34000)
	accept(b, q, "bob", 30000)

	if q.Len() != 2 {
		t.Fatalf("expected one change per login, got %d", q.Len())
	}
	change, ticket, ok := q.Get("alice")
	if !ok || ticket != second || change.BestTimeMs != 34000 {
		t.Fatalf("expected the later change, got %+v (ticket %d)", change, ticket)
	}
	if q.Attach("alice", 999, nil, []byte("stale")) {
		t.Fatal("attach with an unknown ticket must be refused")
	}
	if q.Current("alice", first) || !q.Current("alice", second) {
		t.Fatal("only the latest ticket is current")
	}

	items := q.Items()
	if items[0].Change.Login != "bob" || items[1].Change.Login != "alice" {
		t.Fatalf("items should be ordered by time: %+v", items)
	}
	if err := q.Verify(b); err != nil {
		t.Fatalf("unexpected inconsistency: %v", err)
	}
}

func TestPendingQueue_RollbackRestoresBoard(t *testing.T) {
	b := NewLeaderboard()
	b.Replace([]model.Record{rec("bob", 30000), rec("alice", 35000)})
	q := NewPendingQueue()
	before := b.Records()

	ticket := accept(b, q, "carol", 29000)
	if !q.Rollback(b, "carol", ticket) {
		t.Fatal("rollback should apply")
	}
	if diff := cmp.Diff(before, b.Records()); diff != "" {
		t.Fatalf("board differs after rollback (-want +got):\n%s", diff)
	}
	if q.Len() != 0 {
		t.Fatalf("pending change should be gone, got %d", q.Len())
	}
	if q.Rollback(b, "carol", ticket) {
		t.Fatal("second rollback must be a no-op")
	}
}

func TestPendingQueue_ChainedRollback(t *testing.T) {
	b := NewLeaderboard()
	b.Replace([]model.Record{rec("alice", 40000)})
	q := NewPendingQueue()
	before := b.Records()

	// two unvalidated improvements: rolling back the second unwinds both.
	accept(b, q, "alice", 38000)
	second := accept(b, q, "alice", 36000)
	q.Rollback(b, "alice", second)
	if diff := cmp.Diff(before, b.Records()); diff != "" {
		t.Fatalf("board differs after chained rollback (-want +got):\n%s", diff)
	}

	// a validated improvement survives the rollback of a later one.
	first := accept(b, q, "alice", 38000)
	q.Attach("alice", first, nil, []byte("replay"))
	third := accept(b, q, "alice", 35000)
	q.Rollback(b, "alice", third)

	got, _ := b.Get("alice")
	if got.BestTimeMs != 38000 {
		t.Fatalf("expected the validated 38000 back, got %d", got.BestTimeMs)
	}
	change, ticket, ok := q.Get("alice")
	if !ok || ticket != first || !change.Enriched() {
		t.Fatalf("validated change should be queued again, got %+v", change)
	}

	// validation arriving after the change was overwritten still counts.
	fourth := accept(b, q, "alice", 34000)
	fifth := accept(b, q, "alice", 33000)
	if !q.Attach("alice", fourth, nil, []byte("late")) {
		t.Fatal("attach to an overwritten change should apply")
	}
	q.Rollback(b, "alice", fifth)
	got, _ = b.Get("alice")
	if got.BestTimeMs != 34000 {
		t.Fatalf("expected the late-validated 34000 back, got %d", got.BestTimeMs)
	}
}

func TestPendingQueue_TakeAndVerify(t *testing.T) {
	b := NewLeaderboard()
	q := NewPendingQueue()
	accept(b, q, "b", 31000)
	accept(b, q, "a", 30000)

	b.Revert(Change{Login: "a"})
	if err := q.Verify(b); !errors.Is(err, ErrInconsistent) {
		t.Fatalf("expected ErrInconsistent, got %v", err)
	}

	batch := q.Take()
	if len(batch) != 2 || batch[0].Login != "a" {
		t.Fatalf("unexpected batch: %+v", batch)
	}
	if q.Len() != 0 {
		t.Fatal("take should empty the queue")
	}
}
