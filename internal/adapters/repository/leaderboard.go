package repository

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/pkg/metrics"
)

// slot is a record plus its insertion sequence. Records are ordered by
// (BestTimeMs, seq): on equal times the earlier insertion ranks first.
type slot struct {
	rec model.Record
	seq uint64
}

func (s *slot) before(o *slot) bool {
	if s.rec.BestTimeMs != o.rec.BestTimeMs {
		return s.rec.BestTimeMs < o.rec.BestTimeMs
	}
	return s.seq < o.seq
}

// Change describes one Upsert so it can be reverted.
type Change struct {
	Login    string
	Record   model.Record // record as inserted
	previous *slot        // nil when the login had no record
}

// Previous returns the record the change replaced.
func (c Change) Previous() (model.Record, bool) { //nolint:gocritic // hugeParam: Change is a value token
	if c.previous == nil {
		return model.Record{}, false
	}
	return c.previous.rec.Clone(), true
}

// Leaderboard is the ranked, login-unique list of best times of one map.
// Mutations come from the engine loop; the lock only protects readers.
type Leaderboard struct {
	mu    sync.RWMutex
	slots []slot
	next  uint64
}

var _ Board = (*Leaderboard)(nil)

// NewLeaderboard returns an empty leaderboard.
func NewLeaderboard(opts ...Option) *Leaderboard {
	b := &Leaderboard{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Replace loads records wholesale. The input order is the insertion order,
// so ties keep the order the authority returned them in.
func (b *Leaderboard) Replace(records []model.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slots = b.slots[:0]
	seen := make(map[string]struct{}, len(records))
	for i := range records {
		if _, dup := seen[records[i].Login]; dup {
			continue
		}
		seen[records[i].Login] = struct{}{}
		b.slots = append(b.slots, slot{rec: records[i].Clone(), seq: b.nextSeq()})
	}
	sort.SliceStable(b.slots, func(i, j int) bool { return b.slots[i].before(&b.slots[j]) })
	b.restamp()
}

// Reset empties the board.
func (b *Leaderboard) Reset() {
	b.Replace(nil)
}

// Get returns a copy of the login's record.
func (b *Leaderboard) Get(login string) (model.Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if i := b.indexOf(login); i >= 0 {
		return b.slots[i].rec.Clone(), true
	}
	return model.Record{}, false
}

// Rank returns the login's record or ErrNotFound.
func (b *Leaderboard) Rank(login string) (model.Record, error) {
	rec, ok := b.Get(login)
	if !ok {
		return model.Record{}, fmt.Errorf("%w: %s", ErrNotFound, login)
	}
	return rec, nil
}

// TopN returns the first n records.
func (b *Leaderboard) TopN(n int) ([]model.Record, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	n = min(n, len(b.slots))
	out := make([]model.Record, n)
	for i := 0; i < n; i++ {
		out[i] = b.slots[i].rec.Clone()
	}
	return out, nil
}

// ProspectiveRank returns the 1-based position of the first record slower
// than timeMs, or Len()+1 when there is none.
func (b *Leaderboard) ProspectiveRank(timeMs int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return sort.Search(len(b.slots), func(i int) bool { return b.slots[i].rec.BestTimeMs > timeMs }) + 1
}

// Upsert removes the login's current record, inserts rec in order and
// re-stamps every rank.
func (b *Leaderboard) Upsert(rec model.Record, keepOrder bool) Change {
	b.mu.Lock()
	defer b.mu.Unlock()

	var prev *slot
	seq := uint64(0)
	if i := b.indexOf(rec.Login); i >= 0 {
		old := b.slots[i]
		prev = &old
		if keepOrder {
			seq = old.seq
		}
		b.slots = slices.Delete(b.slots, i, i+1)
	}
	if prev == nil || !keepOrder {
		seq = b.nextSeq()
	}

	pos := b.insert(slot{rec: rec.Clone(), seq: seq})
	b.restamp()
	return Change{Login: rec.Login, Record: b.slots[pos].rec.Clone(), previous: prev}
}

// Revert removes the login's record and reinstates the one the change
// replaced, at its original insertion order.
func (b *Leaderboard) Revert(c Change) { //nolint:gocritic // hugeParam: Change is a value token
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := b.indexOf(c.Login); i >= 0 {
		b.slots = slices.Delete(b.slots, i, i+1)
	}
	if c.previous != nil {
		b.insert(slot{rec: c.previous.rec.Clone(), seq: c.previous.seq})
	}
	b.restamp()
}

// Records returns a copy of the board in rank order.
func (b *Leaderboard) Records() []model.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Record, len(b.slots))
	for i := range b.slots {
		out[i] = b.slots[i].rec.Clone()
	}
	return out
}

// Len returns the number of records.
func (b *Leaderboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.slots)
}

// insert places s at its ordered position and returns the index.
// Callers hold the write lock.
func (b *Leaderboard) insert(s slot) int {
	pos := sort.Search(len(b.slots), func(i int) bool { return s.before(&b.slots[i]) })
	b.slots = slices.Insert(b.slots, pos, s)
	return pos
}

// restamp makes every rank equal its 1-based position.
func (b *Leaderboard) restamp() {
	for i := range b.slots {
		b.slots[i].rec.Rank = i + 1
	}
	metrics.UpdateLeaderboardSize(len(b.slots))
}

func (b *Leaderboard) indexOf(login string) int {
	for i := range b.slots {
		if b.slots[i].rec.Login == login {
			return i
		}
	}
	return -1
}

func (b *Leaderboard) nextSeq() uint64 {
	b.next++
	return b.next
}
