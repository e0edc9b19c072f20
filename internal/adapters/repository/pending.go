package repository

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/pkg/metrics"
)

// PendingItem is a queued change plus what is needed to undo it.
type PendingItem struct {
	Change model.PendingChange
	// Ticket identifies this exact queued change; a later change for the
	// same login gets a new ticket.
	Ticket uint64

	undo  Change
	prior *PendingItem // change this one overwrote, kept for chained rollback
}

// PendingQueue holds at most one accepted change per login until the map ends.
type PendingQueue struct {
	mu     sync.RWMutex
	items  map[string]*PendingItem
	ticket uint64
}

// NewPendingQueue returns an empty queue.
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{items: make(map[string]*PendingItem)}
}

// Put queues change, overwriting any earlier change of the same login.
// undo is the leaderboard change that produced it.
func (q *PendingQueue) Put(change model.PendingChange, undo Change) uint64 { //nolint:gocritic // hugeParam: stored by value
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ticket++
	item := &PendingItem{Change: cloneChange(&change), Ticket: q.ticket, undo: undo}
	if old, ok := q.items[change.Login]; ok {
		item.prior = old
		if old.Change.Enriched() {
			// Rollback stops at an enriched change; nothing older is needed.
			old.prior = nil
		}
	}
	q.items[change.Login] = item
	metrics.UpdatePendingChanges(len(q.items))
	return item.Ticket
}

// Get returns a copy of the login's queued change and its ticket.
func (q *PendingQueue) Get(login string) (model.PendingChange, uint64, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	item, ok := q.items[login]
	if !ok {
		return model.PendingChange{}, 0, false
	}
	return cloneChange(&item.Change), item.Ticket, true
}

// Items returns copies of the queued items ordered by time, then login.
func (q *PendingQueue) Items() []PendingItem {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]PendingItem, 0, len(q.items))
	for _, item := range q.items {
		out = append(out, PendingItem{Change: cloneChange(&item.Change), Ticket: item.Ticket})
	}
	sortItems(out)
	return out
}

// Attach stores replays on the queued change identified by ticket. A change
// that was overwritten since is still updated so a later rollback can fall
// back to it. top replaces the current top replay (nil clears it); a nil
// validation leaves the current one untouched. Returns false when ticket is
// unknown.
func (q *PendingQueue) Attach(login string, ticket uint64, top, validation []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := q.items[login]
	for item != nil && item.Ticket != ticket {
		item = item.prior
	}
	if item == nil {
		return false
	}
	item.Change.TopReplay = top
	if validation != nil {
		item.Change.ValidationReplay = validation
	}
	return true
}

// Current reports whether ticket is the login's latest queued change.
func (q *PendingQueue) Current(login string, ticket uint64) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	item, ok := q.items[login]
	return ok && item.Ticket == ticket
}

// Rollback removes the change identified by ticket and reverts its
// leaderboard change. When it had overwritten a change that was never
// enriched, that one is rolled back too; an enriched one is queued again.
// Returns false when ticket is no longer current.
func (q *PendingQueue) Rollback(board Board, login string, ticket uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.items[login]
	if !ok || item.Ticket != ticket {
		return false
	}
	for item != nil {
		board.Revert(item.undo)
		delete(q.items, login)
		prior := item.prior
		if prior != nil && prior.Change.Enriched() {
			q.items[login] = prior
			break
		}
		item = prior
	}
	metrics.UpdatePendingChanges(len(q.items))
	return true
}

// Take removes and returns every queued change ordered by time.
func (q *PendingQueue) Take() []model.PendingChange {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]PendingItem, 0, len(q.items))
	for _, item := range q.items {
		items = append(items, *item)
	}
	sortItems(items)
	clear(q.items)
	metrics.UpdatePendingChanges(0)

	out := make([]model.PendingChange, len(items))
	for i := range items {
		out[i] = items[i].Change
	}
	return out
}

// Clear drops every queued change.
func (q *PendingQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.items)
	metrics.UpdatePendingChanges(0)
}

// Len returns the number of queued changes.
func (q *PendingQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Verify checks that every queued change matches the login's record on board.
func (q *PendingQueue) Verify(board Board) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for login, item := range q.items {
		rec, ok := board.Get(login)
		if !ok || rec.BestTimeMs != item.Change.BestTimeMs {
			return fmt.Errorf("%w: %s at %dms", ErrInconsistent, login, item.Change.BestTimeMs)
		}
	}
	return nil
}

func sortItems(items []PendingItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Change.BestTimeMs != items[j].Change.BestTimeMs {
			return items[i].Change.BestTimeMs < items[j].Change.BestTimeMs
		}
		return items[i].Change.Login < items[j].Change.Login
	})
}

func cloneChange(c *model.PendingChange) model.PendingChange {
	out := *c
	out.Checkpoints = slices.Clone(c.Checkpoints)
	out.TopReplay = slices.Clone(c.TopReplay)
	out.ValidationReplay = slices.Clone(c.ValidationReplay)
	return out
}
