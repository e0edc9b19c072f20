// Package dedupe remembers recently seen event IDs so a retried host
// callback is applied at most once.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper records seen event IDs.
type Deduper interface {
	// SeenAndRecord reports whether id was seen and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool
	// Unrecord forgets id so a rejected event can be retried.
	Unrecord(ctx context.Context, id string)
	// Size returns the number of remembered IDs.
	Size() int64
}

type entry struct {
	id  string
	seq uint64
}

// fifo keeps the last maxSize IDs; the oldest is forgotten first.
type fifo struct {
	mu      sync.Mutex
	seen    map[string]uint64
	ring    []entry
	head    int
	seq     uint64
	maxSize int
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &fifo{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]uint64, d.maxSize)
	d.ring = make([]entry, d.maxSize)
	return d
}

func (d *fifo) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	old := d.ring[d.head]
	if old.seq != 0 && d.seen[old.id] == old.seq {
		delete(d.seen, old.id)
	}

	d.seq++
	d.ring[d.head] = entry{id: id, seq: d.seq}
	d.seen[id] = d.seq
	d.head = (d.head + 1) % d.maxSize
	return false
}

func (d *fifo) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	delete(d.seen, id)
	d.mu.Unlock()
}

func (d *fifo) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
