// Package runs accumulates checkpoint split times of in-progress attempts.
package runs

import "slices"

// Tracker maps login to the split times of the player's current attempt.
// It is owned by the engine loop and is not safe for concurrent use.
type Tracker struct {
	runs map[string][]int
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string][]int)}
}

// OnCheckpoint records a split. Index 0 starts a new attempt; any other index
// extends the open attempt and is dropped when there is none.
func (t *Tracker) OnCheckpoint(login string, index, timeMs int) {
	if index == 0 {
		t.runs[login] = []int{timeMs}
		return
	}
	run, ok := t.runs[login]
	if !ok {
		return
	}
	t.runs[login] = append(run, timeMs)
}

// OnMapBegin clears every run.
func (t *Tracker) OnMapBegin() {
	clear(t.runs)
}

// Reset discards the run of login.
func (t *Tracker) Reset(login string) {
	delete(t.runs, login)
}

// Current returns a copy of the login's run, or false when there is none.
func (t *Tracker) Current(login string) ([]int, bool) {
	run, ok := t.runs[login]
	if !ok {
		return nil, false
	}
	return slices.Clone(run), true
}

// Split returns the time recorded at index in the login's run.
func (t *Tracker) Split(login string, index int) (int, bool) {
	run, ok := t.runs[login]
	if !ok || index < 0 || index >= len(run) {
		return 0, false
	}
	return run[index], true
}

// Len returns the number of open runs.
func (t *Tracker) Len() int {
	return len(t.runs)
}
