package model

import "slices"

// Record is one player's best time on the current map.
type Record struct {
	Login       string
	NickName    string
	BestTimeMs  int
	Rank        int // 1-based position on the leaderboard
	MaxRank     int // rank ceiling in force when the time was accepted
	Checkpoints []int
	Vote        int
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record { //nolint:gocritic // hugeParam: copy is the point
	r.Checkpoints = slices.Clone(r.Checkpoints)
	return r
}

// PendingChange is an accepted time waiting to be submitted to the authority.
// Nil replay slices mean "not captured yet".
type PendingChange struct {
	Login            string
	NickName         string
	BestTimeMs       int
	Checkpoints      []int
	TopReplay        []byte
	ValidationReplay []byte
}

// Enriched reports whether the change carries a validation replay.
func (p *PendingChange) Enriched() bool {
	return p.ValidationReplay != nil
}
