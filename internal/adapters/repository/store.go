// Package repository holds the per-map ranking state: the ranked leaderboard
// and the queue of accepted changes waiting for the authority.
package repository

import "github.com/okian/laprank/internal/domain/model"

// Board is the read/write contract of the ranked leaderboard.
type Board interface {
	// Get returns the login's record.
	Get(login string) (model.Record, bool)
	// ProspectiveRank is the rank a time would take if inserted now.
	ProspectiveRank(timeMs int) int
	// Upsert replaces the login's record. keepOrder keeps the old record's
	// place among equal times.
	Upsert(rec model.Record, keepOrder bool) Change
	// Revert undoes an Upsert.
	Revert(c Change)
	// Records returns a copy of the board in rank order.
	Records() []model.Record
	// Len returns the number of records.
	Len() int
}
