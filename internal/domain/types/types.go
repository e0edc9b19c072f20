// Package types contains the read shapes served to API clients and viewers.
package types

import (
	"fmt"

	"github.com/okian/laprank/internal/domain/model"
)

// Entry represents a leaderboard entry
type Entry struct {
	Rank     int    `json:"rank"`
	Login    string `json:"login"`
	NickName string `json:"nickname"`
	TimeMs   int    `json:"time_ms"`
	Time     string `json:"time"`
}

// FromRecord converts a leaderboard record into its read shape.
func FromRecord(r *model.Record) Entry {
	return Entry{
		Rank:     r.Rank,
		Login:    r.Login,
		NickName: r.NickName,
		TimeMs:   r.BestTimeMs,
		Time:     FormatTime(r.BestTimeMs),
	}
}

// FromRecords converts a slice of records.
func FromRecords(records []model.Record) []Entry {
	out := make([]Entry, len(records))
	for i := range records {
		out[i] = FromRecord(&records[i])
	}
	return out
}

// WindowView is the slice of the leaderboard shown to one viewer.
type WindowView struct {
	Login  string  `json:"login"`
	Rank   int     `json:"rank,omitempty"`
	Podium []Entry `json:"podium"`
	Window []Entry `json:"window"`
	Begin  int     `json:"begin"`
	End    int     `json:"end"`
}

// FormatTime renders milliseconds as m:ss.mmm.
func FormatTime(ms int) string {
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	return fmt.Sprintf("%s%d:%02d.%03d", sign, ms/60000, (ms%60000)/1000, ms%1000)
}
