package ranking

import (
	"fmt"
	"strings"

	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/internal/domain/types"
)

// Announcement is a chat line produced by an accepted finish. Broadcast
// lines go to every player, the others only to Login.
type Announcement struct {
	Kind           Kind
	Login          string
	NickName       string
	Rank           int
	PreviousRank   int
	TimeMs         int
	PreviousTimeMs int
	Broadcast      bool
	Text           string
}

func (e *Engine) announce(kind Kind, rec *model.Record, prev model.Record, hadPrev bool) *Announcement { //nolint:gocritic // hugeParam: prev is a snapshot
	a := &Announcement{
		Kind:      kind,
		Login:     rec.Login,
		NickName:  rec.NickName,
		Rank:      rec.Rank,
		TimeMs:    rec.BestTimeMs,
		Broadcast: rec.Rank <= e.displayLimit,
	}
	if hadPrev {
		a.PreviousRank = prev.Rank
		a.PreviousTimeMs = prev.BestTimeMs
	}

	t := types.FormatTime(rec.BestTimeMs)
	switch kind {
	case KindNew:
		a.Text = fmt.Sprintf("%s drove the %d. %s Record, with a time of %s!", rec.NickName, rec.Rank, e.label, t)
	case KindGained:
		a.Text = fmt.Sprintf("%s gained the %d. %s Record, with a time of %s (%d. %s/-%s)!",
			rec.NickName, rec.Rank, e.label, t, prev.Rank, types.FormatTime(prev.BestTimeMs), types.FormatTime(prev.BestTimeMs-rec.BestTimeMs))
	case KindImproved:
		a.Text = fmt.Sprintf("%s improved their %d. %s Record, with a time of %s (%d. %s/-%s)!",
			rec.NickName, rec.Rank, e.label, t, prev.Rank, types.FormatTime(prev.BestTimeMs), types.FormatTime(prev.BestTimeMs-rec.BestTimeMs))
	case KindEqual:
		a.Text = fmt.Sprintf("%s equalled their %d. %s Record, with a time of %s!", rec.NickName, rec.Rank, e.label, t)
	default:
		return nil
	}
	return a
}

// PersonalRecord is the private line shown to a player on connect.
func (e *Engine) PersonalRecord(login string) string {
	rec, ok := e.board.Get(login)
	if !ok {
		return fmt.Sprintf("You do not have a %s Record on this map.", e.label)
	}
	return fmt.Sprintf("Your current %s Record is: %d. with a time of %s", e.label, rec.Rank, types.FormatTime(rec.BestTimeMs))
}

// CheckpointDelta compares a live split with the same split of the player's
// record. Positive means slower than the record.
func (e *Engine) CheckpointDelta(login string, index, timeMs int) (int, bool) {
	rec, ok := e.board.Get(login)
	if !ok || index < 0 || index >= len(rec.Checkpoints) {
		return 0, false
	}
	return timeMs - rec.Checkpoints[index], true
}

// DeltaText renders a checkpoint delta for chat.
func DeltaText(index, delta int) string {
	sign := "+"
	if delta < 0 {
		sign = "-"
		delta = -delta
	}
	return fmt.Sprintf("Checkpoint %d: %s%s to your record", index+1, sign, types.FormatTime(delta))
}

// Summary is the line broadcast once the authority records of a map are loaded.
func (e *Engine) Summary(mapName string, n int) string {
	records := e.board.Records()
	if len(records) == 0 {
		return fmt.Sprintf("No %s Records on %s yet.", e.label, mapName)
	}
	n = min(n, len(records))
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%d. %s %s", records[i].Rank, records[i].NickName, types.FormatTime(records[i].BestTimeMs))
	}
	return fmt.Sprintf("%s Records on %s: %s", e.label, mapName, strings.Join(parts, ", "))
}
