// Package window computes which slice of the leaderboard a viewer sees.
//
// Every result is derived from (length, rank, Params) alone so it can be
// recomputed on each connect and each leaderboard mutation.
package window

import "github.com/okian/laprank/internal/domain/model"

// Params shapes a window.
type Params struct {
	// TopCount is the size of the podium band, always shown separately.
	TopCount int
	// Size is the total number of lines, podium included.
	Size int
	// Ceiling is the last rank the authority tracks; viewers beyond it see the tail.
	Ceiling int
}

// Bounds is a half-open [Begin, End) range of 0-based leaderboard indices.
type Bounds struct {
	Begin int
	End   int
}

// Len returns the number of indices in b.
func (b Bounds) Len() int { return b.End - b.Begin }

// Contains reports whether index i lies within b.
func (b Bounds) Contains(i int) bool { return i >= b.Begin && i < b.End }

// Podium returns the band of the first topCount entries.
func Podium(length, topCount int) Bounds {
	return Bounds{Begin: 0, End: clamp(topCount, 0, length)}
}

// Compute returns the non-podium window for a viewer at rank (1-based; 0
// means the viewer has no record).
func Compute(length, rank int, p Params) Bounds {
	top := max(p.TopCount, 0)
	slots := max(p.Size-top, 0)
	listEnd := length
	if p.Ceiling > 0 {
		listEnd = min(length, p.Ceiling)
	}

	var begin, end int
	switch {
	case rank <= 0 || (p.Ceiling > 0 && rank > p.Ceiling):
		begin, end = max(top, listEnd-slots), listEnd
	case rank <= top:
		begin, end = top, min(top+slots, listEnd)
	default:
		i := rank - 1
		above := (slots+1)/2 - 1
		below := slots - 1 - above
		begin, end = i-above, i+1+below
		if begin < top {
			begin, end = top, min(top+slots, listEnd)
		}
		if end > listEnd {
			begin, end = max(top, listEnd-slots), listEnd
		}
	}

	begin = clamp(begin, 0, length)
	end = clamp(end, begin, length)
	return Bounds{Begin: begin, End: end}
}

// Select resolves the viewer's rank in records and delegates to Compute.
func Select(records []model.Record, login string, p Params) Bounds {
	rank := 0
	for i := range records {
		if records[i].Login == login {
			rank = i + 1
			break
		}
	}
	return Compute(len(records), rank, p)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
