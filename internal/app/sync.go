package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/internal/domain/ranking"
	"github.com/okian/laprank/internal/domain/replay"
	"github.com/okian/laprank/pkg/logger"
)

// onRecords installs the authority's records for st while its map is still
// running. Finishes accepted before they arrived are re-applied on top.
func (s *Service) onRecords(ctx context.Context, st *mapState, records []model.Record, serverMaxRank string, ps []model.PlayerInfo, err error) {
	if st != s.cur || st.engine.State() != ranking.StateActive {
		return
	}
	if err != nil {
		s.logger.Warn(ctx, "authority records unavailable",
			logger.String("map", st.info.UID),
			logger.Error(err),
		)
		return
	}

	s.players.SetServerMaxRank(serverMaxRank)
	for _, p := range ps {
		s.players.ApplyAuthority(p.Login, p.MaxRank, p.Banned)
	}

	if len(records) > s.recordLimit {
		records = records[:s.recordLimit]
	}
	kept := s.rebase(ctx, st, records)

	s.logger.Info(ctx, "authority records loaded",
		logger.String("map", st.info.UID),
		logger.Int("records", len(records)),
		logger.Int("reapplied", kept),
		logger.String("serverMaxRank", serverMaxRank),
	)

	s.notes.broadcast(st.engine.Summary(st.info.Name, s.summaryCount))
	if kept > 0 {
		st.dirty = true
		s.scheduleDrain(st)
	}
	s.pushWindows(st)
}

// rebase replaces st's board with records and re-applies the local changes
// that still beat the authority's time and still rank within the player's
// ceiling. It returns how many were kept.
func (s *Service) rebase(ctx context.Context, st *mapState, records []model.Record) int {
	items := st.pending.Items()
	local := make(map[string]model.Record, len(items))
	for _, r := range st.board.Records() {
		local[r.Login] = r
	}

	st.board.Replace(records)
	if len(items) == 0 {
		return 0
	}
	st.pending.Clear()

	kept := 0
	for _, it := range items {
		login := it.Change.Login
		if prev, ok := st.board.Get(login); ok && prev.BestTimeMs <= it.Change.BestTimeMs {
			continue
		}
		rec, ok := local[login]
		if !ok {
			continue
		}
		if err := st.engine.Admit(login, it.Change.BestTimeMs, s.recordLimit); err != nil {
			s.logger.Info(ctx, "local finish dropped on rebase",
				logger.String("map", st.info.UID),
				logger.String("login", login),
				logger.Int("timeMs", it.Change.BestTimeMs),
				logger.Error(err),
			)
			continue
		}
		undo := st.board.Upsert(rec, false)
		st.pending.Put(it.Change, undo)
		kept++
	}
	return kept
}

// scheduleDrain starts enriching st's pending changes unless a drain is
// already running; a busy drainer picks st up when it finishes.
func (s *Service) scheduleDrain(st *mapState) {
	if s.drainer != nil || !st.dirty {
		return
	}
	st.dirty = false

	items := st.pending.Items()
	if len(items) == 0 {
		return
	}
	jobs := replay.Jobs(items)

	ctx, cancel := context.WithCancel(s.runCtx)
	st.cancel = cancel
	s.drainer = st
	s.draining.Store(true)

	s.goAsync(func(context.Context) {
		defer cancel()
		err := s.pipeline.Drain(ctx, st.board, jobs, func(o replay.Outcome) {
			_ = s.postWait(ctx, func(ctx context.Context) {
				s.onOutcome(ctx, st, &o)
			})
		})
		_ = s.post(s.runCtx, func(ctx context.Context) {
			s.onDrainFinished(ctx, st, err)
		})
	})
}

func (s *Service) onOutcome(ctx context.Context, st *mapState, o *replay.Outcome) {
	if !replay.Reconcile(st.board, st.pending, *o) {
		return
	}
	s.logger.Warn(ctx, "record withdrawn",
		logger.String("map", st.info.UID),
		logger.String("login", o.Login),
		logger.Error(o.Err),
	)
	if st != s.cur {
		return
	}
	s.notes.tell(o.Login, fmt.Sprintf("Your %s Record could not be validated and was withdrawn.", st.engine.Label()))
	s.pushWindows(st)
}

func (s *Service) onDrainFinished(ctx context.Context, st *mapState, err error) {
	if s.drainer == st {
		s.drainer = nil
		s.draining.Store(false)
	}
	st.cancel = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn(ctx, "drain stopped", logger.String("map", st.info.UID), logger.Error(err))
	}

	s.finishClosing(ctx)
	if s.drainer == nil {
		s.scheduleDrain(s.cur)
	}
}

// finishClosing finishes the ended maps in the order they ended. It stops
// at the first map that still has a drain to run.
func (s *Service) finishClosing(ctx context.Context) {
	for len(s.closing) > 0 && s.drainer == nil {
		s.finishMap(ctx, s.closing[0])
	}
}

// finishMap flushes st once no drain is running and every change is
// enriched. At most one extra drain is run for the map end.
func (s *Service) finishMap(ctx context.Context, st *mapState) {
	if s.drainer != nil {
		return
	}
	if !st.endDrained && (st.dirty || needsDrain(st)) {
		st.endDrained = true
		st.dirty = true
		s.scheduleDrain(st)
		if s.drainer == st {
			return
		}
	}
	s.flush(ctx, st)
}

func needsDrain(st *mapState) bool {
	for _, it := range st.pending.Items() {
		if !it.Change.Enriched() {
			return true
		}
		if rec, ok := st.board.Get(it.Change.Login); ok && rec.Rank == 1 && len(it.Change.TopReplay) == 0 {
			return true
		}
	}
	return false
}

// flush hands st's pending changes to the authority in a single submission.
func (s *Service) flush(ctx context.Context, st *mapState) {
	s.closing = slices.DeleteFunc(s.closing, func(c *mapState) bool { return c == st })
	st.ending = false

	changes := st.pending.Take()
	if len(changes) == 0 {
		s.logger.Info(ctx, "nothing to flush", logger.String("map", st.info.UID))
		return
	}
	info := st.info
	s.goAsync(func(ctx context.Context) {
		if err := s.authority.Flush(ctx, &info, changes); err != nil {
			s.logger.Error(ctx, "map changes lost", logger.String("map", info.UID), logger.Int("changes", len(changes)))
		}
	})
}
