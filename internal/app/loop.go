package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/internal/domain/ranking"
	"github.com/okian/laprank/pkg/logger"
)

// HandleEvent dispatches one game host event. It runs on the loop only.
func (s *Service) HandleEvent(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: events travel by value
	switch e.Kind {
	case model.EventCheckpoint:
		s.onCheckpoint(&e)
	case model.EventFinish:
		return s.onFinish(ctx, &e)
	case model.EventMapBegin:
		return s.onMapBegin(ctx, e.Map)
	case model.EventMapEnd:
		s.onMapEnd(ctx)
	case model.EventPlayerConnect:
		s.onConnect(ctx, &e)
	case model.EventPlayerDisconnect:
		s.onDisconnect(&e)
	default:
		return fmt.Errorf("%w: unknown kind %q", model.ErrInvalidEvent, e.Kind)
	}
	return nil
}

func (s *Service) onCheckpoint(e *model.Event) {
	s.runs.OnCheckpoint(e.Login, e.CheckpointIndex, e.TimeMs)

	st := s.cur
	if !s.checkpointDiff || st.engine.State() != ranking.StateActive {
		return
	}
	if d, ok := st.engine.CheckpointDelta(e.Login, e.CheckpointIndex, e.TimeMs); ok {
		s.notes.tell(e.Login, ranking.DeltaText(e.CheckpointIndex, d))
	}
}

func (s *Service) onFinish(ctx context.Context, e *model.Event) error {
	if e.TimeMs == 0 {
		s.runs.Reset(e.Login)
		return nil
	}

	st := s.cur
	res, err := st.engine.Submit(ctx, e.Login, e.TimeMs)
	switch {
	case errors.Is(err, ranking.ErrRankDataUnavailable), errors.Is(err, ranking.ErrRankRejected):
		s.logger.Info(ctx, "finish not ranked",
			logger.String("login", e.Login),
			logger.Int("timeMs", e.TimeMs),
			logger.Error(err),
		)
		return nil
	case err != nil:
		return err
	}
	if !res.Accepted() {
		return nil
	}

	s.announce(res.Announcement)
	st.dirty = true
	s.scheduleDrain(st)
	s.pushWindows(st)
	return nil
}

func (s *Service) announce(a *ranking.Announcement) {
	if a == nil {
		return
	}
	if a.Broadcast {
		s.notes.broadcast(a.Text)
		return
	}
	s.notes.tell(a.Login, a.Text)
}

func (s *Service) onMapBegin(ctx context.Context, m *model.MapInfo) error {
	if m == nil {
		return ErrNoMap
	}

	s.authority.StopSnapshots()

	old := s.cur
	if !old.ending {
		if n := old.pending.Len(); n > 0 {
			s.logger.Warn(ctx, "map changed without map end, dropping changes",
				logger.String("map", old.info.UID),
				logger.Int("pending", n),
			)
		}
		old.pending.Clear()
		if old.cancel != nil {
			old.cancel()
		}
	}

	s.runs.OnMapBegin()
	if n := s.players.PruneOffline(); n > 0 {
		s.logger.Debug(ctx, "pruned offline players", logger.Int("count", n))
	}

	s.gen++
	st := s.newMapState(*m)
	s.cur = st
	s.view.Store(st)

	if _, err := st.engine.MapCheck(ctx, m.Context()); err != nil {
		s.logger.Info(ctx, "map not ranked",
			logger.String("map", m.UID),
			logger.String("name", m.Name),
			logger.Error(err),
		)
		return nil
	}

	provider := s.snapshotFor(&st.info)
	s.authority.StartSnapshots(st.info, provider)
	s.goAsync(func(ctx context.Context) {
		snap := provider()
		set, err := s.authority.FetchRecords(ctx, &st.info, &snap)
		_ = s.post(ctx, func(ctx context.Context) {
			s.onRecords(ctx, st, set.Records, set.ServerMaxRank, set.Players, err)
		})
	})
	return nil
}

func (s *Service) onMapEnd(ctx context.Context) {
	s.authority.StopSnapshots()

	st := s.cur
	wasActive := st.engine.State() == ranking.StateActive
	st.engine.MapEnd()
	if !wasActive {
		return
	}

	st.ending = true
	s.closing = append(s.closing, st)
	s.finishClosing(ctx)
}

func (s *Service) onConnect(ctx context.Context, e *model.Event) {
	p := s.players.Connect(e.Login, e.NickName, e.Spectator)

	st := s.cur
	if st.engine.State() == ranking.StateActive {
		s.notes.tell(e.Login, st.engine.PersonalRecord(e.Login))
		s.pushWindow(st.board.Records(), e.Login)
	}

	s.goAsync(func(ctx context.Context) {
		info, err := s.authority.PlayerConnect(ctx, &p)
		if err != nil {
			s.logger.Warn(ctx, "player connect not synced", logger.String("login", p.Login), logger.Error(err))
			return
		}
		s.players.ApplyAuthority(p.Login, info.MaxRank, info.Banned)
	})
	s.logger.Debug(ctx, "player connected", logger.String("login", e.Login), logger.Bool("spectator", e.Spectator))
}

func (s *Service) onDisconnect(e *model.Event) {
	s.players.Disconnect(e.Login)
	login := e.Login
	s.goAsync(func(ctx context.Context) {
		if err := s.authority.PlayerDisconnect(ctx, login); err != nil {
			s.logger.Warn(ctx, "player disconnect not synced", logger.String("login", login), logger.Error(err))
		}
	})
}

// pushWindows sends every online player their window of st.
func (s *Service) pushWindows(st *mapState) {
	if _, ok := s.sink.(WindowRenderer); !ok || st != s.cur {
		return
	}
	records := st.board.Records()
	for _, p := range s.players.Online() {
		s.pushWindow(records, p.Login)
	}
}

func (s *Service) pushWindow(records []model.Record, login string) {
	if _, ok := s.sink.(WindowRenderer); !ok {
		return
	}
	view := s.windowView(records, login)
	s.notes.render(login, &view)
}

func parseRank(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
