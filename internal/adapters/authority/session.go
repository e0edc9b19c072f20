package authority

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/pkg/logger"
	"github.com/okian/laprank/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	defaultSnapshotInterval = 4 * time.Minute
	defaultCallTimeout      = 10 * time.Second
	defaultFlushRetries     = 3
)

// State of the session.
type State int32

// Session states.
const (
	StateNoSession State = iota
	StateOpening
	StateReady
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	default:
		return "no_session"
	}
}

// Session is the single owner of the authority token.
type Session struct {
	client Client
	creds  Credentials

	mu    sync.Mutex
	token string
	state atomic.Int32
	group singleflight.Group

	snapMu     sync.Mutex
	snapCancel context.CancelFunc
	snapDone   chan struct{}
	generation atomic.Uint64

	interval     time.Duration
	timeout      time.Duration
	flushRetries uint64
	newBackOff   func() backoff.BackOff

	logger logger.Logger
}

// NewSession returns a session without a token. The first call opens it.
func NewSession(client Client, creds Credentials, opts ...Option) (*Session, error) { //nolint:gocritic // hugeParam: copied once
	if creds.Login == "" || creds.Code == "" {
		return nil, ErrMissingCredentials
	}
	s := &Session{
		client:       client,
		creds:        creds,
		interval:     defaultSnapshotInterval,
		timeout:      defaultCallTimeout,
		flushRetries: defaultFlushRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("authority")
	}
	return s, nil
}

// State returns the current session state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	metrics.UpdateSessionState(int(st))
}

// Ensure returns a valid token, opening or reopening the session when
// needed. Concurrent callers share one attempt.
func (s *Session) Ensure(ctx context.Context) (string, error) {
	ch := s.group.DoChan("session", func() (interface{}, error) {
		// the shared attempt must not die with the first caller's context
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*s.timeout)
		defer cancel()
		return s.ensure(cctx)
	})
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrSyncFailure, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Session) ensure(ctx context.Context) (string, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token != "" && s.State() == StateReady {
		var valid bool
		err := s.call(ctx, "CheckSession", func(ctx context.Context) error {
			var err error
			valid, err = s.client.CheckSession(ctx, token)
			return err
		})
		if err == nil && valid {
			return token, nil
		}
		s.logger.Info(ctx, "session no longer valid, reopening", logger.Bool("checkFailed", err != nil))
	}

	s.setState(StateOpening)
	err := s.call(ctx, "OpenSession", func(ctx context.Context) error {
		var err error
		token, err = s.client.OpenSession(ctx, s.creds)
		return err
	})
	if err == nil && token == "" {
		err = fmt.Errorf("%w: empty session token", ErrSyncFailure)
	}
	if err != nil {
		s.mu.Lock()
		s.token = ""
		s.mu.Unlock()
		s.setState(StateNoSession)
		metrics.RecordSessionOpen("error")
		return "", err
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.setState(StateReady)
	metrics.RecordSessionOpen("success")
	s.logger.Info(ctx, "session opened", logger.String("login", s.creds.Login))
	return token, nil
}

// call runs one authority request under the call timeout and wraps its error.
func (s *Session) call(ctx context.Context, method string, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(cctx)
	ms := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordAuthorityCall(method, "error", ms)
		if errors.Is(err, ErrSyncFailure) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrSyncFailure, method, err)
	}
	metrics.RecordAuthorityCall(method, "success", ms)
	return nil
}

// FetchRecords loads the authority records of m.
func (s *Session) FetchRecords(ctx context.Context, m *model.MapInfo, snap *model.Snapshot) (RecordSet, error) {
	token, err := s.Ensure(ctx)
	if err != nil {
		return RecordSet{}, err
	}
	var set RecordSet
	err = s.call(ctx, "GetChallengeRecords", func(ctx context.Context) error {
		var err error
		set, err = s.client.GetChallengeRecords(ctx, token, m, snap)
		return err
	})
	return set, err
}

// PushSnapshot sends the server and player state.
func (s *Session) PushSnapshot(ctx context.Context, m *model.MapInfo, snap *model.Snapshot) error {
	token, err := s.Ensure(ctx)
	if err == nil {
		err = s.call(ctx, "UpdateServerPlayers", func(ctx context.Context) error {
			return s.client.UpdateServerPlayers(ctx, token, m, snap)
		})
	}
	if err != nil {
		metrics.RecordSnapshotPush("error")
		return err
	}
	metrics.RecordSnapshotPush("success")
	return nil
}

// StartSnapshots pushes provider's snapshot every interval until
// StopSnapshots. provider is called from the timer goroutine.
func (s *Session) StartSnapshots(m model.MapInfo, provider func() model.Snapshot) { //nolint:gocritic // hugeParam: owned by the loop
	s.StopSnapshots()

	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	gen := s.generation.Add(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.snapCancel, s.snapDone = cancel, done

	go s.snapshotLoop(ctx, gen, &m, provider, done)
}

func (s *Session) snapshotLoop(ctx context.Context, gen uint64, m *model.MapInfo, provider func() model.Snapshot, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a tick from an older map is never sent
			if s.generation.Load() != gen {
				return
			}
			snap := provider()
			if err := s.PushSnapshot(ctx, m, &snap); err != nil && ctx.Err() == nil {
				s.logger.Warn(ctx, "snapshot push failed", logger.String("map", m.UID), logger.Error(err))
			}
		}
	}
}

// StopSnapshots cancels the snapshot timer and waits for it to exit.
func (s *Session) StopSnapshots() {
	s.snapMu.Lock()
	cancel, done := s.snapCancel, s.snapDone
	s.snapCancel, s.snapDone = nil, nil
	s.generation.Add(1)
	s.snapMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Flush submits the map's changes in one call. Only opening the session is
// retried with backoff; once SetChallengeTimes has been sent it is never
// repeated, so a batch reaches the authority at most once.
func (s *Session) Flush(ctx context.Context, m *model.MapInfo, changes []model.PendingChange) error {
	attempt := 0
	op := func() error {
		attempt++
		token, err := s.Ensure(ctx)
		if err != nil {
			return err
		}
		err = s.call(ctx, "SetChallengeTimes", func(ctx context.Context) error {
			return s.client.SetChallengeTimes(ctx, token, m, changes)
		})
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.flushRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		metrics.RecordFlush("error", len(changes))
		s.logger.Error(ctx, "flush failed",
			logger.String("map", m.UID),
			logger.Int("changes", len(changes)),
			logger.Int("attempts", attempt),
			logger.Error(err),
		)
		return err
	}
	metrics.RecordFlush("success", len(changes))
	s.logger.Info(ctx, "changes flushed",
		logger.String("map", m.UID),
		logger.Int("changes", len(changes)),
		logger.Int("attempts", attempt),
	)
	return nil
}

// PlayerConnect announces a player and returns the authority's data on them.
func (s *Session) PlayerConnect(ctx context.Context, p *model.PlayerInfo) (model.PlayerInfo, error) {
	token, err := s.Ensure(ctx)
	if err != nil {
		return model.PlayerInfo{}, err
	}
	var info model.PlayerInfo
	err = s.call(ctx, "PlayerConnect", func(ctx context.Context) error {
		var err error
		info, err = s.client.PlayerConnect(ctx, token, p)
		return err
	})
	return info, err
}

// PlayerDisconnect announces that login left.
func (s *Session) PlayerDisconnect(ctx context.Context, login string) error {
	token, err := s.Ensure(ctx)
	if err != nil {
		return err
	}
	return s.call(ctx, "PlayerDisconnect", func(ctx context.Context) error {
		return s.client.PlayerDisconnect(ctx, token, login)
	})
}
