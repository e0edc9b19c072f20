package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/laprank/internal/adapters/authority"
	"github.com/okian/laprank/internal/adapters/dedimania"
	"github.com/okian/laprank/internal/adapters/gamehost"
	"github.com/okian/laprank/internal/adapters/http/api"
	"github.com/okian/laprank/internal/adapters/http/swagger"
	service "github.com/okian/laprank/internal/app"
	"github.com/okian/laprank/internal/config"
	"github.com/okian/laprank/internal/domain/ranking"
	"github.com/okian/laprank/internal/domain/replay"
	"github.com/okian/laprank/pkg/logger"
	"github.com/okian/laprank/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

const (
	toolName    = "laprank"
	toolVersion = "1.0.0"
)

func main() {
	// We export our own system metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	l := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		l.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, l); err != nil {
		l.Error(ctx, "laprank stopped with an error", logger.Error(err))
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: logger already flushed by the error path
	}
}

// run wires the adapters to the engine and serves HTTP until ctx is done.
func run(ctx context.Context, cfg *config.Config, l logger.Logger) error {
	timeout := time.Duration(cfg.AuthorityTimeoutMS) * time.Millisecond

	client, err := dedimania.NewClient(cfg.AuthorityURL, timeout)
	if err != nil {
		return err
	}
	defer closeQuietly(ctx, l, "authority client", client)

	session, err := authority.NewSession(client, credentials(cfg),
		authority.WithSnapshotInterval(time.Duration(cfg.SnapshotIntervalSeconds)*time.Second),
		authority.WithCallTimeout(timeout),
		authority.WithFlushRetries(uint64(cfg.FlushMaxRetries)), //nolint:gosec // validated non-negative by config
	)
	if err != nil {
		return fmt.Errorf("authority session: %w", err)
	}

	host, err := gamehost.New(cfg.HostURL, cfg.HostDataDir, timeout)
	if err != nil {
		return err
	}
	defer closeQuietly(ctx, l, "game host", host)

	svc := newService(cfg, session, host)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		l.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	l.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	l.Info(ctx, "server stopped")
	return nil
}

func credentials(cfg *config.Config) authority.Credentials {
	return authority.Credentials{
		Game:          cfg.Game,
		Login:         cfg.AuthorityLogin,
		Code:          cfg.AuthorityCode,
		Path:          cfg.ServerPath,
		Packmask:      cfg.Packmask,
		ServerVersion: cfg.ServerVersion,
		ServerBuild:   cfg.ServerBuild,
		Tool:          toolName,
		Version:       toolVersion,
		ServerIP:      cfg.ServerIP,
		ServerPort:    cfg.ServerPort,
	}
}

// newService builds the engine from cfg. host doubles as the chat sink.
func newService(cfg *config.Config, auth service.Authority, host interface {
	replay.Host
	service.Sink
},
) *service.Service {
	return service.New(auth, host, host,
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithWindow(cfg.WindowSize, cfg.WindowTop),
		service.WithRecordLimit(cfg.RecordLimit),
		service.WithCheckpointDiff(cfg.CheckpointDiff),
		service.WithRankingOptions(
			ranking.WithLabel(cfg.RecordLabel),
			ranking.WithAuthorTimeFloor(cfg.AuthorTimeFloorMS),
			ranking.WithMinFinish(cfg.MinFinishMS),
			ranking.WithMinCheckpoints(cfg.MinCheckpoints),
			ranking.WithDisplayLimit(cfg.DisplayLimit),
		),
		service.WithReplayOptions(
			replay.WithRate(cfg.HostRatePerSecond, cfg.HostBurst),
			replay.WithGhostDir(cfg.GhostDir),
		),
	)
}

func newMux(cfg *config.Config, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, svc, cfg.MaxLeaderboardLimit).Register(mux)
	return mux
}

func closeQuietly(ctx context.Context, l logger.Logger, what string, c io.Closer) {
	if err := c.Close(); err != nil {
		l.Warn(ctx, "close failed", logger.String("what", what), logger.Error(err))
	}
}

func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()
	if n, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(n)
	}
	if n, ok := stats["records"].(int); ok {
		metrics.UpdateLeaderboardSize(n)
	}
	if n, ok := stats["pending"].(int); ok {
		metrics.UpdatePendingChanges(n)
	}
}
