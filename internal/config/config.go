// Package config defines the engine configuration and how it is loaded.
//
// Conventions:
//   - New(ctx) returns a Config filled with defaults.
//   - Load(ctx) layers a YAML file and LAPRANK_ environment variables on top.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// EventQueueSize bounds the inbound game host event queue.
	EventQueueSize int `koanf:"queue_size"`
	// DedupeSize bounds the event id idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`
	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Ranking authority (XML-RPC endpoint and server credentials).
	AuthorityURL       string `koanf:"authority_url"`
	AuthorityLogin     string `koanf:"authority_login"`
	AuthorityCode      string `koanf:"authority_code"`
	AuthorityTimeoutMS int    `koanf:"authority_timeout_ms"`
	Game               string `koanf:"game"`
	ServerPath         string `koanf:"server_path"`
	Packmask           string `koanf:"packmask"`
	ServerVersion      string `koanf:"server_version"`
	ServerBuild        string `koanf:"server_build"`
	ServerIP           string `koanf:"server_ip"`
	ServerPort         int    `koanf:"server_port"`

	// SnapshotIntervalSeconds is the period of server/player snapshot pushes.
	SnapshotIntervalSeconds int `koanf:"snapshot_interval_s"`
	// FlushMaxRetries bounds session-open retries of the end-of-map submission.
	FlushMaxRetries int `koanf:"flush_max_retries"`

	// Game host bridge.
	HostURL           string  `koanf:"host_url"`
	HostDataDir       string  `koanf:"host_data_dir"`
	HostRatePerSecond float64 `koanf:"host_rate_per_second"`
	HostBurst         int     `koanf:"host_burst"`
	GhostDir          string  `koanf:"ghost_dir"`

	// Ranking rules.
	RecordLabel       string `koanf:"record_label"`
	AuthorTimeFloorMS int    `koanf:"author_time_floor_ms"`
	MinFinishMS       int    `koanf:"min_finish_ms"`
	MinCheckpoints    int    `koanf:"min_checkpoints"`
	DisplayLimit      int    `koanf:"display_limit"`
	RecordLimit       int    `koanf:"record_limit"`
	WindowSize        int    `koanf:"window_size"`
	WindowTop         int    `koanf:"window_top"`
	CheckpointDiff    bool   `koanf:"checkpoint_diff"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		EventQueueSize:          10_000,
		DedupeSize:              50_000,
		MaxLeaderboardLimit:     100,
		AuthorityURL:            "http://dedimania.net:8082/Dedimania",
		AuthorityTimeoutMS:      10_000,
		Game:                    "TM2",
		ServerVersion:           "3.3.0",
		ServerPort:              2350,
		SnapshotIntervalSeconds: 240,
		FlushMaxRetries:         3,
		HostURL:                 "http://127.0.0.1:5000/RPC2",
		HostDataDir:             "UserData",
		HostRatePerSecond:       5,
		HostBurst:               1,
		GhostDir:                "laprank",
		RecordLabel:             "Dedimania",
		AuthorTimeFloorMS:       6200,
		MinFinishMS:             6000,
		MinCheckpoints:          2,
		DisplayLimit:            50,
		RecordLimit:             100,
		WindowSize:              16,
		WindowTop:               3,
		CheckpointDiff:          true,
	}
}
