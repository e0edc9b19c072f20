package simulator

import "time"

// Event kinds understood by the engine.
const (
	KindMapBegin   = "map_begin"
	KindMapEnd     = "map_end"
	KindConnect    = "player_connect"
	KindDisconnect = "player_disconnect"
	KindCheckpoint = "checkpoint"
	KindFinish     = "finish"
)

// Race defaults.
const (
	DefaultPlayers     = 40
	DefaultAttempts    = 3
	DefaultGiveUpRate  = 0.15
	DefaultCheckpoints = 5
	DefaultAuthorTime  = 45 * time.Second
	DefaultSettle      = 5 * time.Second
)

const (
	pollInterval   = 100 * time.Millisecond
	leaderboardMax = 100
)
