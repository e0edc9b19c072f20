// Package simulator drives a running engine over HTTP with a synthetic race
// and checks the leaderboard it produces.
package simulator

import "time"

// Config holds configuration for a simulated race.
type Config struct {
	BaseURL     string        // Base URL of the service
	Players     int           // Number of drivers
	Attempts    int           // Maximum runs per driver
	GiveUpRate  float64       // Share of runs abandoned before the finish
	MapUID      string        // Map to race on; generated when empty
	Checkpoints int           // Checkpoints per lap including the finish
	AuthorTime  time.Duration // Author time of the map
	Workers     int           // Number of concurrent drivers
	Timeout     time.Duration // HTTP request timeout
	Settle      time.Duration // How long to wait for the engine to drain
	Seed        uint64        // Seed of the race; 0 picks one
	EndMap      bool          // Send map_end after verification
	Verbose     bool          // Enable verbose logging
}

// Event is the wire shape of POST /events.
type Event struct {
	EventID         string   `json:"event_id"`
	Kind            string   `json:"kind"`
	Login           string   `json:"login,omitempty"`
	NickName        string   `json:"nick_name,omitempty"`
	CheckpointIndex int      `json:"checkpoint_index,omitempty"`
	TimeMs          int      `json:"time_ms,omitempty"`
	Map             *MapInfo `json:"map,omitempty"`
	TS              string   `json:"ts,omitempty"`
}

// MapInfo is the map payload of a map_begin event.
type MapInfo struct {
	UID          string `json:"uid"`
	Name         string `json:"name"`
	Environment  string `json:"environment,omitempty"`
	Author       string `json:"author,omitempty"`
	AuthorTimeMs int    `json:"author_time_ms"`
	Checkpoints  int    `json:"checkpoints"`
	Laps         int    `json:"laps,omitempty"`
	Mode         string `json:"mode,omitempty"`
}

// Entry represents a leaderboard entry.
type Entry struct {
	Rank     int    `json:"rank"`
	Login    string `json:"login"`
	NickName string `json:"nickname"`
	TimeMs   int    `json:"time_ms"`
	Time     string `json:"time"`
}

// AckResponse represents the response from event submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds race statistics.
type Stats struct {
	Drivers            int
	Runs               int
	GiveUps            int
	EventsSubmitted    int
	EventsSuccessful   int
	EventsDuplicate    int
	EventsFailed       int
	LeaderboardEntries int
	Verified           int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
