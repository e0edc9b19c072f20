// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidEvent reports an event missing fields its kind requires.
var ErrInvalidEvent = errors.New("invalid event")

// EventKind names a game host callback.
type EventKind string

// Game host event kinds.
const (
	EventCheckpoint       EventKind = "checkpoint"
	EventFinish           EventKind = "finish"
	EventMapBegin         EventKind = "map_begin"
	EventMapEnd           EventKind = "map_end"
	EventPlayerConnect    EventKind = "player_connect"
	EventPlayerDisconnect EventKind = "player_disconnect"
)

// Event is one game host callback on the engine's inbound queue.
type Event struct {
	EventID         string    // unique id for idempotency
	Kind            EventKind // which callback
	Login           string    // player for checkpoint/finish/connect/disconnect
	NickName        string    // display name on connect
	Spectator       bool      // connect only
	CheckpointIndex int       // 0-based split index
	TimeMs          int       // split or finish time; 0 on finish means the run was abandoned
	Map             *MapInfo  // map_begin only
	TS              time.Time // when the host emitted it
	Queued          time.Time // when the engine queue accepted it
}

// Validate checks the fields required by the event kind.
func (e Event) Validate() error { //nolint:gocritic // hugeParam: value semantics match the queue
	switch e.Kind {
	case EventCheckpoint, EventFinish:
		if strings.TrimSpace(e.Login) == "" {
			return fmt.Errorf("%w: %s without login", ErrInvalidEvent, e.Kind)
		}
		if e.TimeMs < 0 || e.CheckpointIndex < 0 {
			return fmt.Errorf("%w: negative time or index", ErrInvalidEvent)
		}
	case EventPlayerConnect, EventPlayerDisconnect:
		if strings.TrimSpace(e.Login) == "" {
			return fmt.Errorf("%w: %s without login", ErrInvalidEvent, e.Kind)
		}
	case EventMapBegin:
		if e.Map == nil || strings.TrimSpace(e.Map.UID) == "" {
			return fmt.Errorf("%w: map_begin without map uid", ErrInvalidEvent)
		}
	case EventMapEnd:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}
