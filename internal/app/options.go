package service

import (
	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/internal/domain/ranking"
	"github.com/okian/laprank/internal/domain/replay"
	"github.com/okian/laprank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithNoteBuffer bounds the outgoing chat/window message buffer.
func WithNoteBuffer(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.noteBuffer = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRankingOptions configures the engine created for every map.
func WithRankingOptions(opts ...ranking.Option) Option {
	return func(s *Service) {
		s.rankingOpts = append(s.rankingOpts, opts...)
	}
}

// WithReplayOptions configures the replay pipeline.
func WithReplayOptions(opts ...replay.Option) Option {
	return func(s *Service) {
		s.replayOpts = append(s.replayOpts, opts...)
	}
}

// WithWindow sets the live window size and how many podium rows it pins.
func WithWindow(size, top int) Option {
	return func(s *Service) {
		if size > 0 && top >= 0 && top < size {
			s.windowSize = size
			s.windowTop = top
		}
	}
}

// WithRecordLimit caps how many authority records are kept for a map. It is
// also the window ceiling while rank data is unknown.
func WithRecordLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recordLimit = n
		}
	}
}

// WithCheckpointDiff toggles the per-checkpoint difference message.
func WithCheckpointDiff(on bool) Option {
	return func(s *Service) {
		s.checkpointDiff = on
	}
}

// WithSummaryCount sets how many records the map-start listing shows.
func WithSummaryCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.summaryCount = n
		}
	}
}

// WithServerInfo sets the static part of the server snapshot.
func WithServerInfo(info model.ServerInfo) Option { //nolint:gocritic // hugeParam: copied once
	return func(s *Service) {
		s.server = info
	}
}
