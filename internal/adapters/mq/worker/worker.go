// Package worker runs the engine's single event loop. Events from the
// inbound queue and tasks posted by background work are handled one at a
// time on the same goroutine, so handlers never race each other.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/pkg/logger"
	"github.com/okian/laprank/pkg/metrics"
)

const (
	defaultTaskBuffer    = 256
	defaultStatsInterval = 5 * time.Second
)

// ErrStopped is returned by Post once the loop has exited.
var ErrStopped = errors.New("worker stopped")

// Source delivers inbound events.
type Source interface {
	Events() <-chan model.Event
	Dequeued(e *model.Event)
}

// Handler processes one inbound event.
type Handler interface {
	HandleEvent(ctx context.Context, e model.Event) error
}

// Task is a continuation run on the loop.
type Task func(ctx context.Context)

// Worker is a single-goroutine event loop.
type Worker struct {
	source  Source
	handler Handler
	name    string

	tasks         chan Task
	taskBuffer    int
	statsInterval time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// New creates a worker; call Run to start it.
func New(source Source, handler Handler, opts ...Option) *Worker {
	w := &Worker{
		source:        source,
		handler:       handler,
		name:          "engine",
		taskBuffer:    defaultTaskBuffer,
		statsInterval: defaultStatsInterval,
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.tasks = make(chan Task, w.taskBuffer)
	if w.logger == nil {
		w.logger = logger.Get().Named("worker").Named(w.name)
	}
	return w
}

// Run processes events and tasks until ctx is done, Shutdown is called or
// the source is closed.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	var stats <-chan time.Time
	if w.statsInterval > 0 {
		t := time.NewTicker(w.statsInterval)
		defer t.Stop()
		stats = t.C
	}

	events := w.source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case task := <-w.tasks:
			task(ctx)
		case e, ok := <-events:
			if !ok {
				return
			}
			w.source.Dequeued(&e)
			w.process(ctx, e)
		case <-stats:
			sampleRuntime()
		}
	}
}

func (w *Worker) process(ctx context.Context, e model.Event) { //nolint:gocritic // hugeParam: events travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.handler.HandleEvent(ctx, e); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", string(e.Kind))
		w.logger.Error(ctx, "event failed",
			logger.String("eventID", e.EventID),
			logger.String("kind", string(e.Kind)),
			logger.Error(err),
		)
		return
	}
	metrics.RecordEventProcessed(string(e.Kind))
}

// Post schedules task on the loop. It blocks while the task buffer is full.
func (w *Worker) Post(ctx context.Context, task Task) error {
	select {
	case <-w.done:
		return ErrStopped
	default:
	}
	select {
	case w.tasks <- task:
		return nil
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the loop and waits for it to exit.
func (w *Worker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func sampleRuntime() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		metrics.RecordSystemGCPauseTime(float64(m.PauseNs[(m.NumGC+255)%256]) / float64(time.Millisecond))
	}
}
