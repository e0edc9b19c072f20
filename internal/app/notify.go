package service

import (
	"context"

	"github.com/okian/laprank/internal/domain/types"
	"github.com/okian/laprank/pkg/logger"
)

// Sink delivers chat lines to the game host.
type Sink interface {
	Broadcast(ctx context.Context, text string) error
	Tell(ctx context.Context, login, text string) error
}

// WindowRenderer is implemented by sinks that can show the live window.
type WindowRenderer interface {
	RenderWindow(ctx context.Context, login string, view types.WindowView) error
}

type note struct {
	login string
	text  string
	view  *types.WindowView
}

// notifier delivers notes in order on its own goroutine so a slow host
// never stalls the loop. Notes are dropped when the buffer is full.
type notifier struct {
	sink   Sink
	ch     chan note
	logger logger.Logger
}

func newNotifier(sink Sink, buffer int, l logger.Logger) *notifier {
	return &notifier{sink: sink, ch: make(chan note, buffer), logger: l.Named("notify")}
}

func (n *notifier) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-n.ch:
			n.deliver(ctx, &m)
		}
	}
}

func (n *notifier) deliver(ctx context.Context, m *note) {
	if n.sink == nil {
		return
	}
	var err error
	switch {
	case m.view != nil:
		if r, ok := n.sink.(WindowRenderer); ok {
			err = r.RenderWindow(ctx, m.login, *m.view)
		}
	case m.login == "":
		err = n.sink.Broadcast(ctx, m.text)
	default:
		err = n.sink.Tell(ctx, m.login, m.text)
	}
	if err != nil && ctx.Err() == nil {
		n.logger.Warn(ctx, "delivery failed", logger.String("login", m.login), logger.Error(err))
	}
}

func (n *notifier) send(m note) {
	select {
	case n.ch <- m:
	default:
		n.logger.Warn(context.Background(), "notification dropped", logger.String("login", m.login))
	}
}

func (n *notifier) broadcast(text string) {
	if text != "" {
		n.send(note{text: text})
	}
}

func (n *notifier) tell(login, text string) {
	if text != "" {
		n.send(note{login: login, text: text})
	}
}

func (n *notifier) render(login string, view *types.WindowView) {
	n.send(note{login: login, view: view})
}
