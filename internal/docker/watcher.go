package docker

import (
	"context"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/nomadops/nomadmon/internal/model"
)

// eventStream is the slice of the Docker API the watcher consumes
type eventStream interface {
	Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error)
	Close() error
}

// EventWatcher subscribes to container "die" events and republishes
// them as ContainerEvents. The subscription is best-effort: when the
// daemon socket is unavailable or the stream breaks, the watcher keeps
// reconnecting with capped exponential backoff and the rest of the
// monitor carries on.
type EventWatcher struct {
	logger  *zap.Logger
	backoff RetryStrategy
	connect func() (eventStream, error)
	events  chan model.ContainerEvent
}

// NewEventWatcher creates a watcher talking to the local Docker daemon
func NewEventWatcher(logger *zap.Logger) *EventWatcher {
	return &EventWatcher{
		logger:  logger.Named("docker-events"),
		backoff: DefaultBackoff(),
		connect: func() (eventStream, error) {
			return client.NewClientWithOpts(
				client.FromEnv,
				client.WithAPIVersionNegotiation(),
			)
		},
		events: make(chan model.ContainerEvent, 16),
	}
}

// Events returns the stream of terminal container events. The channel
// is closed when Run exits.
func (w *EventWatcher) Events() <-chan model.ContainerEvent {
	return w.events
}

// Run consumes the Docker event stream until ctx is cancelled. It
// never returns an error; stream failures degrade container monitoring
// rather than stopping the process.
func (w *EventWatcher) Run(ctx context.Context) {
	defer close(w.events)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if attempt > 0 {
			delay := w.backoff.NextDelay(attempt - 1)
			w.logger.Info("Reconnecting to Docker event stream",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		cli, err := w.connect()
		if err != nil {
			if attempt == 0 {
				w.logger.Warn("Docker daemon unavailable, container monitoring degraded",
					zap.Error(err))
			}
			attempt++
			continue
		}

		if w.consume(ctx, cli) {
			// At least one event arrived on this connection, so the
			// stream was healthy before it broke.
			attempt = 1
		} else {
			attempt++
		}
		cli.Close()
	}
}

// consume drains one subscription until it fails or ctx is cancelled.
// It reports whether any event was received.
func (w *EventWatcher) consume(ctx context.Context, cli eventStream) bool {
	filterArgs := filters.NewArgs(
		filters.Arg("type", "container"),
		filters.Arg("event", "die"),
	)
	msgCh, errCh := cli.Events(ctx, events.ListOptions{Filters: filterArgs})

	w.logger.Info("Docker event stream connected")
	received := false

	for {
		select {
		case <-ctx.Done():
			return received
		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				w.logger.Warn("Docker event stream error", zap.Error(err))
			}
			return received
		case msg := <-msgCh:
			received = true
			event := toContainerEvent(msg)
			select {
			case w.events <- event:
			case <-ctx.Done():
				return received
			}
		}
	}
}

func toContainerEvent(msg events.Message) model.ContainerEvent {
	name := msg.Actor.Attributes["name"]
	if name == "" {
		name = "unknown"
	}
	exitCode, _ := strconv.Atoi(msg.Actor.Attributes["exitCode"])

	ts := time.Unix(msg.Time, 0)
	if msg.TimeNano > 0 {
		ts = time.Unix(0, msg.TimeNano)
	}

	return model.ContainerEvent{
		Name:      name,
		ExitCode:  exitCode,
		Action:    string(msg.Action),
		Timestamp: ts,
	}
}
