package status

import (
	"context"
	"time"

	"github.com/eshaffer321/steamtotwitter-go/internal/downtime"
	"github.com/eshaffer321/steamtotwitter-go/internal/session"
	"github.com/eshaffer321/steamtotwitter-go/internal/types"
)

const mirrorBuffer = 32

// Mirror queues snapshots from session hooks and publishes them off the
// session loop.
type Mirror struct {
	publisher Publisher
	logger    types.Logger
	now       func() time.Time
	updates   chan Snapshot
}

// NewMirror creates a mirror; call Run to start publishing
func NewMirror(publisher Publisher, logger types.Logger) *Mirror {
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Mirror{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		updates:   make(chan Snapshot, mirrorBuffer),
	}
}

// Hooks wraps next so state changes and notices are mirrored as well
func (m *Mirror) Hooks(next session.Hooks) session.Hooks {
	hooks := next
	hooks.OnStateChange = func(from, to session.State) {
		m.enqueue(Snapshot{Event: EventStateChange, State: to.String(), Previous: from.String()})
		if next.OnStateChange != nil {
			next.OnStateChange(from, to)
		}
	}
	hooks.OnDowntimeNotice = func(notice downtime.Notice, err error) {
		if err == nil {
			m.enqueue(Snapshot{Event: EventDowntimeNotice, State: session.Disconnected.String(), DownSince: notice.DownSince})
		}
		if next.OnDowntimeNotice != nil {
			next.OnDowntimeNotice(notice, err)
		}
	}
	return hooks
}

// enqueue never blocks the session loop; a full queue drops the snapshot
func (m *Mirror) enqueue(s Snapshot) {
	s.Timestamp = m.now()
	select {
	case m.updates <- s:
	default:
		m.logger.Warn("Status queue full, dropping snapshot", "event", s.Event, "state", s.State)
	}
}

// Run publishes queued snapshots until ctx is done
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-m.updates:
			if err := m.publisher.Publish(s); err != nil {
				m.logger.Warn("Failed to publish status", "event", s.Event, "error", err)
			}
		}
	}
}
