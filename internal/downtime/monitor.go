// Package downtime decides when to announce that the upstream session has
// been down for a while.
package downtime

import (
	"time"

	"github.com/eshaffer321/steamtotwitter-go/internal/messages"
)

const (
	// DefaultCheckInterval is how often an open window is evaluated
	DefaultCheckInterval = 10 * time.Minute

	// DefaultCooldown is the minimum gap between two notices
	DefaultCooldown = 2 * time.Hour

	// StatusLink is appended to every notice
	StatusLink = "https://steamstat.us/"
)

// Window is an interval during which the session is known to be down
type Window struct {
	DownSince time.Time
}

// Notice is a single downtime announcement
type Notice struct {
	DownSince time.Time
	At        time.Time
}

// Minutes is the whole number of minutes between DownSince and At
func (n Notice) Minutes() int {
	return int(n.At.Sub(n.DownSince) / time.Minute)
}

// Message renders the notice text
func (n Notice) Message() (string, error) {
	return messages.Render(messages.Downtime, n)
}

// Monitor tracks the open window and the last notice. It is not safe for
// concurrent use; the session loop owns it.
type Monitor struct {
	cooldown     time.Duration
	window       *Window
	lastNotified time.Time
}

// NewMonitor creates a monitor; a non-positive cooldown selects the default
func NewMonitor(cooldown time.Duration) *Monitor {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Monitor{cooldown: cooldown}
}

// Open starts a window at now. It reports false if one is already open.
func (m *Monitor) Open(now time.Time) bool {
	if m.window != nil {
		return false
	}
	m.window = &Window{DownSince: now}
	return true
}

// Close ends the current window. The cooldown keeps counting from the last
// notice.
func (m *Monitor) Close() {
	m.window = nil
}

// Window returns the open window, if any
func (m *Monitor) Window() (Window, bool) {
	if m.window == nil {
		return Window{}, false
	}
	return *m.window, true
}

// LastNotified returns when the last notice fired
func (m *Monitor) LastNotified() (time.Time, bool) {
	return m.lastNotified, !m.lastNotified.IsZero()
}

// Check returns a notice when a window is open and the cooldown has passed.
// A returned notice is recorded as sent.
func (m *Monitor) Check(now time.Time) (Notice, bool) {
	if m.window == nil {
		return Notice{}, false
	}
	if !m.lastNotified.IsZero() && now.Sub(m.lastNotified) < m.cooldown {
		return Notice{}, false
	}

	m.lastNotified = now
	return Notice{DownSince: m.window.DownSince, At: now}, true
}
