// Package status mirrors session state changes to an MQTT topic so other
// systems can see whether the bot is online.
package status

import (
	"encoding/json"
	"time"
)

// DefaultTopic receives retained state snapshots
const DefaultTopic = "steamtotwitter/session"

// Events carried in a snapshot
const (
	EventStateChange    = "STATE_CHANGE"
	EventDowntimeNotice = "DOWNTIME_NOTICE"
	EventOffline        = "OFFLINE"
)

// Snapshot is one published status
type Snapshot struct {
	Timestamp time.Time
	Event     string
	State     string
	Previous  string
	DownSince time.Time
}

// Publisher publishes snapshots.
type Publisher interface {
	// Publish sends a snapshot; failures must not stop the caller.
	Publish(s Snapshot) error

	// Close disconnects from the broker.
	Close() error
}

// Payload is the JSON document on the topic.
type Payload struct {
	Session SessionPayload `json:"session"`
}

// SessionPayload contains the snapshot details.
type SessionPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	State     string `json:"state"`
	Previous  string `json:"previous,omitempty"`
	DownSince string `json:"down_since,omitempty"`
}

// FormatPayload creates the JSON payload for a snapshot.
func FormatPayload(s Snapshot) ([]byte, error) {
	p := Payload{
		Session: SessionPayload{
			Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
			Event:     s.Event,
			State:     s.State,
			Previous:  s.Previous,
		},
	}
	if !s.DownSince.IsZero() {
		p.Session.DownSince = s.DownSince.UTC().Format(time.RFC3339)
	}
	return json.Marshal(p)
}
