// Package upstream defines the persistent session the bot keeps with the
// Steam network: the events it pushes and the calls it accepts.
package upstream

import "time"

// Event is a single item pushed by the session. The concrete types below
// form a closed set; consumers switch on them.
type Event interface {
	EventName() string
}

// ConnectedEvent reports the outcome of a transport-level connect
type ConnectedEvent struct {
	Result Result
}

// DisconnectedEvent reports a lost or closed connection
type DisconnectedEvent struct {
	UserInitiated bool
}

// LoggedOnEvent reports the outcome of a logon attempt
type LoggedOnEvent struct {
	Result     Result
	ServerTime time.Time

	// EmailDomain hints where an emailed code was sent
	EmailDomain string
}

// LoggedOffEvent reports that the remote ended the logon session
type LoggedOffEvent struct {
	Result Result
}

// AccountInfoEvent arrives once after logon
type AccountInfoEvent struct {
	PersonaName string
}

// MachineAuthEvent carries a new device trust blob the remote wants stored
type MachineAuthEvent struct {
	JobID           uint64
	FileName        string
	Offset          int
	TotalSize       int
	Data            []byte
	OneTimePassword OneTimePassword
}

// OneTimePassword is echoed back in the machine auth acknowledgement
type OneTimePassword struct {
	Type       int    `json:"type"`
	Identifier string `json:"identifier"`
}

// Announcement is one group announcement
type Announcement struct {
	ID       uint64 `json:"id"`
	Headline string `json:"headline"`
}

// ClanStateEvent carries a batch of announcements for one group
type ClanStateEvent struct {
	ClanID        uint64
	ClanName      string
	Announcements []Announcement
}

func (ConnectedEvent) EventName() string    { return "connected" }
func (DisconnectedEvent) EventName() string { return "disconnected" }
func (LoggedOnEvent) EventName() string     { return "logged_on" }
func (LoggedOffEvent) EventName() string    { return "logged_off" }
func (AccountInfoEvent) EventName() string  { return "account_info" }
func (MachineAuthEvent) EventName() string  { return "machine_auth" }
func (ClanStateEvent) EventName() string    { return "clan_state" }
