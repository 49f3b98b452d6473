package upstream

import "context"

// LogOnDetails are sent with every logon attempt
type LogOnDetails struct {
	Username string `json:"username"`
	Password string `json:"password"`

	// AuthCode is the code mailed to the account owner
	AuthCode string `json:"auth_code,omitempty"`

	// TwoFactorCode is a time-based one-time code
	TwoFactorCode string `json:"two_factor_code,omitempty"`

	// SentryFileHash is the SHA-1 of the stored device trust blob
	SentryFileHash []byte `json:"sentry_file_hash,omitempty"`
}

// MachineAuthResponse acknowledges a MachineAuthEvent
type MachineAuthResponse struct {
	JobID           uint64          `json:"job_id"`
	FileName        string          `json:"file_name"`
	BytesWritten    int             `json:"bytes_written"`
	FileSize        int             `json:"file_size"`
	Offset          int             `json:"offset"`
	Result          Result          `json:"result"`
	LastError       int             `json:"last_error"`
	OneTimePassword OneTimePassword `json:"one_time_password"`
	SentryFileHash  []byte          `json:"sentry_file_hash"`
}

// PersonaState is the presence shown to friends
type PersonaState int

// Persona states
const (
	PersonaOffline PersonaState = 0
	PersonaOnline  PersonaState = 1
	PersonaBusy    PersonaState = 2
	PersonaAway    PersonaState = 3
)

// Transport is the session connection. Connect and LogOn are asynchronous:
// their outcome arrives as ConnectedEvent and LoggedOnEvent on Events.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	LogOn(details LogOnDetails) error
	LogOff() error
	AcknowledgeMachineAuth(resp MachineAuthResponse) error
	SetPersonaState(state PersonaState) error

	// ClanName looks up a group's display name
	ClanName(ctx context.Context, clanID uint64) (string, error)

	// Events delivers pushed events in order
	Events() <-chan Event
}
