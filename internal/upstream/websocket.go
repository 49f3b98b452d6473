package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/eshaffer321/steamtotwitter-go/internal/types"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	// DefaultGatewayURL is where the session gateway listens by default
	DefaultGatewayURL = "ws://127.0.0.1:8765/session"

	defaultHandshakeTimeout = 15 * time.Second
	defaultLookupTimeout    = 10 * time.Second
	writeTimeout            = 10 * time.Second
	eventBuffer             = 64
)

// ErrNotConnected is returned by calls made without a live connection
var ErrNotConnected = errors.New("not connected")

// Frame is the envelope of every message on the gateway socket
type Frame struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Frame types
const (
	FrameLogOn               = "logon"
	FrameLogOff              = "logoff"
	FrameMachineAuthResponse = "machine_auth_response"
	FramePersonaState        = "persona_state"
	FrameClanNameRequest     = "clan_name_request"

	FrameLoggedOn         = "logged_on"
	FrameLoggedOff        = "logged_off"
	FrameAccountInfo      = "account_info"
	FrameMachineAuth      = "machine_auth"
	FrameClanState        = "clan_state"
	FrameClanNameResponse = "clan_name_response"
)

type loggedOnBody struct {
	Result      Result `json:"result"`
	ServerTime  int64  `json:"server_time"`
	EmailDomain string `json:"email_domain,omitempty"`
}

type loggedOffBody struct {
	Result Result `json:"result"`
}

type accountInfoBody struct {
	PersonaName string `json:"persona_name"`
}

type machineAuthBody struct {
	JobID           uint64          `json:"job_id"`
	FileName        string          `json:"file_name"`
	Offset          int             `json:"offset"`
	TotalSize       int             `json:"total_size"`
	Data            []byte          `json:"data"`
	OneTimePassword OneTimePassword `json:"one_time_password"`
}

type clanStateBody struct {
	ClanID        uint64         `json:"clan_id"`
	ClanName      string         `json:"clan_name,omitempty"`
	Announcements []Announcement `json:"announcements"`
}

type clanNameRequestBody struct {
	RequestID uint64 `json:"request_id"`
	ClanID    uint64 `json:"clan_id"`
}

type clanNameResponseBody struct {
	RequestID uint64 `json:"request_id"`
	Name      string `json:"name"`
}

type personaStateBody struct {
	State PersonaState `json:"state"`
}

// Options for the WebSocket transport
type Options struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	LookupTimeout    time.Duration
	Logger           types.Logger
}

// WebSocketTransport speaks JSON frames to a session gateway
type WebSocketTransport struct {
	url           string
	header        http.Header
	dialer        *websocket.Dialer
	lookupTimeout time.Duration
	logger        types.Logger
	events        chan Event

	mu      sync.Mutex
	conn    *connection
	nextID  uint64
	pending map[uint64]chan string
}

// connection is one dialed socket
type connection struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closing bool
	closed  chan struct{}
}

// NewWebSocketTransport creates a transport; nothing is dialed until Connect
func NewWebSocketTransport(opts *Options) *WebSocketTransport {
	if opts == nil {
		opts = &Options{}
	}
	if opts.URL == "" {
		opts.URL = DefaultGatewayURL
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = defaultLookupTimeout
	}
	if opts.Logger == nil {
		opts.Logger = types.NopLogger{}
	}

	return &WebSocketTransport{
		url:           opts.URL,
		header:        opts.Header,
		dialer:        &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout, Proxy: http.ProxyFromEnvironment},
		lookupTimeout: opts.LookupTimeout,
		logger:        opts.Logger,
		events:        make(chan Event, eventBuffer),
		pending:       make(map[uint64]chan string),
	}
}

// Events delivers pushed events
func (t *WebSocketTransport) Events() <-chan Event {
	return t.events
}

// Connect dials in the background and reports the outcome as a ConnectedEvent.
// Goroutines started here exit once ctx is done.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	go t.dial(ctx)
	return nil
}

func (t *WebSocketTransport) dial(ctx context.Context) {
	ws, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		result := dialResult(resp, err)
		t.logger.Warn("Gateway dial failed", "url", t.url, "result", result, "error", err)
		t.emit(ctx, ConnectedEvent{Result: result})
		return
	}

	c := &connection{ws: ws, closed: make(chan struct{})}

	t.mu.Lock()
	old := t.conn
	t.conn = c
	t.mu.Unlock()
	if old != nil {
		old.close(true)
	}

	go func() {
		select {
		case <-ctx.Done():
			c.close(true)
		case <-c.closed:
		}
	}()

	t.emit(ctx, ConnectedEvent{Result: ResultOK})
	t.readLoop(ctx, c)
}

func dialResult(resp *http.Response, err error) Result {
	if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
		switch resp.StatusCode {
		case http.StatusUpgradeRequired:
			return ResultInvalidProtocolVersion
		case http.StatusServiceUnavailable:
			return ResultServiceUnavailable
		case http.StatusTooManyRequests:
			return ResultRateLimitExceeded
		}
		return ResultFail
	}
	return ResultNoConnection
}

func (t *WebSocketTransport) readLoop(ctx context.Context, c *connection) {
	defer func() {
		userInitiated := c.close(false)

		t.mu.Lock()
		if t.conn == c {
			t.conn = nil
		}
		t.mu.Unlock()

		t.emit(ctx, DisconnectedEvent{UserInitiated: userInitiated})
	}()

	for {
		var frame Frame
		if err := c.ws.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Debug("Gateway read ended", "error", err)
			}
			return
		}

		ev, err := t.decode(frame)
		if err != nil {
			t.logger.Warn("Dropping malformed frame", "type", frame.Type, "error", err)
			continue
		}
		if ev != nil {
			t.emit(ctx, ev)
		}
	}
}

// decode turns a frame into an event. Lookup replies are routed to their
// waiter and yield no event.
func (t *WebSocketTransport) decode(frame Frame) (Event, error) {
	switch frame.Type {
	case FrameLoggedOn:
		var body loggedOnBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return nil, err
		}
		ev := LoggedOnEvent{Result: body.Result, EmailDomain: body.EmailDomain}
		if body.ServerTime > 0 {
			ev.ServerTime = time.Unix(body.ServerTime, 0).UTC()
		}
		return ev, nil

	case FrameLoggedOff:
		var body loggedOffBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return nil, err
		}
		return LoggedOffEvent{Result: body.Result}, nil

	case FrameAccountInfo:
		var body accountInfoBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return nil, err
		}
		return AccountInfoEvent{PersonaName: body.PersonaName}, nil

	case FrameMachineAuth:
		var body machineAuthBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return nil, err
		}
		return MachineAuthEvent{
			JobID:           body.JobID,
			FileName:        body.FileName,
			Offset:          body.Offset,
			TotalSize:       body.TotalSize,
			Data:            body.Data,
			OneTimePassword: body.OneTimePassword,
		}, nil

	case FrameClanState:
		var body clanStateBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return nil, err
		}
		return ClanStateEvent{ClanID: body.ClanID, ClanName: body.ClanName, Announcements: body.Announcements}, nil

	case FrameClanNameResponse:
		var body clanNameResponseBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return nil, err
		}
		t.mu.Lock()
		waiter, ok := t.pending[body.RequestID]
		delete(t.pending, body.RequestID)
		t.mu.Unlock()
		if ok {
			waiter <- body.Name
		}
		return nil, nil
	}

	t.logger.Debug("Ignoring frame", "type", frame.Type)
	return nil, nil
}

func (t *WebSocketTransport) emit(ctx context.Context, ev Event) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

// Disconnect closes the current connection. The resulting DisconnectedEvent
// is marked as user initiated.
func (t *WebSocketTransport) Disconnect() error {
	t.mu.Lock()
	c := t.conn
	t.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}
	c.close(true)
	return nil
}

// LogOn sends the logon request
func (t *WebSocketTransport) LogOn(details LogOnDetails) error {
	return t.send(FrameLogOn, details)
}

// LogOff ends the logon session but keeps the socket
func (t *WebSocketTransport) LogOff() error {
	return t.send(FrameLogOff, struct{}{})
}

// AcknowledgeMachineAuth replies to a MachineAuthEvent
func (t *WebSocketTransport) AcknowledgeMachineAuth(resp MachineAuthResponse) error {
	return t.send(FrameMachineAuthResponse, resp)
}

// SetPersonaState changes the presence
func (t *WebSocketTransport) SetPersonaState(state PersonaState) error {
	return t.send(FramePersonaState, personaStateBody{State: state})
}

// ClanName asks the gateway for a group's name and waits for the reply
func (t *WebSocketTransport) ClanName(ctx context.Context, clanID uint64) (string, error) {
	waiter := make(chan string, 1)

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.pending[id] = waiter
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if err := t.send(FrameClanNameRequest, clanNameRequestBody{RequestID: id, ClanID: clanID}); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, t.lookupTimeout)
	defer cancel()

	select {
	case name := <-waiter:
		return name, nil
	case <-ctx.Done():
		return "", errors.Wrapf(ctx.Err(), "clan name lookup for %d", clanID)
	}
}

func (t *WebSocketTransport) send(frameType string, body interface{}) error {
	t.mu.Lock()
	c := t.conn
	t.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", frameType)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(Frame{Type: frameType, Body: raw}); err != nil {
		return errors.Wrapf(err, "failed to send %s", frameType)
	}
	return nil
}

// close shuts the socket once. byUser marks the close as requested locally;
// the return value reports whether any close so far was requested locally.
func (c *connection) close(byUser bool) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return c.closing
	default:
	}

	c.closing = byUser
	close(c.closed)
	if byUser {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}
	_ = c.ws.Close()
	return c.closing
}

var _ Transport = (*WebSocketTransport)(nil)
