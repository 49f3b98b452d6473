// Package session keeps the upstream session alive: it connects, logs on,
// answers secondary verification, stores device trust, reconnects and
// tracks downtime. All of it runs on one event loop.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/eshaffer321/steamtotwitter-go/internal/auth"
	"github.com/eshaffer321/steamtotwitter-go/internal/clock"
	"github.com/eshaffer321/steamtotwitter-go/internal/downtime"
	"github.com/eshaffer321/steamtotwitter-go/internal/trust"
	"github.com/eshaffer321/steamtotwitter-go/internal/types"
	"github.com/eshaffer321/steamtotwitter-go/internal/upstream"
	"github.com/eshaffer321/steamtotwitter-go/pkg/twitter"
	"github.com/pkg/errors"
)

// Default delays
const (
	DefaultReconnectDelay          = 15 * time.Second
	DefaultLoginRetryDelay         = 2 * time.Second
	DefaultForcedReconnectInterval = 6 * time.Hour

	queueSize = 16
)

// Reconnect reasons reported through Hooks.OnReconnect
const (
	ReasonDisconnect     = "disconnect"
	ReasonConnectFailure = "connect_failure"
	ReasonLoginFailure   = "login_failure"
	ReasonForced         = "forced"
)

var (
	// ErrConnectRejected stops Run when the remote refuses the connection for good
	ErrConnectRejected = errors.New("connection rejected")

	// ErrLoginRejected stops Run under PolicyExit
	ErrLoginRejected = errors.New("logon rejected")
)

// Router receives announcement batches
type Router interface {
	Route(ctx context.Context, ev upstream.ClanStateEvent) int
}

// Hooks observe the controller. They run on the loop goroutine and must
// not block.
type Hooks struct {
	OnStateChange    func(from, to State)
	OnReconnect      func(reason string)
	OnDowntimeOpened func(since time.Time)
	OnDowntimeNotice func(notice downtime.Notice, err error)
}

// Options configures a Controller
type Options struct {
	Transport upstream.Transport
	Router    Router

	// Publisher posts downtime notices; nil disables them
	Publisher twitter.Publisher

	Trust      trust.Store
	Challenges auth.Source

	Username string
	Password string

	LoginFailurePolicy      FailurePolicy
	ReconnectDelay          time.Duration
	LoginRetryDelay         time.Duration
	ForcedReconnectInterval time.Duration
	DowntimeCheckInterval   time.Duration
	DowntimeCooldown        time.Duration

	Clock  clock.Clock
	Logger types.Logger
	Hooks  Hooks
}

// challengeCode is a code waiting to be sent with the next logon
type challengeCode struct {
	kind auth.Kind
	code string
}

// Controller owns the session state machine
type Controller struct {
	opts    Options
	clock   clock.Clock
	logger  types.Logger
	monitor *downtime.Monitor

	state atomic.Int32

	pending  *challengeCode
	rejected *challengeCode

	reconnectTimer *clock.Timer
	forcedTimer    *clock.Timer
	downtimeTimer  *clock.Timer

	queue chan upstream.Event
	done  chan struct{}
}

// New creates a Controller in the Disconnected state
func New(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if opts.Username == "" || opts.Password == "" {
		return nil, errors.New("username and password are required")
	}
	if opts.LoginFailurePolicy == "" {
		opts.LoginFailurePolicy = PolicyRetry
	}
	if !opts.LoginFailurePolicy.Valid() {
		return nil, errors.Errorf("unknown login failure policy %q", opts.LoginFailurePolicy)
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.LoginRetryDelay <= 0 {
		opts.LoginRetryDelay = DefaultLoginRetryDelay
	}
	if opts.ForcedReconnectInterval <= 0 {
		opts.ForcedReconnectInterval = DefaultForcedReconnectInterval
	}
	if opts.DowntimeCheckInterval <= 0 {
		opts.DowntimeCheckInterval = downtime.DefaultCheckInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = types.NopLogger{}
	}
	if opts.Challenges == nil {
		opts.Challenges = auth.Chain{}
	}

	return &Controller{
		opts:    opts,
		clock:   opts.Clock,
		logger:  opts.Logger,
		monitor: downtime.NewMonitor(opts.DowntimeCooldown),
		queue:   make(chan upstream.Event, queueSize),
		done:    make(chan struct{}),
	}, nil
}

// State returns the current state. Safe from any goroutine.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Shutdown asks Run to log off and return
func (c *Controller) Shutdown() {
	c.post(shutdownRequested{})
}

// Run connects and processes events until shutdown or a fatal rejection.
// Cancelling ctx counts as a shutdown request.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.stopTimers()

	c.connect(ctx)

	events := c.opts.Transport.Events()
	for {
		var ev upstream.Event
		select {
		case <-ctx.Done():
			ev = shutdownRequested{}
		case ev = <-c.queue:
		case ev = <-events:
		}

		stop, err := c.handle(ctx, ev)
		if stop {
			return err
		}
	}
}

// handle is the transition table. It reports whether Run should return.
func (c *Controller) handle(ctx context.Context, ev upstream.Event) (bool, error) {
	switch ev := ev.(type) {
	case upstream.ConnectedEvent:
		return c.onConnected(ctx, ev)

	case upstream.LoggedOnEvent:
		return c.onLoggedOn(ctx, ev)

	case upstream.DisconnectedEvent:
		c.onDisconnected(ev)

	case upstream.LoggedOffEvent:
		c.logger.Info("Logged off, reconnecting", "result", ev.Result, "retry_in", c.opts.ReconnectDelay)
		c.setState(LoggedOff)
		c.forcedTimer.Stop()
		c.forcedTimer = nil
		c.scheduleReconnect(c.opts.ReconnectDelay, ReasonDisconnect)

	case upstream.AccountInfoEvent:
		if err := c.opts.Transport.SetPersonaState(upstream.PersonaBusy); err != nil {
			c.logger.Warn("Failed to set persona state", "error", err)
		}

	case upstream.MachineAuthEvent:
		c.onMachineAuth(ev)

	case upstream.ClanStateEvent:
		if c.opts.Router != nil {
			c.opts.Router.Route(ctx, ev)
		}

	case reconnectDue:
		switch c.State() {
		case LoggedOff:
			// the socket may still be open
			if err := c.opts.Transport.Disconnect(); err != nil && !errors.Is(err, upstream.ErrNotConnected) {
				c.logger.Debug("Disconnect before reconnect", "error", err)
			}
			c.connect(ctx)
		case Disconnected:
			c.connect(ctx)
		default:
			c.logger.Debug("Skipping reconnect", "state", c.State())
		}

	case forcedReconnectDue:
		c.onForcedReconnect(ctx)

	case downtimeCheckDue:
		c.onDowntimeCheck(ctx)

	case shutdownRequested:
		c.shutdown()
		return true, nil

	default:
		c.logger.Debug("Ignoring event", "event", ev.EventName())
	}

	return false, nil
}

func (c *Controller) onConnected(ctx context.Context, ev upstream.ConnectedEvent) (bool, error) {
	if ev.Result != upstream.ResultOK {
		c.setState(Disconnected)

		if ev.Result.Permanent() {
			c.logger.Error("Connection rejected permanently", "result", ev.Result)
			return true, errors.Wrapf(ErrConnectRejected, "result %s", ev.Result)
		}

		c.logger.Warn("Could not connect", "result", ev.Result, "retry_in", c.opts.ReconnectDelay)
		c.openDowntime()
		c.scheduleReconnect(c.opts.ReconnectDelay, ReasonConnectFailure)
		return false, nil
	}

	c.logger.Info("Connected, logging on")
	c.setState(LoggingOn)
	c.logOn()
	return false, nil
}

func (c *Controller) logOn() {
	details := upstream.LogOnDetails{
		Username: c.opts.Username,
		Password: c.opts.Password,
	}

	if c.opts.Trust != nil {
		tok, ok, err := c.opts.Trust.Load()
		switch {
		case err != nil:
			c.logger.Warn("Failed to read trust token", "error", err)
		case ok:
			details.SentryFileHash = tok.Hash
		}
	}

	if c.pending != nil {
		switch c.pending.kind {
		case auth.KindEmailCode:
			details.AuthCode = c.pending.code
		case auth.KindTwoFactor:
			details.TwoFactorCode = c.pending.code
		}
	}

	if err := c.opts.Transport.LogOn(details); err != nil {
		// A DisconnectedEvent usually follows; both schedule the same timer
		c.logger.Warn("Failed to send logon", "error", err)
		c.setState(Disconnected)
		c.scheduleReconnect(c.opts.ReconnectDelay, ReasonDisconnect)
	}
}

func challengeKind(r upstream.Result) (auth.Kind, bool) {
	switch r {
	case upstream.ResultAccountLogonDenied, upstream.ResultInvalidLoginAuthCode:
		return auth.KindEmailCode, true
	case upstream.ResultAccountLoginDeniedNeedTwoFactor, upstream.ResultTwoFactorCodeMismatch:
		return auth.KindTwoFactor, true
	}
	return 0, false
}

func (c *Controller) onLoggedOn(ctx context.Context, ev upstream.LoggedOnEvent) (bool, error) {
	if ev.Result == upstream.ResultOK {
		c.logger.Info("Logged on", "server_time", ev.ServerTime.UTC().Format(time.RFC3339))
		c.pending = nil
		c.rejected = nil
		c.setState(LoggedOn)

		c.monitor.Close()
		c.downtimeTimer.Stop()
		c.downtimeTimer = nil

		c.forcedTimer.Stop()
		c.forcedTimer = c.clock.AfterFunc(c.opts.ForcedReconnectInterval, func() {
			c.post(forcedReconnectDue{})
		})
		return false, nil
	}

	if kind, ok := challengeKind(ev.Result); ok {
		return c.onChallenge(ctx, kind, ev)
	}

	c.pending = nil
	c.setState(Disconnected)

	if c.opts.LoginFailurePolicy == PolicyExit && !ev.Result.Retryable() {
		c.logger.Error("Logon rejected, giving up", "result", ev.Result)
		c.teardown()
		return true, errors.Wrapf(ErrLoginRejected, "result %s", ev.Result)
	}

	c.logger.Error("Failed to log on", "result", ev.Result, "retry_in", c.opts.LoginRetryDelay)
	c.openDowntime()
	if err := c.opts.Transport.Disconnect(); err != nil {
		c.logger.Debug("Disconnect after failed logon", "error", err)
	}
	c.scheduleReconnect(c.opts.LoginRetryDelay, ReasonLoginFailure)
	return false, nil
}

// onChallenge blocks the loop until a code is supplied, then logs on again.
// A code the remote refused is never sent a second time.
func (c *Controller) onChallenge(ctx context.Context, kind auth.Kind, ev upstream.LoggedOnEvent) (bool, error) {
	if codeRefused(ev.Result) && c.pending != nil {
		c.logger.Warn("Verification code rejected", "kind", c.pending.kind)
		c.rejected = c.pending
	}
	c.pending = nil

	c.setState(AwaitingChallenge)
	c.logger.Info("Secondary verification required", "kind", kind, "result", ev.Result)

	code, err := c.challengeCode(ctx, kind, ev.EmailDomain)
	if err != nil {
		if ctx.Err() != nil {
			c.shutdown()
			return true, nil
		}
		if errors.Is(err, auth.ErrNoCode) {
			if c.wasRejected(kind) {
				c.retryLogOn(kind)
				return false, nil
			}
			c.logger.Error("No way to answer verification", "kind", kind)
			c.teardown()
			return true, errors.Wrapf(err, "logon needs a %s", kind)
		}

		c.logger.Error("Failed to get verification code", "kind", kind, "error", err)
		c.setState(Disconnected)
		if err := c.opts.Transport.Disconnect(); err != nil {
			c.logger.Debug("Disconnect after failed verification", "error", err)
		}
		c.scheduleReconnect(c.opts.ReconnectDelay, ReasonLoginFailure)
		return false, nil
	}

	if c.wasRejected(kind) && code == c.rejected.code {
		c.retryLogOn(kind)
		return false, nil
	}

	c.pending = &challengeCode{kind: kind, code: code}
	c.setState(LoggingOn)
	c.logOn()
	return false, nil
}

func codeRefused(r upstream.Result) bool {
	return r == upstream.ResultInvalidLoginAuthCode || r == upstream.ResultTwoFactorCodeMismatch
}

func (c *Controller) wasRejected(kind auth.Kind) bool {
	return c.rejected != nil && c.rejected.kind == kind
}

func (c *Controller) challengeCode(ctx context.Context, kind auth.Kind, hint string) (string, error) {
	if ex, ok := c.opts.Challenges.(auth.Excluder); ok && c.wasRejected(kind) {
		return ex.CodeExcept(ctx, kind, hint, c.rejected.code)
	}
	return c.opts.Challenges.Code(ctx, kind, hint)
}

// retryLogOn waits out the login retry delay instead of resending a refused code
func (c *Controller) retryLogOn(kind auth.Kind) {
	c.logger.Warn("No fresh verification code, retrying later", "kind", kind, "retry_in", c.opts.LoginRetryDelay)
	c.setState(Disconnected)
	if err := c.opts.Transport.Disconnect(); err != nil {
		c.logger.Debug("Disconnect after refused code", "error", err)
	}
	c.scheduleReconnect(c.opts.LoginRetryDelay, ReasonLoginFailure)
}

func (c *Controller) onDisconnected(ev upstream.DisconnectedEvent) {
	if ev.UserInitiated {
		c.logger.Debug("Disconnected on request")
		return
	}

	c.logger.Info("Disconnected, reconnecting", "retry_in", c.opts.ReconnectDelay)
	c.setState(Disconnected)

	c.forcedTimer.Stop()
	c.forcedTimer = nil

	c.openDowntime()
	c.scheduleReconnect(c.opts.ReconnectDelay, ReasonDisconnect)
}

func (c *Controller) onForcedReconnect(ctx context.Context) {
	c.forcedTimer = nil
	if c.State() != LoggedOn {
		return
	}

	c.logger.Info("Reconnecting to refresh the session")
	if err := c.opts.Transport.Disconnect(); err != nil {
		c.logger.Warn("Disconnect for forced reconnect failed", "error", err)
	}
	c.setState(Disconnected)
	if c.opts.Hooks.OnReconnect != nil {
		c.opts.Hooks.OnReconnect(ReasonForced)
	}
	c.connect(ctx)
}

func (c *Controller) onMachineAuth(ev upstream.MachineAuthEvent) {
	resp := upstream.MachineAuthResponse{
		JobID:           ev.JobID,
		FileName:        ev.FileName,
		BytesWritten:    len(ev.Data),
		FileSize:        len(ev.Data),
		Offset:          ev.Offset,
		Result:          upstream.ResultOK,
		OneTimePassword: ev.OneTimePassword,
	}

	var err error
	var tok trust.Token
	if c.opts.Trust == nil {
		err = errors.New("no trust store configured")
	} else {
		tok, err = c.opts.Trust.Save(ev.Data)
	}

	if err != nil {
		c.logger.Error("Failed to store trust token", "error", err)
		resp.Result = upstream.ResultFail
		resp.BytesWritten = 0
		resp.LastError = 1
	} else {
		resp.SentryFileHash = tok.Hash
	}

	if err := c.opts.Transport.AcknowledgeMachineAuth(resp); err != nil {
		c.logger.Error("Failed to acknowledge trust token", "job_id", ev.JobID, "error", err)
		return
	}
	c.logger.Info("Trust token acknowledged", "job_id", ev.JobID, "result", resp.Result)
}

func (c *Controller) onDowntimeCheck(ctx context.Context) {
	c.downtimeTimer = nil
	if _, open := c.monitor.Window(); !open {
		return
	}
	c.armDowntimeCheck()

	notice, ok := c.monitor.Check(c.clock.Now())
	if !ok {
		if last, notified := c.monitor.LastNotified(); notified {
			c.logger.Debug("Downtime notice on cooldown", "last_notified", last.UTC().Format(time.RFC3339))
		}
		return
	}

	err := c.publishNotice(ctx, notice)
	if err != nil {
		c.logger.Error("Failed to publish downtime notice", "error", err)
	} else {
		c.logger.Info("Published downtime notice", "down_since", notice.DownSince.UTC().Format(time.RFC3339), "minutes", notice.Minutes())
	}
	if c.opts.Hooks.OnDowntimeNotice != nil {
		c.opts.Hooks.OnDowntimeNotice(notice, err)
	}
}

func (c *Controller) publishNotice(ctx context.Context, notice downtime.Notice) error {
	if c.opts.Publisher == nil {
		return errors.New("no publisher configured")
	}
	msg, err := notice.Message()
	if err != nil {
		return err
	}
	return c.opts.Publisher.Publish(ctx, msg, downtime.StatusLink)
}

func (c *Controller) openDowntime() {
	now := c.clock.Now()
	if !c.monitor.Open(now) {
		return
	}
	c.logger.Info("Downtime window opened", "since", now.UTC().Format(time.RFC3339))
	if c.opts.Hooks.OnDowntimeOpened != nil {
		c.opts.Hooks.OnDowntimeOpened(now)
	}
	c.armDowntimeCheck()
}

func (c *Controller) armDowntimeCheck() {
	c.downtimeTimer.Stop()
	c.downtimeTimer = c.clock.AfterFunc(c.opts.DowntimeCheckInterval, func() {
		c.post(downtimeCheckDue{})
	})
}

func (c *Controller) connect(ctx context.Context) {
	c.setState(Connecting)
	if err := c.opts.Transport.Connect(ctx); err != nil {
		c.logger.Warn("Connect failed", "error", err, "retry_in", c.opts.ReconnectDelay)
		c.setState(Disconnected)
		c.openDowntime()
		c.scheduleReconnect(c.opts.ReconnectDelay, ReasonConnectFailure)
	}
}

// scheduleReconnect replaces any pending reconnect
func (c *Controller) scheduleReconnect(d time.Duration, reason string) {
	c.reconnectTimer.Stop()
	c.reconnectTimer = c.clock.AfterFunc(d, func() {
		c.post(reconnectDue{reason: reason})
	})
	if c.opts.Hooks.OnReconnect != nil {
		c.opts.Hooks.OnReconnect(reason)
	}
}

// shutdown logs off and disconnects; failures are only logged
func (c *Controller) shutdown() {
	c.logger.Info("Shutting down session")
	c.teardown()
}

func (c *Controller) teardown() {
	c.stopTimers()

	if c.State() == LoggedOn {
		if err := c.opts.Transport.LogOff(); err != nil {
			c.logger.Warn("Log off failed", "error", err)
		}
	}
	if err := c.opts.Transport.Disconnect(); err != nil && !errors.Is(err, upstream.ErrNotConnected) {
		c.logger.Warn("Disconnect failed", "error", err)
	}
	c.setState(Disconnected)
}

func (c *Controller) stopTimers() {
	c.reconnectTimer.Stop()
	c.forcedTimer.Stop()
	c.downtimeTimer.Stop()
	c.reconnectTimer, c.forcedTimer, c.downtimeTimer = nil, nil, nil
}

func (c *Controller) setState(to State) {
	from := State(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	c.logger.Debug("State change", "from", from, "to", to)
	if c.opts.Hooks.OnStateChange != nil {
		c.opts.Hooks.OnStateChange(from, to)
	}
}

// post queues an internal event. It gives up once Run has returned.
func (c *Controller) post(ev upstream.Event) {
	select {
	case c.queue <- ev:
	case <-c.done:
	}
}
