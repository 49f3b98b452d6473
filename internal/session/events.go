package session

// Events the controller posts to itself. Timer firings and shutdown travel
// through the same queue as transport events so only the loop mutates state.

type reconnectDue struct {
	reason string
}

type forcedReconnectDue struct{}

type downtimeCheckDue struct{}

type shutdownRequested struct{}

func (reconnectDue) EventName() string       { return "reconnect_due" }
func (forcedReconnectDue) EventName() string { return "forced_reconnect_due" }
func (downtimeCheckDue) EventName() string   { return "downtime_check_due" }
func (shutdownRequested) EventName() string  { return "shutdown_requested" }
