package upstream

import (
	"context"
	"sync"
)

// FakeTransport records calls for test assertions. Tests push events with
// Push; nothing is emitted on its own.
type FakeTransport struct {
	mu sync.Mutex

	// Connects counts Connect calls.
	Connects int

	// Disconnects counts Disconnect calls.
	Disconnects int

	// LogOns contains every logon request, in order.
	LogOns []LogOnDetails

	// LogOffs counts LogOff calls.
	LogOffs int

	// Acks contains every machine auth acknowledgement.
	Acks []MachineAuthResponse

	// PersonaStates contains every presence change.
	PersonaStates []PersonaState

	// ClanNames maps group id to the name ClanName returns.
	ClanNames map[uint64]string

	// ClanNameError, if set, will be returned by ClanName.
	ClanNameError error

	// LogOnError, if set, will be returned by LogOn.
	LogOnError error

	// OnConnect, if set, runs after each Connect is recorded.
	OnConnect func()

	events chan Event
}

// NewFakeTransport creates a FakeTransport for testing.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		ClanNames: make(map[uint64]string),
		events:    make(chan Event, eventBuffer),
	}
}

// Push queues an event for the consumer.
func (f *FakeTransport) Push(ev Event) {
	f.events <- ev
}

// Events delivers pushed events.
func (f *FakeTransport) Events() <-chan Event {
	return f.events
}

// Connect records the call.
func (f *FakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.Connects++
	hook := f.OnConnect
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// Disconnect records the call.
func (f *FakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Disconnects++
	return nil
}

// LogOn records the logon details.
func (f *FakeTransport) LogOn(details LogOnDetails) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LogOnError != nil {
		return f.LogOnError
	}
	f.LogOns = append(f.LogOns, details)
	return nil
}

// LogOff records the call.
func (f *FakeTransport) LogOff() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LogOffs++
	return nil
}

// AcknowledgeMachineAuth records the acknowledgement.
func (f *FakeTransport) AcknowledgeMachineAuth(resp MachineAuthResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Acks = append(f.Acks, resp)
	return nil
}

// SetPersonaState records the presence change.
func (f *FakeTransport) SetPersonaState(state PersonaState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PersonaStates = append(f.PersonaStates, state)
	return nil
}

// ClanName returns the configured name.
func (f *FakeTransport) ClanName(ctx context.Context, clanID uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ClanNameError != nil {
		return "", f.ClanNameError
	}
	return f.ClanNames[clanID], nil
}

// FakeCalls is a point-in-time copy of what a FakeTransport recorded.
type FakeCalls struct {
	Connects      int
	Disconnects   int
	LogOns        []LogOnDetails
	LogOffs       int
	Acks          []MachineAuthResponse
	PersonaStates []PersonaState
}

// Snapshot returns a copy of the recorded calls that is safe to inspect
// while the consumer is running.
func (f *FakeTransport) Snapshot() FakeCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FakeCalls{
		Connects:      f.Connects,
		Disconnects:   f.Disconnects,
		LogOns:        append([]LogOnDetails(nil), f.LogOns...),
		LogOffs:       f.LogOffs,
		Acks:          append([]MachineAuthResponse(nil), f.Acks...),
		PersonaStates: append([]PersonaState(nil), f.PersonaStates...),
	}
}

var _ Transport = (*FakeTransport)(nil)
