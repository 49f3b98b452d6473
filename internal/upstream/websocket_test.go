package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gateway(t *testing.T, handle func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, frameType string, body interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Frame{Type: frameType, Body: raw}))
}

// drain reads until the peer goes away
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestWebSocketTransport_ConnectAndPushedEvents(t *testing.T) {
	_, url := gateway(t, func(conn *websocket.Conn) {
		writeFrame(t, conn, FrameLoggedOn, loggedOnBody{Result: ResultOK, ServerTime: 1700000000})
		writeFrame(t, conn, FrameAccountInfo, accountInfoBody{PersonaName: "bot"})
		writeFrame(t, conn, FrameClanState, clanStateBody{
			ClanID:        42,
			Announcements: []Announcement{{ID: 7, Headline: "Maintenance tonight"}},
		})
		writeFrame(t, conn, "unknown_frame", struct{}{})
		writeFrame(t, conn, FrameMachineAuth, machineAuthBody{JobID: 9, FileName: "sentry", Data: []byte{1, 2, 3}, TotalSize: 3})
		drain(conn)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := NewWebSocketTransport(&Options{URL: url})
	require.NoError(t, tr.Connect(ctx))

	assert.Equal(t, ConnectedEvent{Result: ResultOK}, nextEvent(t, tr.Events()))

	loggedOn, ok := nextEvent(t, tr.Events()).(LoggedOnEvent)
	require.True(t, ok)
	assert.Equal(t, ResultOK, loggedOn.Result)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), loggedOn.ServerTime)

	assert.Equal(t, AccountInfoEvent{PersonaName: "bot"}, nextEvent(t, tr.Events()))

	clan, ok := nextEvent(t, tr.Events()).(ClanStateEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(42), clan.ClanID)
	require.Len(t, clan.Announcements, 1)
	assert.Equal(t, "Maintenance tonight", clan.Announcements[0].Headline)

	auth, ok := nextEvent(t, tr.Events()).(MachineAuthEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(9), auth.JobID)
	assert.Equal(t, []byte{1, 2, 3}, auth.Data)
}

func TestWebSocketTransport_SendsFrames(t *testing.T) {
	received := make(chan Frame, 4)
	_, url := gateway(t, func(conn *websocket.Conn) {
		for {
			var frame Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			received <- frame
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := NewWebSocketTransport(&Options{URL: url})
	require.NoError(t, tr.Connect(ctx))
	require.Equal(t, ConnectedEvent{Result: ResultOK}, nextEvent(t, tr.Events()))

	require.NoError(t, tr.LogOn(LogOnDetails{Username: "user", Password: "pass", AuthCode: "ABCDE"}))
	require.NoError(t, tr.SetPersonaState(PersonaBusy))

	frame := <-received
	assert.Equal(t, FrameLogOn, frame.Type)
	var details LogOnDetails
	require.NoError(t, json.Unmarshal(frame.Body, &details))
	assert.Equal(t, "user", details.Username)
	assert.Equal(t, "ABCDE", details.AuthCode)

	frame = <-received
	assert.Equal(t, FramePersonaState, frame.Type)
	assert.JSONEq(t, `{"state":2}`, string(frame.Body))
}

func TestWebSocketTransport_ClanName(t *testing.T) {
	_, url := gateway(t, func(conn *websocket.Conn) {
		for {
			var frame Frame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame.Type != FrameClanNameRequest {
				continue
			}
			var req clanNameRequestBody
			if err := json.Unmarshal(frame.Body, &req); err != nil {
				return
			}
			writeFrame(t, conn, FrameClanNameResponse, clanNameResponseBody{RequestID: req.RequestID, Name: "Example Steam Group"})
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := NewWebSocketTransport(&Options{URL: url})
	require.NoError(t, tr.Connect(ctx))
	require.Equal(t, ConnectedEvent{Result: ResultOK}, nextEvent(t, tr.Events()))

	name, err := tr.ClanName(ctx, 103582791429521412)
	require.NoError(t, err)
	assert.Equal(t, "Example Steam Group", name)
}

func TestWebSocketTransport_ClanNameTimeout(t *testing.T) {
	_, url := gateway(t, drain)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := NewWebSocketTransport(&Options{URL: url, LookupTimeout: 50 * time.Millisecond})
	require.NoError(t, tr.Connect(ctx))
	require.Equal(t, ConnectedEvent{Result: ResultOK}, nextEvent(t, tr.Events()))

	_, err := tr.ClanName(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWebSocketTransport_NotConnected(t *testing.T) {
	tr := NewWebSocketTransport(nil)

	assert.ErrorIs(t, tr.LogOn(LogOnDetails{}), ErrNotConnected)
	assert.ErrorIs(t, tr.Disconnect(), ErrNotConnected)
	_, err := tr.ClanName(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestWebSocketTransport_Disconnect(t *testing.T) {
	_, url := gateway(t, drain)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := NewWebSocketTransport(&Options{URL: url})
	require.NoError(t, tr.Connect(ctx))
	require.Equal(t, ConnectedEvent{Result: ResultOK}, nextEvent(t, tr.Events()))

	require.NoError(t, tr.Disconnect())
	assert.Equal(t, DisconnectedEvent{UserInitiated: true}, nextEvent(t, tr.Events()))
}

func TestWebSocketTransport_RemoteClose(t *testing.T) {
	_, url := gateway(t, func(conn *websocket.Conn) {})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := NewWebSocketTransport(&Options{URL: url})
	require.NoError(t, tr.Connect(ctx))
	require.Equal(t, ConnectedEvent{Result: ResultOK}, nextEvent(t, tr.Events()))
	assert.Equal(t, DisconnectedEvent{UserInitiated: false}, nextEvent(t, tr.Events()))
}

func TestWebSocketTransport_DialFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   Result
	}{
		{name: "upgrade required", status: http.StatusUpgradeRequired, want: ResultInvalidProtocolVersion},
		{name: "service unavailable", status: http.StatusServiceUnavailable, want: ResultServiceUnavailable},
		{name: "forbidden", status: http.StatusForbidden, want: ResultFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			tr := NewWebSocketTransport(&Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
			require.NoError(t, tr.Connect(ctx))
			assert.Equal(t, ConnectedEvent{Result: tt.want}, nextEvent(t, tr.Events()))
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		tr := NewWebSocketTransport(&Options{URL: url})
		require.NoError(t, tr.Connect(ctx))
		assert.Equal(t, ConnectedEvent{Result: ResultNoConnection}, nextEvent(t, tr.Events()))
	})
}

func TestResult(t *testing.T) {
	assert.Equal(t, "InvalidPassword", ResultInvalidPassword.String())
	assert.Equal(t, "Result(999)", Result(999).String())

	assert.True(t, ResultInvalidProtocolVersion.Permanent())
	assert.False(t, ResultServiceUnavailable.Permanent())

	assert.False(t, ResultInvalidPassword.Retryable())
	assert.True(t, ResultServiceUnavailable.Retryable())
	assert.True(t, ResultTryAnotherCM.Retryable())
}
