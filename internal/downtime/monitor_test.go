package downtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMonitor_OpenOnce(t *testing.T) {
	m := NewMonitor(0)

	assert.True(t, m.Open(t0))
	assert.False(t, m.Open(t0.Add(time.Minute)))

	w, ok := m.Window()
	require.True(t, ok)
	assert.Equal(t, t0, w.DownSince)
}

func TestMonitor_CheckWithoutWindow(t *testing.T) {
	m := NewMonitor(0)

	_, ok := m.Check(t0)
	assert.False(t, ok)
}

func TestMonitor_Cooldown(t *testing.T) {
	m := NewMonitor(2 * time.Hour)
	m.Open(t0)

	notice, ok := m.Check(t0.Add(10 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, 10, notice.Minutes())

	for i := 2; i < 12; i++ {
		_, ok = m.Check(t0.Add(time.Duration(i) * 10 * time.Minute))
		assert.False(t, ok, "check %d inside cooldown", i)
	}

	notice, ok = m.Check(t0.Add(130 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, 130, notice.Minutes())
	assert.Equal(t, t0, notice.DownSince)
}

func TestMonitor_CooldownSurvivesClose(t *testing.T) {
	m := NewMonitor(2 * time.Hour)
	m.Open(t0)
	_, ok := m.Check(t0.Add(10 * time.Minute))
	require.True(t, ok)

	m.Close()
	_, open := m.Window()
	assert.False(t, open)

	m.Open(t0.Add(30 * time.Minute))
	_, ok = m.Check(t0.Add(40 * time.Minute))
	assert.False(t, ok)

	notice, ok := m.Check(t0.Add(130 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, t0.Add(30*time.Minute), notice.DownSince)
	assert.Equal(t, 100, notice.Minutes())
}

func TestMonitor_LastNotified(t *testing.T) {
	m := NewMonitor(2 * time.Hour)
	_, ok := m.LastNotified()
	assert.False(t, ok)

	m.Open(t0)
	_, ok = m.Check(t0.Add(10 * time.Minute))
	require.True(t, ok)
	m.Close()

	last, ok := m.LastNotified()
	require.True(t, ok)
	assert.Equal(t, t0.Add(10*time.Minute), last)
}

func TestNotice_Message(t *testing.T) {
	n := Notice{DownSince: t0, At: t0.Add(95*time.Minute + 30*time.Second)}

	msg, err := n.Message()
	require.NoError(t, err)
	assert.Equal(t, "Steam appears to be down since 12:00:00 UTC (95 minutes ago)", msg)
}
