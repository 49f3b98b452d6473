package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downtimeData struct {
	DownSince time.Time
	Minutes   int
}

type announcementData struct {
	DisplayName string
	Headline    string
}

func TestRender_Downtime(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	got, err := Render(Downtime, downtimeData{
		DownSince: time.Date(2024, 3, 1, 14, 5, 9, 0, loc),
		Minutes:   42,
	})
	require.NoError(t, err)
	assert.Equal(t, "Steam appears to be down since 12:05:09 UTC (42 minutes ago)", got)
}

func TestRender_Announcement(t *testing.T) {
	got, err := Render(Announcement, announcementData{DisplayName: "Example Group", Headline: "Maintenance tonight"})
	require.NoError(t, err)
	assert.Equal(t, "Example Group: Maintenance tonight", got)
}

func TestLoader_Cache(t *testing.T) {
	l := NewLoader()

	first, err := l.Load(Downtime)
	require.NoError(t, err)
	second, err := l.Load(Downtime)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestLoader_Missing(t *testing.T) {
	_, err := NewLoader().Render("nope", nil)
	assert.Error(t, err)
}

func TestLoader_MissingField(t *testing.T) {
	_, err := NewLoader().Render(Announcement, map[string]string{"Headline": "x"})
	assert.Error(t, err)
}

func TestLoader_LoadsEveryTemplate(t *testing.T) {
	l := NewLoader()
	for _, name := range []string{Downtime, Announcement} {
		tmpl, err := l.Load(name)
		require.NoError(t, err, name)
		assert.NotNil(t, tmpl)
	}
}
