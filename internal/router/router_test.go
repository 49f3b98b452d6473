package router

import (
	"context"
	"errors"
	"testing"

	"github.com/eshaffer321/steamtotwitter-go/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPublisher is a mock implementation of twitter.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, message, link string) error {
	args := m.Called(ctx, message, link)
	return args.Error(0)
}

type staticNames map[uint64]string

func (s staticNames) ClanName(_ context.Context, id uint64) (string, error) {
	name, ok := s[id]
	if !ok {
		return "", errors.New("unknown group")
	}
	return name, nil
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name  string
		group string
		want  string
	}{
		{name: "brand in middle", group: "Example Steam Group", want: "Example Group"},
		{name: "brand prefix", group: "Steam Database", want: "Database"},
		{name: "case insensitive", group: "STEAM news", want: "news"},
		{name: "no brand", group: "Valve", want: "Valve"},
		{name: "only brand", group: "Steam", want: "Steam"},
		{name: "extra whitespace", group: "  Team   Steam  Fortress ", want: "Team Fortress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.group, DefaultBrand))
		})
	}
}

func TestAnnouncementURL(t *testing.T) {
	assert.Equal(t,
		"https://steamcommunity.com/gid/103582791429521412/announcements/detail/3046184386071497683",
		AnnouncementURL(103582791429521412, 3046184386071497683))
}

func TestRoute_PrefixesGroupName(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "Example Group: Maintenance tonight", AnnouncementURL(42, 7)).Return(nil)

	r := New(Options{Publisher: pub})
	n := r.Route(context.Background(), upstream.ClanStateEvent{
		ClanID:        42,
		ClanName:      "Example Steam Group",
		Announcements: []upstream.Announcement{{ID: 7, Headline: "Maintenance tonight"}},
	})

	assert.Equal(t, 1, n)
	pub.AssertExpectations(t)
}

func TestRoute_HeadlineAlreadyNamesGroup(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "Example Steam Group update 1.2", mock.Anything).Return(nil)
	pub.On("Publish", mock.Anything, "example group is hiring", mock.Anything).Return(nil)

	r := New(Options{Publisher: pub})
	n := r.Route(context.Background(), upstream.ClanStateEvent{
		ClanID:   42,
		ClanName: "Example Steam Group",
		Announcements: []upstream.Announcement{
			{ID: 1, Headline: "Example Steam Group update 1.2"},
			{ID: 2, Headline: "example group is hiring"},
		},
	})

	assert.Equal(t, 2, n)
	pub.AssertExpectations(t)
}

func TestRoute_OrderAndFailures(t *testing.T) {
	var order []string
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, args.String(1)) }).
		Return(nil).Once()
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, args.String(1)) }).
		Return(errors.New("rate limited")).Once()
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, args.String(1)) }).
		Return(nil).Once()

	var outcomes []error
	r := New(Options{Publisher: pub, OnPublish: func(err error) { outcomes = append(outcomes, err) }})
	n := r.Route(context.Background(), upstream.ClanStateEvent{
		ClanID:   1,
		ClanName: "Group",
		Announcements: []upstream.Announcement{
			{ID: 1, Headline: "one"},
			{ID: 2, Headline: "two"},
			{ID: 3, Headline: "three"},
		},
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"Group: one", "Group: two", "Group: three"}, order)
	require.Len(t, outcomes, 3)
	assert.Nil(t, outcomes[0])
	assert.Error(t, outcomes[1])
	assert.Nil(t, outcomes[2])
}

func TestRoute_EmptyBatch(t *testing.T) {
	pub := new(MockPublisher)

	r := New(Options{Publisher: pub})
	n := r.Route(context.Background(), upstream.ClanStateEvent{ClanID: 1})

	assert.Equal(t, 0, n)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoute_LooksUpMissingName(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "Example Group: Maintenance tonight", mock.Anything).Return(nil)

	r := New(Options{Publisher: pub, Names: staticNames{42: "Example Steam Group"}})
	n := r.Route(context.Background(), upstream.ClanStateEvent{
		ClanID:        42,
		Announcements: []upstream.Announcement{{ID: 7, Headline: "Maintenance tonight"}},
	})

	assert.Equal(t, 1, n)
	pub.AssertExpectations(t)
}

func TestRoute_LookupFailurePublishesHeadline(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "Maintenance tonight", mock.Anything).Return(nil)

	r := New(Options{Publisher: pub, Names: staticNames{}})
	n := r.Route(context.Background(), upstream.ClanStateEvent{
		ClanID:        42,
		Announcements: []upstream.Announcement{{ID: 7, Headline: "Maintenance tonight"}},
	})

	assert.Equal(t, 1, n)
	pub.AssertExpectations(t)
}

func TestRoute_CustomBrandCompiledOnce(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, "Fans: Patch notes", AnnouncementURL(9, 1)).Return(nil)
	pub.On("Publish", mock.Anything, "fans meetup", AnnouncementURL(9, 2)).Return(nil)

	r := New(Options{Publisher: pub, Brand: "Valve.io"})
	require.NotNil(t, r.brand)
	assert.Equal(t, `(?i)Valve\.io`, r.brand.String())

	n := r.Route(context.Background(), upstream.ClanStateEvent{
		ClanID:   9,
		ClanName: "VALVE.IO Fans",
		Announcements: []upstream.Announcement{
			{ID: 1, Headline: "Patch notes"},
			{ID: 2, Headline: "fans meetup"},
		},
	})

	assert.Equal(t, 2, n)
	pub.AssertExpectations(t)
}
