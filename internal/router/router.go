// Package router turns announcement batches into published statuses.
package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/eshaffer321/steamtotwitter-go/internal/messages"
	"github.com/eshaffer321/steamtotwitter-go/internal/types"
	"github.com/eshaffer321/steamtotwitter-go/internal/upstream"
	"github.com/eshaffer321/steamtotwitter-go/pkg/twitter"
)

const (
	// DefaultBrand is removed from group names before display
	DefaultBrand = "Steam"

	announcementURLFormat = "https://steamcommunity.com/gid/%d/announcements/detail/%d"
)

// NameResolver looks up a group's name when the event carries none
type NameResolver interface {
	ClanName(ctx context.Context, clanID uint64) (string, error)
}

// Options configures a Router
type Options struct {
	Publisher twitter.Publisher
	Names     NameResolver
	Brand     string
	Logger    types.Logger

	// OnPublish, if set, is called after every publish with its outcome
	OnPublish func(err error)
}

// Router publishes announcements in the order they arrive
type Router struct {
	publisher twitter.Publisher
	names     NameResolver
	brand     *regexp.Regexp
	logger    types.Logger
	onPublish func(err error)
}

// New creates a Router
func New(opts Options) *Router {
	if opts.Brand == "" {
		opts.Brand = DefaultBrand
	}
	if opts.Logger == nil {
		opts.Logger = types.NopLogger{}
	}
	return &Router{
		publisher: opts.Publisher,
		names:     opts.Names,
		brand:     brandPattern(opts.Brand),
		logger:    opts.Logger,
		onPublish: opts.OnPublish,
	}
}

// Route publishes every announcement in the batch and returns how many
// succeeded. Failures are logged and dropped.
func (r *Router) Route(ctx context.Context, ev upstream.ClanStateEvent) int {
	if len(ev.Announcements) == 0 {
		return 0
	}

	groupName := ev.ClanName
	if groupName == "" && r.names != nil {
		name, err := r.names.ClanName(ctx, ev.ClanID)
		if err != nil {
			r.logger.Warn("Group name lookup failed", "clan_id", ev.ClanID, "error", err)
		}
		groupName = name
	}

	display := ""
	if groupName != "" {
		display = stripBrand(groupName, r.brand)
	}

	published := 0
	for _, a := range ev.Announcements {
		message, err := r.message(display, a.Headline)
		if err != nil {
			r.logger.Error("Failed to build message", "announcement_id", a.ID, "error", err)
			continue
		}
		link := AnnouncementURL(ev.ClanID, a.ID)

		err = r.publisher.Publish(ctx, message, link)
		if r.onPublish != nil {
			r.onPublish(err)
		}
		if err != nil {
			r.logger.Error("Dropping announcement", "announcement_id", a.ID, "error", err)
			continue
		}

		r.logger.Info("Published announcement", "group", groupName, "announcement_id", a.ID, "message", message)
		published++
	}

	return published
}

func (r *Router) message(display, headline string) (string, error) {
	headline = strings.TrimSpace(headline)
	if display == "" || mentions(headline, display, r.brand) {
		return headline, nil
	}
	return messages.Render(messages.Announcement, struct {
		DisplayName string
		Headline    string
	}{display, headline})
}

// mentions reports whether headline already names the group, ignoring case
// and the brand
func mentions(headline, display string, brand *regexp.Regexp) bool {
	h := strings.ToLower(stripBrand(headline, brand))
	return strings.Contains(h, strings.ToLower(display))
}

// brandPattern matches brand case-insensitively; nil for an empty brand
func brandPattern(brand string) *regexp.Regexp {
	if brand == "" {
		return nil
	}
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(brand))
}

// DisplayName removes brand from name, ignoring case, and collapses the
// whitespace left behind. The original name is kept if nothing remains.
func DisplayName(name, brand string) string {
	return stripBrand(name, brandPattern(brand))
}

func stripBrand(name string, brand *regexp.Regexp) string {
	stripped := name
	if brand != nil {
		stripped = brand.ReplaceAllString(name, " ")
	}
	stripped = strings.Join(strings.Fields(stripped), " ")
	if stripped == "" {
		return strings.Join(strings.Fields(name), " ")
	}
	return stripped
}

// AnnouncementURL is the public page of an announcement
func AnnouncementURL(clanID, announcementID uint64) string {
	return fmt.Sprintf(announcementURLFormat, clanID, announcementID)
}
