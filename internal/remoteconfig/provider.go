package remoteconfig

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sanctuary/backend/internal/store"
)

const (
	WebsiteTitle         = "website_title"
	WebsiteDescription   = "website_description"
	WebsiteEnabled       = "website_enabled"
	ContactEmail         = "contact_email"
	PrayerRequestEnabled = "prayer_request_enabled"
	LivestreamEnabled    = "livestream_enabled"
	YouTubeAPIKey        = "youtube_api_key"
	JellyfinAPIKey       = "jellyfin_api_key"
	SermonAPIToken       = "sermon_api_token"
)

const DefaultRefreshInterval = time.Minute

var allowed = map[string]bool{
	WebsiteTitle:         true,
	WebsiteDescription:   true,
	WebsiteEnabled:       true,
	ContactEmail:         true,
	PrayerRequestEnabled: true,
	LivestreamEnabled:    true,
	YouTubeAPIKey:        true,
	JellyfinAPIKey:       true,
	SermonAPIToken:       true,
}

// Secrets have no default.
var defaults = map[string]string{
	WebsiteTitle:         "RTSDA",
	WebsiteDescription:   "Real Time Strategy Development Association",
	WebsiteEnabled:       "true",
	ContactEmail:         "contact@rtsda.org",
	PrayerRequestEnabled: "true",
	LivestreamEnabled:    "true",
}

type Options struct {
	RefreshInterval time.Duration
	// Overrides pin values regardless of what the settings table holds.
	Overrides map[string]string
	Now       func() time.Time
}

// Provider serves allow-listed site settings from a periodically refreshed
// snapshot of the settings table.
type Provider struct {
	repo      store.ConfigRepository
	refresh   time.Duration
	overrides map[string]string
	now       func() time.Time
	log       *slog.Logger

	mu       sync.Mutex
	values   map[string]string
	loadedAt time.Time
	loaded   bool
}

func New(repo store.ConfigRepository, opts Options, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	overrides := map[string]string{}
	for k, v := range opts.Overrides {
		if allowed[k] && strings.TrimSpace(v) != "" {
			overrides[k] = v
		}
	}
	return &Provider{
		repo:      repo,
		refresh:   opts.RefreshInterval,
		overrides: overrides,
		now:       opts.Now,
		log:       log.With(slog.String("component", "remoteconfig")),
		values:    map[string]string{},
	}
}

// Refresh reloads the snapshot. On error the previous snapshot stays in place.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reload(ctx)
}

func (p *Provider) reload(ctx context.Context) error {
	if p.repo == nil {
		p.loaded = true
		p.loadedAt = p.now()
		return nil
	}
	rows, err := p.repo.ListSettings(ctx)
	if err != nil {
		// Retry on the next interval rather than on every read.
		p.loadedAt = p.now()
		return err
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		if allowed[row.Key] {
			values[row.Key] = row.Value
		}
	}
	p.values = values
	p.loaded = true
	p.loadedAt = p.now()
	return nil
}

func (p *Provider) snapshotValue(ctx context.Context, key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadedAt.IsZero() || p.now().Sub(p.loadedAt) >= p.refresh {
		if err := p.reload(ctx); err != nil {
			p.log.Warn("settings refresh failed", slog.Any("err", err), slog.Bool("stale", p.loaded))
		}
	}
	v, ok := p.values[key]
	return v, ok
}

// GetValue resolves key through overrides, the settings table and the built-in
// defaults in that order. Keys outside the allow-list are never found.
func (p *Provider) GetValue(ctx context.Context, key string) (string, bool) {
	if !allowed[key] {
		return "", false
	}
	if v, ok := p.overrides[key]; ok {
		return v, true
	}
	if v, ok := p.snapshotValue(ctx, key); ok && strings.TrimSpace(v) != "" {
		return v, true
	}
	v, ok := defaults[key]
	return v, ok
}

func (p *Provider) String(ctx context.Context, key string) string {
	v, _ := p.GetValue(ctx, key)
	return v
}

// Bool reports whether key is set to "true", ignoring case.
func (p *Provider) Bool(ctx context.Context, key string) bool {
	v, ok := p.GetValue(ctx, key)
	return ok && strings.EqualFold(strings.TrimSpace(v), "true")
}
