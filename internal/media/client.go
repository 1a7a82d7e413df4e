package media

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"sanctuary/backend/internal/domain"
)

type Catalog interface {
	Source() string
	// Mixed reports whether items of every kind share one listing, in which case
	// they are run through Classify before being offered as sermons.
	Mixed() bool
	ListItems(ctx context.Context, apiKey string, kind domain.MediaType) ([]Item, error)
}

// KeySource resolves credentials such as the catalog API key.
type KeySource interface {
	GetValue(ctx context.Context, key string) (string, bool)
}

type Client struct {
	catalog Catalog
	keys    KeySource
	keyName string
	loc     *time.Location
	log     *slog.Logger
}

func NewClient(catalog Catalog, keys KeySource, keyName string, loc *time.Location, log *slog.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		catalog: catalog,
		keys:    keys,
		keyName: keyName,
		loc:     loc,
		log:     log.With(slog.String("component", "media"), slog.String("source", catalog.Source())),
	}
}

func (c *Client) apiKey(ctx context.Context) (string, error) {
	if c.keys == nil {
		return "", ErrNoAPIKey
	}
	key, ok := c.keys.GetValue(ctx, c.keyName)
	if !ok || strings.TrimSpace(key) == "" {
		return "", ErrNoAPIKey
	}
	return strings.TrimSpace(key), nil
}

func (c *Client) list(ctx context.Context, kind domain.MediaType) ([]Item, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return nil, err
	}
	items, err := c.catalog.ListItems(ctx, key, kind)
	if err != nil {
		return nil, err
	}

	out := items[:0]
	for _, it := range items {
		if it.ID == "" || it.Path == "" {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out, nil
}

func (c *Client) sermonCandidates(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if c.catalog.Mixed() {
			cl := Classify(it)
			c.log.Debug(
				"catalog item classified",
				slog.String("item_id", it.ID),
				slog.String("title", it.Name),
				slog.Float64("duration_minutes", cl.DurationMinutes),
				slog.Bool("worship_service", cl.WorshipService),
				slog.Bool("sermon_keyword", cl.SermonKeyword),
				slog.Bool("live", cl.Live),
				slog.Bool("is_sermon", cl.IsSermon),
			)
			if !cl.Eligible() {
				continue
			}
		} else if isLive(it.LiveBroadcastState) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// FetchLatestSermon returns the newest item that qualifies as a sermon.
func (c *Client) FetchLatestSermon(ctx context.Context) (domain.Sermon, error) {
	items, err := c.list(ctx, domain.MediaSermons)
	if err != nil {
		return domain.Sermon{}, err
	}
	candidates := c.sermonCandidates(items)
	if len(candidates) == 0 {
		return domain.Sermon{}, ErrNoContent
	}
	return Normalize(candidates[0], domain.MediaSermons, c.loc), nil
}

// FetchLivestream returns the current or next broadcast, preferring one that is
// live right now. A nil result with a nil error means nothing is scheduled.
func (c *Client) FetchLivestream(ctx context.Context) (*domain.Sermon, error) {
	items, err := c.list(ctx, domain.MediaLivestreams)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	pick := items[0]
	for _, it := range items {
		if strings.EqualFold(it.LiveBroadcastState, "live") {
			pick = it
			break
		}
	}
	s := Normalize(pick, domain.MediaLivestreams, c.loc)
	return &s, nil
}

// LatestSermon never fails: errors come back as a placeholder record.
func (c *Client) LatestSermon(ctx context.Context) domain.Sermon {
	s, err := c.FetchLatestSermon(ctx)
	if err != nil {
		c.log.Warn("latest sermon unavailable", slog.Any("err", err))
		return Placeholder(err)
	}
	return s
}

// Sermons lists every normalized item of kind, newest first.
func (c *Client) Sermons(ctx context.Context, kind domain.MediaType) ([]domain.Sermon, error) {
	items, err := c.list(ctx, kind)
	if err != nil {
		return nil, err
	}
	if kind == domain.MediaSermons {
		items = c.sermonCandidates(items)
	}
	out := make([]domain.Sermon, 0, len(items))
	for _, it := range items {
		out = append(out, Normalize(it, kind, c.loc))
	}
	return out, nil
}

// Placeholder converts a fetch error into the record read paths return instead.
func Placeholder(err error) domain.Sermon {
	if err == nil {
		return domain.PlaceholderSermon("", "")
	}
	description := domain.UnavailableMessage
	if errors.Is(err, ErrNoContent) {
		description = domain.NoSermonsMessage
	}
	return domain.PlaceholderSermon(err.Error(), description)
}
