package media

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sanctuary/backend/internal/domain"
	"sanctuary/backend/internal/metrics"
)

const (
	DefaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"
	youtubeVideoBatch     = 50
)

type YouTubeConfig struct {
	BaseURL    string
	ChannelID  string
	PageSize   int
	MaxPages   int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// YouTubeCatalog lists a channel's uploads. Search results carry no durations, so
// every page of ids is followed by a videos lookup.
type YouTubeCatalog struct {
	client    *http.Client
	baseURL   string
	channelID string
	pageSize  int
	maxPages  int
	metrics   *metrics.Metrics
}

func NewYouTubeCatalog(cfg YouTubeConfig, m *metrics.Metrics) *YouTubeCatalog {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultYouTubeBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > youtubeVideoBatch {
		pageSize = youtubeVideoBatch
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	return &YouTubeCatalog{
		client:    newHTTPClient(cfg.HTTPClient, cfg.Timeout),
		baseURL:   base,
		channelID: cfg.ChannelID,
		pageSize:  pageSize,
		maxPages:  maxPages,
		metrics:   m,
	}
}

func (c *YouTubeCatalog) Source() string { return "youtube" }

// Mixed is true: the channel holds services, clips and sermons side by side.
func (c *YouTubeCatalog) Mixed() bool { return true }

type ytThumbnail struct {
	URL string `json:"url"`
}

type ytSnippet struct {
	Title                string                 `json:"title"`
	Description          string                 `json:"description"`
	PublishedAt          string                 `json:"publishedAt"`
	LiveBroadcastContent string                 `json:"liveBroadcastContent"`
	Tags                 []string               `json:"tags"`
	Thumbnails           map[string]ytThumbnail `json:"thumbnails"`
}

type ytSearchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}

type ytVideosResponse struct {
	Items []struct {
		ID             string    `json:"id"`
		Snippet        ytSnippet `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

func (c *YouTubeCatalog) ListItems(ctx context.Context, apiKey string, kind domain.MediaType) ([]Item, error) {
	if kind == domain.MediaLivestreams {
		return c.listLivestreams(ctx, apiKey)
	}

	var ids []string
	pageToken := ""
	for page := 0; page < c.maxPages; page++ {
		q := c.searchQuery(apiKey)
		q.Set("maxResults", strconv.Itoa(c.pageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		var res ytSearchResponse
		if err := getJSON(ctx, c.client, c.metrics, c.Source(), c.baseURL+"/search?"+q.Encode(), nil, &res); err != nil {
			return nil, err
		}
		for _, it := range res.Items {
			if it.ID.VideoID != "" {
				ids = append(ids, it.ID.VideoID)
			}
		}
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	items := make([]Item, 0, len(ids))
	for start := 0; start < len(ids); start += youtubeVideoBatch {
		end := min(start+youtubeVideoBatch, len(ids))

		q := url.Values{}
		q.Set("part", "snippet,contentDetails")
		q.Set("id", strings.Join(ids[start:end], ","))
		q.Set("key", apiKey)

		var res ytVideosResponse
		if err := getJSON(ctx, c.client, c.metrics, c.Source(), c.baseURL+"/videos?"+q.Encode(), nil, &res); err != nil {
			return nil, err
		}
		for _, v := range res.Items {
			it := c.item(v.ID, v.Snippet)
			it.DurationCode = v.ContentDetails.Duration
			items = append(items, it)
		}
	}
	return items, nil
}

// listLivestreams asks for an upcoming broadcast first and falls back to one that
// is currently live.
func (c *YouTubeCatalog) listLivestreams(ctx context.Context, apiKey string) ([]Item, error) {
	for _, eventType := range []string{"upcoming", "live"} {
		q := c.searchQuery(apiKey)
		q.Set("eventType", eventType)
		q.Set("maxResults", "1")

		var res ytSearchResponse
		if err := getJSON(ctx, c.client, c.metrics, c.Source(), c.baseURL+"/search?"+q.Encode(), nil, &res); err != nil {
			return nil, err
		}
		var items []Item
		for _, r := range res.Items {
			if r.ID.VideoID == "" {
				continue
			}
			it := c.item(r.ID.VideoID, r.Snippet)
			if it.LiveBroadcastState == "" || it.LiveBroadcastState == "none" {
				it.LiveBroadcastState = eventType
			}
			items = append(items, it)
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	return nil, nil
}

func (c *YouTubeCatalog) searchQuery(apiKey string) url.Values {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("channelId", c.channelID)
	q.Set("order", "date")
	q.Set("type", "video")
	q.Set("key", apiKey)
	return q
}

func (c *YouTubeCatalog) item(id string, s ytSnippet) Item {
	published, _ := domain.ParseInstant(s.PublishedAt)
	return Item{
		ID:                 id,
		Name:               s.Title,
		Overview:           s.Description,
		PublishedAt:        published.Time,
		Path:               "https://www.youtube.com/watch?v=" + url.QueryEscape(id),
		Tags:               s.Tags,
		LiveBroadcastState: s.LiveBroadcastContent,
		ThumbnailURL:       pickThumbnail(s.Thumbnails),
		StreamURL:          "https://www.youtube.com/embed/" + url.PathEscape(id),
	}
}

func pickThumbnail(thumbs map[string]ytThumbnail) string {
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}
