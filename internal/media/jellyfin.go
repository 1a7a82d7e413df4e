package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"sanctuary/backend/internal/domain"
	"sanctuary/backend/internal/metrics"
)

type JellyfinConfig struct {
	BaseURL    string
	ClientName string
	DeviceID   string
	PageSize   int
	MaxPages   int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// JellyfinCatalog reads a media server that keeps sermons and livestream
// recordings in separate libraries.
type JellyfinCatalog struct {
	client     *http.Client
	baseURL    string
	clientName string
	deviceID   string
	pageSize   int
	maxPages   int
	metrics    *metrics.Metrics

	mu        sync.Mutex
	libraries map[domain.MediaType]string
}

func NewJellyfinCatalog(cfg JellyfinConfig, m *metrics.Metrics) *JellyfinCatalog {
	clientName := cfg.ClientName
	if clientName == "" {
		clientName = "Sanctuary"
	}
	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = "sanctuary-server"
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 20
	}
	return &JellyfinCatalog{
		client:     newHTTPClient(cfg.HTTPClient, cfg.Timeout),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		clientName: clientName,
		deviceID:   deviceID,
		pageSize:   pageSize,
		maxPages:   maxPages,
		metrics:    m,
		libraries:  make(map[domain.MediaType]string),
	}
}

func (c *JellyfinCatalog) Source() string { return "jellyfin" }

func (c *JellyfinCatalog) Mixed() bool { return false }

type jfLibrariesResponse struct {
	Items []struct {
		ID   string `json:"Id"`
		Name string `json:"Name"`
		Path string `json:"Path"`
	} `json:"Items"`
}

type jfItem struct {
	ID           string   `json:"Id"`
	Name         string   `json:"Name"`
	Tags         []string `json:"Tags"`
	PremiereDate string   `json:"PremiereDate"`
	DateCreated  string   `json:"DateCreated"`
	Overview     string   `json:"Overview"`
	Path         string   `json:"Path"`
	RunTimeTicks int64    `json:"RunTimeTicks"`
}

type jfItemsResponse struct {
	Items            []jfItem `json:"Items"`
	TotalRecordCount int      `json:"TotalRecordCount"`
}

func (c *JellyfinCatalog) header(apiKey string) http.Header {
	h := http.Header{}
	h.Set("X-MediaBrowser-Token", apiKey)
	h.Set("X-Emby-Authorization", fmt.Sprintf(
		`MediaBrowser Client=%q, Device="Server", DeviceId=%q, Version="1.0.0", Token=%q`,
		c.clientName, c.deviceID, apiKey,
	))
	return h
}

func (c *JellyfinCatalog) libraryID(ctx context.Context, apiKey string, kind domain.MediaType) (string, error) {
	c.mu.Lock()
	id, ok := c.libraries[kind]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var res jfLibrariesResponse
	if err := getJSON(ctx, c.client, c.metrics, c.Source(), c.baseURL+"/Library/MediaFolders", c.header(apiKey), &res); err != nil {
		return "", err
	}

	term := "sermon"
	if kind == domain.MediaLivestreams {
		term = "live"
	}
	for _, lib := range res.Items {
		if strings.Contains(strings.ToLower(lib.Name), term) || strings.Contains(strings.ToLower(lib.Path), term) {
			c.mu.Lock()
			c.libraries[kind] = lib.ID
			c.mu.Unlock()
			return lib.ID, nil
		}
	}
	return "", fmt.Errorf("%s: no %s library: %w", c.Source(), kind, ErrNoContent)
}

func (c *JellyfinCatalog) ListItems(ctx context.Context, apiKey string, kind domain.MediaType) ([]Item, error) {
	libraryID, err := c.libraryID(ctx, apiKey, kind)
	if err != nil {
		return nil, err
	}

	var items []Item
	start := 0
	for page := 0; page < c.maxPages; page++ {
		q := url.Values{}
		q.Set("ParentId", libraryID)
		q.Set("Recursive", "true")
		q.Set("IncludeItemTypes", "Movie,Video,Episode")
		q.Set("SortBy", "DateCreated")
		q.Set("SortOrder", "Descending")
		q.Set("Fields", "Path,PremiereDate,ProductionYear,Overview,DateCreated,Tags")
		q.Set("StartIndex", strconv.Itoa(start))
		q.Set("Limit", strconv.Itoa(c.pageSize))

		var res jfItemsResponse
		if err := getJSON(ctx, c.client, c.metrics, c.Source(), c.baseURL+"/Items?"+q.Encode(), c.header(apiKey), &res); err != nil {
			return nil, err
		}
		for _, raw := range res.Items {
			if !playableFile(raw.Path) {
				continue
			}
			items = append(items, c.item(raw, apiKey))
		}

		start += len(res.Items)
		if len(res.Items) == 0 || start >= res.TotalRecordCount {
			break
		}
	}
	return items, nil
}

func playableFile(path string) bool {
	p := strings.ToLower(path)
	return strings.HasSuffix(p, ".mp4") || strings.HasSuffix(p, ".mov")
}

func (c *JellyfinCatalog) item(raw jfItem, apiKey string) Item {
	published, err := domain.ParseInstant(raw.PremiereDate)
	if err != nil || published.IsZero() {
		published, _ = domain.ParseInstant(raw.DateCreated)
	}

	stream := url.Values{}
	stream.Set("static", "true")
	stream.Set("mediaSourceId", raw.ID)
	stream.Set("api_key", apiKey)

	thumb := url.Values{}
	thumb.Set("api_key", apiKey)

	// RunTimeTicks are 100ns units.
	return Item{
		ID:           raw.ID,
		Name:         raw.Name,
		Overview:     raw.Overview,
		PublishedAt:  published.Time,
		Path:         raw.Path,
		Tags:         raw.Tags,
		DurationCode: DurationCode(time.Duration(raw.RunTimeTicks) * 100),
		ThumbnailURL: c.baseURL + "/Items/" + url.PathEscape(raw.ID) + "/Images/Primary?" + thumb.Encode(),
		StreamURL:    c.baseURL + "/Videos/" + url.PathEscape(raw.ID) + "/stream?" + stream.Encode(),
	}
}
