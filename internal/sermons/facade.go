package sermons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sanctuary/backend/internal/media"
	"sanctuary/backend/internal/metrics"
)

var ErrUnauthorized = errors.New("sermons: authentication required")

const (
	DefaultTokenKey = "sermon_api_token"
	untitledSermon  = "Untitled Sermon"
	unknownSpeaker  = "Unknown Speaker"
	facadeSource    = "facade"
)

type Sermon struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Speaker     string   `json:"speaker"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	VideoURL    string   `json:"video_url"`
	Tags        []string `json:"tags"`
}

// Browser walks a sermon archive by year, then month.
type Browser interface {
	Years(ctx context.Context) ([]string, error)
	Months(ctx context.Context, year string) ([]string, error)
	Sermons(ctx context.Context, year, month string) ([]Sermon, error)
}

type FacadeConfig struct {
	BaseURL    string
	TokenKey   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// FacadeClient talks to the sermon archive REST API.
type FacadeClient struct {
	client   *http.Client
	baseURL  string
	tokenKey string
	keys     media.KeySource
	metrics  *metrics.Metrics
}

func NewFacadeClient(cfg FacadeConfig, keys media.KeySource, m *metrics.Metrics) *FacadeClient {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	tokenKey := cfg.TokenKey
	if tokenKey == "" {
		tokenKey = DefaultTokenKey
	}
	return &FacadeClient{
		client:   client,
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		tokenKey: tokenKey,
		keys:     keys,
		metrics:  m,
	}
}

// labels accepts both ["2024"] and [2024].
type labels []string

func (l *labels) UnmarshalJSON(b []byte) error {
	var raw []any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch x := v.(type) {
		case string:
			out = append(out, x)
		case float64:
			out = append(out, strconv.FormatFloat(x, 'f', -1, 64))
		case nil:
		default:
			return fmt.Errorf("unexpected label %v", v)
		}
	}
	*l = out
	return nil
}

type rawSermon struct {
	ID          any      `json:"id"`
	Title       string   `json:"title"`
	Speaker     string   `json:"speaker"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
	VideoURL    string   `json:"video_url"`
	Tags        []string `json:"tags"`
}

func (r rawSermon) normalize() Sermon {
	s := Sermon{
		Title:       strings.TrimSpace(r.Title),
		Speaker:     strings.TrimSpace(r.Speaker),
		Date:        strings.TrimSpace(r.Date),
		Description: r.Description,
		VideoURL:    r.VideoURL,
		Tags:        r.Tags,
	}
	switch id := r.ID.(type) {
	case string:
		s.ID = id
	case float64:
		s.ID = strconv.FormatFloat(id, 'f', -1, 64)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Title == "" {
		s.Title = untitledSermon
	}
	if s.Speaker == "" {
		s.Speaker = unknownSpeaker
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return s
}

func (c *FacadeClient) Years(ctx context.Context) ([]string, error) {
	var out labels
	if err := c.get(ctx, "/sermons/years", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *FacadeClient) Months(ctx context.Context, year string) ([]string, error) {
	var out labels
	if err := c.get(ctx, "/sermons/"+url.PathEscape(year)+"/months", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Sermons returns one month of the archive, newest first.
func (c *FacadeClient) Sermons(ctx context.Context, year, month string) ([]Sermon, error) {
	var raw []rawSermon
	if err := c.get(ctx, "/sermons/"+url.PathEscape(year)+"/"+url.PathEscape(month), &raw); err != nil {
		return nil, err
	}
	out := make([]Sermon, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.normalize())
	}
	sortByDateDesc(out)
	return out, nil
}

func (c *FacadeClient) get(ctx context.Context, path string, out any) (err error) {
	started := time.Now()
	defer func() {
		c.metrics.ObserveFetch(facadeSource, started, err)
	}()

	token := ""
	if c.keys != nil {
		token, _ = c.keys.GetValue(ctx, c.tokenKey)
	}
	if strings.TrimSpace(token) == "" {
		return ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", facadeSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return &media.StatusError{Source: facadeSource, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", facadeSource, path, err)
	}
	return nil
}

// sortByDateDesc orders by parsed date, newest first. Records with equal dates
// keep their relative order.
func sortByDateDesc(s []Sermon) {
	sort.SliceStable(s, func(i, j int) bool {
		return ParseSermonDate(s[i].Date).After(ParseSermonDate(s[j].Date))
	})
}
