package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"sanctuary/backend/internal/metrics"
)

var (
	ErrNoAPIKey  = errors.New("media: api key not available")
	ErrNoContent = errors.New("media: no matching items")
)

// StatusError is returned when a catalog answers with a non-2xx status.
type StatusError struct {
	Source     string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Source, e.StatusCode)
}

const maxErrorBody = 4 << 10

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newHTTPClient(c *http.Client, timeout time.Duration) *http.Client {
	if c != nil {
		return c
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func getJSON(ctx context.Context, client *http.Client, m *metrics.Metrics, source, rawURL string, header http.Header, out any) (err error) {
	started := time.Now()
	defer func() {
		m.ObserveFetch(source, started, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr apiErrorBody
		_ = json.Unmarshal(body, &apiErr)
		return &StatusError{Source: source, StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", source, err)
	}
	return nil
}
