package media

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanctuary/backend/internal/domain"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestYouTubeCatalog_PaginatesAndBatchesDetails(t *testing.T) {
	var searchCalls, videoCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		switch r.URL.Path {
		case "/search":
			n := searchCalls.Add(1)
			assert.Equal(t, "chan", r.URL.Query().Get("channelId"))
			assert.Equal(t, "date", r.URL.Query().Get("order"))
			if n == 1 {
				assert.Empty(t, r.URL.Query().Get("pageToken"))
				writeJSON(t, w, map[string]any{
					"nextPageToken": "p2",
					"items": []any{
						map[string]any{"id": map[string]any{"videoId": "v1"}},
						map[string]any{"id": map[string]any{"videoId": "v2"}},
					},
				})
				return
			}
			assert.Equal(t, "p2", r.URL.Query().Get("pageToken"))
			writeJSON(t, w, map[string]any{
				"items": []any{map[string]any{"id": map[string]any{"videoId": "v3"}}},
			})
		case "/videos":
			videoCalls.Add(1)
			assert.Equal(t, "snippet,contentDetails", r.URL.Query().Get("part"))
			var items []any
			for _, id := range strings.Split(r.URL.Query().Get("id"), ",") {
				items = append(items, map[string]any{
					"id": id,
					"snippet": map[string]any{
						"title":                id + " - Pastor Ray",
						"publishedAt":          "2024-11-02T15:00:00Z",
						"liveBroadcastContent": "none",
						"thumbnails":           map[string]any{"high": map[string]any{"url": "https://img/" + id}},
					},
					"contentDetails": map[string]any{"duration": "PT30M"},
				})
			}
			writeJSON(t, w, map[string]any{"items": items})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cat := NewYouTubeCatalog(YouTubeConfig{BaseURL: srv.URL, ChannelID: "chan", PageSize: 2, MaxPages: 5}, nil)
	items, err := cat.ListItems(context.Background(), "k", domain.MediaSermons)
	require.NoError(t, err)

	require.Len(t, items, 3)
	assert.Equal(t, int32(2), searchCalls.Load())
	assert.Equal(t, int32(1), videoCalls.Load())
	assert.Equal(t, "PT30M", items[0].DurationCode)
	assert.Equal(t, "https://img/v1", items[0].ThumbnailURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=v1", items[0].Path)
}

func TestYouTubeCatalog_StopsAtMaxPages(t *testing.T) {
	var searchCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			n := searchCalls.Add(1)
			writeJSON(t, w, map[string]any{
				"nextPageToken": "next" + strconv.Itoa(int(n)),
				"items":         []any{map[string]any{"id": map[string]any{"videoId": "v" + strconv.Itoa(int(n))}}},
			})
		case "/videos":
			writeJSON(t, w, map[string]any{"items": []any{}})
		}
	}))
	defer srv.Close()

	cat := NewYouTubeCatalog(YouTubeConfig{BaseURL: srv.URL, MaxPages: 3}, nil)
	_, err := cat.ListItems(context.Background(), "k", domain.MediaSermons)
	require.NoError(t, err)
	assert.Equal(t, int32(3), searchCalls.Load())
}

func TestYouTubeCatalog_LivestreamFallsBackToLive(t *testing.T) {
	var eventTypes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		et := r.URL.Query().Get("eventType")
		eventTypes = append(eventTypes, et)
		if et == "upcoming" {
			writeJSON(t, w, map[string]any{"items": []any{}})
			return
		}
		writeJSON(t, w, map[string]any{"items": []any{map[string]any{
			"id":      map[string]any{"videoId": "live1"},
			"snippet": map[string]any{"title": "Sabbath Worship", "liveBroadcastContent": "live"},
		}}})
	}))
	defer srv.Close()

	cat := NewYouTubeCatalog(YouTubeConfig{BaseURL: srv.URL}, nil)
	items, err := cat.ListItems(context.Background(), "k", domain.MediaLivestreams)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []string{"upcoming", "live"}, eventTypes)
	assert.Equal(t, "live", items[0].LiveBroadcastState)
}

func TestYouTubeCatalog_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	cat := NewYouTubeCatalog(YouTubeConfig{BaseURL: srv.URL}, nil)
	_, err := cat.ListItems(context.Background(), "k", domain.MediaSermons)

	var sErr *StatusError
	require.True(t, errors.As(err, &sErr), "error = %v", err)
	assert.Equal(t, http.StatusForbidden, sErr.StatusCode)
	assert.Equal(t, "quota exceeded", sErr.Message)
}

func TestJellyfinCatalog_LibraryLookupAndPagination(t *testing.T) {
	var libraryCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-MediaBrowser-Token"))
		assert.Contains(t, r.Header.Get("X-Emby-Authorization"), `Token="secret"`)

		switch r.URL.Path {
		case "/Library/MediaFolders":
			libraryCalls.Add(1)
			writeJSON(t, w, map[string]any{"Items": []any{
				map[string]any{"Id": "lib-live", "Name": "Livestreams", "Path": "/media/live"},
				map[string]any{"Id": "lib-sermons", "Name": "Church Media", "Path": "/media/Sermons"},
			}})
		case "/Items":
			assert.Equal(t, "lib-sermons", r.URL.Query().Get("ParentId"))
			assert.Equal(t, "2", r.URL.Query().Get("Limit"))
			switch r.URL.Query().Get("StartIndex") {
			case "0":
				writeJSON(t, w, map[string]any{
					"TotalRecordCount": 3,
					"Items": []any{
						map[string]any{"Id": "a", "Name": "Hope - Jane Doe.mp4", "Path": "/media/Sermons/a.mp4", "PremiereDate": "2024-11-02T00:00:00.0000000Z", "RunTimeTicks": int64(42000000000)},
						map[string]any{"Id": "b", "Name": "cover art", "Path": "/media/Sermons/b.jpg"},
					},
				})
			case "2":
				writeJSON(t, w, map[string]any{
					"TotalRecordCount": 3,
					"Items": []any{
						map[string]any{"Id": "c", "Name": "Peace.MOV", "Path": "/media/Sermons/c.MOV", "DateCreated": "2024-10-05T12:00:00Z"},
					},
				})
			default:
				t.Errorf("unexpected StartIndex %q", r.URL.Query().Get("StartIndex"))
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cat := NewJellyfinCatalog(JellyfinConfig{BaseURL: srv.URL, PageSize: 2}, nil)
	items, err := cat.ListItems(context.Background(), "secret", domain.MediaSermons)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "PT1H10M", items[0].DurationCode)
	assert.Equal(t, 2024, items[0].PublishedAt.Year())
	assert.Contains(t, items[0].StreamURL, "/Videos/a/stream?")
	assert.Equal(t, "c", items[1].ID)
	assert.Equal(t, 10, int(items[1].PublishedAt.Month()))

	_, err = cat.ListItems(context.Background(), "secret", domain.MediaSermons)
	require.NoError(t, err)
	assert.Equal(t, int32(1), libraryCalls.Load(), "library id should be cached")
}

func TestJellyfinCatalog_MissingLibrary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"Items": []any{map[string]any{"Id": "x", "Name": "Photos", "Path": "/photos"}}})
	}))
	defer srv.Close()

	cat := NewJellyfinCatalog(JellyfinConfig{BaseURL: srv.URL}, nil)
	_, err := cat.ListItems(context.Background(), "secret", domain.MediaLivestreams)
	assert.ErrorIs(t, err, ErrNoContent)
}
