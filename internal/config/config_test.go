package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var aliasEnv = map[string]bool{
	"GRPC_HOST": true, "GRPC_PORT": true, "GRPC_ADDR": true, "HTTP_ADDR": true,
	"DATABASE_URL": true, "REDIS_ADDR": true, "REDIS_PASSWORD": true,
	"YOUTUBE_CHANNEL_ID": true, "JELLYFIN_URL": true, "YOUTUBE_API_KEY": true,
	"JELLYFIN_API_KEY": true, "SERMON_API_TOKEN": true, "SHUTDOWN_TIMEOUT": true, "LOG_LEVEL": true,
}

// clearEnv unsets every variable Load reads and moves into an empty directory
// so no stray .env file is picked up.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if aliasEnv[key] || strings.HasPrefix(key, envPrefix+"_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != "0.0.0.0:50051" {
		t.Fatalf("GRPCAddr = %q, want 0.0.0.0:50051", cfg.GRPCAddr)
	}
	if cfg.CacheBackend != "file" {
		t.Fatalf("CacheBackend = %q, want file", cfg.CacheBackend)
	}
	if cfg.CacheSermonTTL != 24*time.Hour || cfg.CacheLivestreamTTL != 5*time.Minute {
		t.Fatalf("cache windows = %v/%v", cfg.CacheSermonTTL, cfg.CacheLivestreamTTL)
	}
	if cfg.SyncSchedule != "*/15 * * * *" || !cfg.SyncOnStartup {
		t.Fatalf("sync = %q/%v", cfg.SyncSchedule, cfg.SyncOnStartup)
	}
	if cfg.SermonsConcurrency != 4 {
		t.Fatalf("SermonsConcurrency = %d, want 4", cfg.SermonsConcurrency)
	}
	if cfg.SermonsCatalogTTL != 5*time.Minute {
		t.Fatalf("SermonsCatalogTTL = %v, want 5m", cfg.SermonsCatalogTTL)
	}
	if cfg.SiteTimezone == nil || cfg.SiteTimezone.String() != "America/Los_Angeles" {
		t.Fatalf("SiteTimezone = %v", cfg.SiteTimezone)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("SANCTUARY_GRPC_ADDR", "127.0.0.1:6000")
	t.Setenv("SANCTUARY_CACHE_BACKEND", "Redis")
	t.Setenv("SANCTUARY_CACHE_LIVESTREAM_TTL", "90s")
	t.Setenv("SANCTUARY_MEDIA_PROVIDER", "jellyfin")
	t.Setenv("JELLYFIN_URL", "http://media.local:8096")
	t.Setenv("SANCTUARY_SERMONS_CONCURRENCY", "8")
	t.Setenv("SANCTUARY_SERMONS_CATALOG_TTL", "30s")
	t.Setenv("YOUTUBE_API_KEY", "k")
	t.Setenv("SANCTUARY_SITE_TIMEZONE", "UTC")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCHost != "127.0.0.1" || cfg.GRPCPort != 6000 {
		t.Fatalf("grpc = %s:%d", cfg.GRPCHost, cfg.GRPCPort)
	}
	if cfg.CacheBackend != "redis" || cfg.CacheLivestreamTTL != 90*time.Second {
		t.Fatalf("cache = %s %v", cfg.CacheBackend, cfg.CacheLivestreamTTL)
	}
	if cfg.MediaProvider != "jellyfin" || cfg.MediaJellyfinURL != "http://media.local:8096" {
		t.Fatalf("media = %s %s", cfg.MediaProvider, cfg.MediaJellyfinURL)
	}
	if cfg.SermonsCatalogTTL != 30*time.Second {
		t.Fatalf("SermonsCatalogTTL = %v, want 30s", cfg.SermonsCatalogTTL)
	}
	if cfg.SermonsConcurrency != 8 || cfg.YouTubeAPIKey != "k" {
		t.Fatalf("sermons = %d key = %q", cfg.SermonsConcurrency, cfg.YouTubeAPIKey)
	}
	if cfg.SiteTimezone != time.UTC {
		t.Fatalf("SiteTimezone = %v, want UTC", cfg.SiteTimezone)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"SANCTUARY_CACHE_BACKEND":    "memcached",
		"SANCTUARY_MEDIA_PROVIDER":   "vimeo",
		"SANCTUARY_SHUTDOWN_TIMEOUT": "soon",
		"SANCTUARY_SITE_TIMEZONE":    "Mars/Olympus_Mons",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load with %s=%s: err = nil", key, value)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "sanctuary.env")
	if err := os.WriteFile(path, []byte("SANCTUARY_HTTP_ADDR=:9999\nSANCTUARY_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SANCTUARY_ENV_FILE", path)
	t.Setenv("SANCTUARY_LOG_LEVEL", "warn")
	t.Cleanup(func() { os.Unsetenv("SANCTUARY_HTTP_ADDR") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("HTTPAddr = %q, want :9999", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("LogLevel = %q, want the existing environment value", cfg.LogLevel)
	}

	t.Setenv("SANCTUARY_ENV_FILE", filepath.Join(dir, "missing.env"))
	if _, err := Load(); err == nil {
		t.Fatalf("Load with missing explicit env file: err = nil")
	}
}
