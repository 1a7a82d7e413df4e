package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"sanctuary/backend/internal/calendarfeed"
	"sanctuary/backend/internal/config"
	"sanctuary/backend/internal/media"
	"sanctuary/backend/internal/metrics"
	"sanctuary/backend/internal/remoteconfig"
	"sanctuary/backend/internal/sermoncache"
	"sanctuary/backend/internal/sermons"
	"sanctuary/backend/internal/service/events"
	"sanctuary/backend/internal/store/postgres"
	grpcTransport "sanctuary/backend/internal/transport/grpc"
	httpTransport "sanctuary/backend/internal/transport/http"
	"sanctuary/backend/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "sanctuary-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "sanctuary-server"),
	)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("log_level", cfg.LogLevel),
		slog.String("media_provider", cfg.MediaProvider),
		slog.String("cache_backend", cfg.CacheBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		ApplicationName: "sanctuary-server",
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegistry(registry)

	settings := remoteconfig.New(postgres.NewConfigRepo(db), remoteconfig.Options{
		RefreshInterval: cfg.ConfigRefreshPeriod,
		Overrides: map[string]string{
			remoteconfig.YouTubeAPIKey:  cfg.YouTubeAPIKey,
			remoteconfig.JellyfinAPIKey: cfg.JellyfinAPIKey,
			remoteconfig.SermonAPIToken: cfg.SermonAPIToken,
		},
	}, log)
	if err := settings.Refresh(ctx); err != nil {
		log.Warn("site settings unavailable; using defaults", slog.Any("err", err))
	}

	mediaClient := newMediaClient(cfg, settings, m, log)

	healthChecks := map[string]httpTransport.HealthCheck{
		"database": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	}

	snapshots, redisClient := newSnapshotStore(ctx, cfg, log)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}()
		healthChecks["redis"] = func(ctx context.Context) error { return sermoncache.Ping(ctx, redisClient) }
	}

	cache := sermoncache.New(ctx, mediaClient, snapshots, sermoncache.Options{
		SermonWindow:     cfg.CacheSermonTTL,
		LivestreamWindow: cfg.CacheLivestreamTTL,
	}, log, m)

	var browser sermons.Browser = sermons.NewCatalogBrowser(mediaClient, cfg.SermonsCatalogTTL)
	if cfg.SermonsAPIURL != "" {
		browser = sermons.NewFacadeClient(sermons.FacadeConfig{
			BaseURL: cfg.SermonsAPIURL,
			Timeout: cfg.MediaTimeout,
		}, settings, m)
	}
	archive := sermons.NewAggregator(browser, cfg.SermonsConcurrency, log)

	eventsSvc := events.NewService(postgres.NewEventRepo(db), cfg.SiteTimezone, log, m)

	syncWorker, err := worker.NewEventSyncWorker(eventsSvc, worker.Options{
		Schedule:   cfg.SyncSchedule,
		RunOnStart: cfg.SyncOnStartup,
		RunTimeout: cfg.GRPCRequestTimeout * 6,
	}, log)
	if err != nil {
		log.Error("event sync worker setup failed", slog.Any("err", err))
		os.Exit(1)
	}
	syncWorker.Start()

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(defaultRequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	grpcTransport.RegisterChurchServiceServer(grpcServer, grpcTransport.NewChurchServer(grpcTransport.ChurchDeps{
		Events:   eventsSvc,
		Cache:    cache,
		Archive:  archive,
		Flags:    settings,
		Location: cfg.SiteTimezone,
	}, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(grpcTransport.ChurchServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpTransport.NewRouter(httpTransport.Deps{
			Events:   eventsSvc,
			Feed:     calendarfeed.New(cfg.SiteName, cfg.SiteTimezone),
			Settings: settings,
			Gatherer: registry,
			Checks:   healthChecks,
		}, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("servers started", slog.String("grpc_addr", cfg.GRPCAddr), slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
		}
	}

	healthServer.Shutdown()
	shutdown(log, grpcServer, httpServer, syncWorker, cfg.ShutdownTimeout)
}

func newMediaClient(cfg config.Config, keys media.KeySource, m *metrics.Metrics, log *slog.Logger) *media.Client {
	if cfg.MediaProvider == "jellyfin" {
		catalog := media.NewJellyfinCatalog(media.JellyfinConfig{
			BaseURL:  cfg.MediaJellyfinURL,
			PageSize: cfg.MediaPageSize,
			MaxPages: cfg.MediaMaxPages,
			Timeout:  cfg.MediaTimeout,
		}, m)
		return media.NewClient(catalog, keys, remoteconfig.JellyfinAPIKey, cfg.SiteTimezone, log)
	}
	catalog := media.NewYouTubeCatalog(media.YouTubeConfig{
		BaseURL:   cfg.MediaYouTubeBaseURL,
		ChannelID: cfg.MediaYouTubeChannelID,
		PageSize:  cfg.MediaPageSize,
		MaxPages:  cfg.MediaMaxPages,
		Timeout:   cfg.MediaTimeout,
	}, m)
	return media.NewClient(catalog, keys, remoteconfig.YouTubeAPIKey, cfg.SiteTimezone, log)
}

// newSnapshotStore picks where the sermon cache survives restarts. An
// unreachable redis falls back to the file store rather than failing startup.
func newSnapshotStore(ctx context.Context, cfg config.Config, log *slog.Logger) (sermoncache.SnapshotStore, *redis.Client) {
	switch cfg.CacheBackend {
	case "none":
		return sermoncache.NopSnapshotStore{}, nil
	case "redis":
		client := sermoncache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := sermoncache.Ping(pingCtx, client); err != nil {
			log.Warn("redis unavailable; using file snapshot", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
			_ = client.Close()
			return sermoncache.NewFileSnapshotStore(cfg.CacheFile), nil
		}
		return sermoncache.NewRedisSnapshotStore(client, sermoncache.DefaultRedisKey), client
	default:
		return sermoncache.NewFileSnapshotStore(cfg.CacheFile), nil
	}
}

func defaultRequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, h *http.Server, w *worker.EventSyncWorker, timeout time.Duration) {
	log.Info("shutting down", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}
	if err := w.Stop(ctx); err != nil {
		log.Warn("event sync worker did not stop in time", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
