package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sanctuary/backend/internal/calendarfeed"
	"sanctuary/backend/internal/domain"
	"sanctuary/backend/internal/remoteconfig"
)

const healthCheckTimeout = 2 * time.Second

type eventLister interface {
	ListUpcoming(ctx context.Context, now time.Time) ([]domain.Event, error)
}

type siteSettings interface {
	String(ctx context.Context, key string) string
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Events eventLister
	Feed   *calendarfeed.Feed
	// Settings, when set, names the feed after the site title.
	Settings     siteSettings
	Gatherer     prometheus.Gatherer
	Checks       map[string]HealthCheck
	AllowOrigins []string
	Now          func() time.Time
}

type handlers struct {
	events   eventLister
	feed     *calendarfeed.Feed
	settings siteSettings
	checks   map[string]HealthCheck
	now      func() time.Time
	log      *slog.Logger
}

// NewRouter serves the calendar subscription feed, metrics and health.
func NewRouter(deps Deps, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http"))
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Feed == nil {
		deps.Feed = calendarfeed.New("", nil)
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	corsConfig := cors.Config{
		AllowOrigins: deps.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		MaxAge:       12 * time.Hour,
	}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}

	h := &handlers{
		events:   deps.Events,
		feed:     deps.Feed,
		settings: deps.Settings,
		checks:   deps.Checks,
		now:      deps.Now,
		log:      log,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	public := r.Group("", cors.New(corsConfig))
	public.GET("/events.ics", h.calendar)
	public.HEAD("/events.ics", h.calendar)

	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	return r
}

func (h *handlers) calendar(c *gin.Context) {
	now := h.now()
	list, err := h.events.ListUpcoming(c.Request.Context(), now)
	if err != nil {
		h.log.Error("calendar feed events failed", slog.Any("err", err))
		c.String(http.StatusServiceUnavailable, "Error loading events")
		return
	}
	feed := h.feed
	if h.settings != nil {
		feed = feed.Named(h.settings.String(c.Request.Context(), remoteconfig.WebsiteTitle))
	}
	body, err := feed.Render(list, now)
	if err != nil {
		h.log.Error("calendar feed render failed", slog.Any("err", err))
		c.String(http.StatusInternalServerError, "Error loading events")
		return
	}
	c.Header("Cache-Control", "public, max-age=300")
	c.Header("Content-Disposition", `inline; filename="events.ics"`)
	c.Data(http.StatusOK, calendarfeed.ContentType, []byte(body))
}

func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failing := map[string]string{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			failing[name] = err.Error()
		}
	}
	if len(failing) > 0 {
		h.log.Warn("health check failed", slog.Any("failing", failing))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failing": failing})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.Log(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("took", time.Since(started)),
		)
	}
}
