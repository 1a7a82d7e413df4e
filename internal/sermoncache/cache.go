package sermoncache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sanctuary/backend/internal/domain"
	"sanctuary/backend/internal/media"
	"sanctuary/backend/internal/metrics"
)

type Slot string

const (
	SlotSermon     Slot = "sermon"
	SlotLivestream Slot = "livestream"
)

const (
	DefaultSermonWindow     = 24 * time.Hour
	DefaultLivestreamWindow = 5 * time.Minute
	persistTimeout          = 5 * time.Second
)

type Fetcher interface {
	FetchLatestSermon(ctx context.Context) (domain.Sermon, error)
	FetchLivestream(ctx context.Context) (*domain.Sermon, error)
}

type Options struct {
	SermonWindow     time.Duration
	LivestreamWindow time.Duration
	Now              func() time.Time
}

type lastFetch struct {
	Sermon     int64 `json:"sermon"`
	Livestream int64 `json:"livestream"`
}

type snapshot struct {
	Sermon     *domain.Sermon `json:"sermon"`
	Livestream *domain.Sermon `json:"livestream"`
	LastFetch  lastFetch      `json:"lastFetch"`
}

// Service keeps the latest sermon and livestream with separate retention windows.
// Expired entries are still served when a refresh fails.
type Service struct {
	fetcher Fetcher
	store   SnapshotStore
	windows map[Slot]time.Duration
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Metrics

	// refresh collapses concurrent misses on one slot into a single fetch.
	refresh singleflight.Group
	// saveMu orders snapshot writes; mu only guards state and is never held
	// across a fetch or a save.
	saveMu sync.Mutex
	mu     sync.Mutex
	state  snapshot
}

// New restores the persisted snapshot. A missing or unreadable snapshot starts the
// cache empty.
func New(ctx context.Context, fetcher Fetcher, store SnapshotStore, opts Options, log *slog.Logger, m *metrics.Metrics) *Service {
	if store == nil {
		store = NopSnapshotStore{}
	}
	if opts.SermonWindow <= 0 {
		opts.SermonWindow = DefaultSermonWindow
	}
	if opts.LivestreamWindow <= 0 {
		opts.LivestreamWindow = DefaultLivestreamWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		fetcher: fetcher,
		store:   store,
		windows: map[Slot]time.Duration{
			SlotSermon:     opts.SermonWindow,
			SlotLivestream: opts.LivestreamWindow,
		},
		now:     opts.Now,
		log:     log.With(slog.String("component", "sermoncache")),
		metrics: m,
	}
	s.restore(ctx)
	return s
}

func (s *Service) restore(ctx context.Context) {
	b, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn("sermon cache load failed; starting empty", slog.Any("err", err))
		return
	}
	if len(b) == 0 {
		return
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		s.log.Warn("sermon cache snapshot corrupt; starting empty", slog.Any("err", err))
		return
	}
	s.state = snap
}

func (s *Service) lastFetchOf(slot Slot) int64 {
	if slot == SlotLivestream {
		return s.state.LastFetch.Livestream
	}
	return s.state.LastFetch.Sermon
}

func (s *Service) isValid(slot Slot, now time.Time) bool {
	last := s.lastFetchOf(slot)
	if last == 0 {
		return false
	}
	return now.Sub(time.UnixMilli(last)) < s.windows[slot]
}

// cachedSermon returns a copy of the sermon slot and whether it is still fresh.
func (s *Service) cachedSermon() (*domain.Sermon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSermon(s.state.Sermon), s.isValid(SlotSermon, s.now()) && s.state.Sermon != nil
}

func (s *Service) cachedLivestream() (*domain.Sermon, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSermon(s.state.Livestream), s.isValid(SlotLivestream, s.now())
}

type refreshResult struct {
	value *domain.Sermon
	// fresh is set when another caller refreshed the slot while this one waited.
	fresh bool
}

// LatestSermon returns the cached sermon while it is fresh and refreshes it
// otherwise. It never returns an error: with nothing cached a failed refresh
// yields a placeholder record.
func (s *Service) LatestSermon(ctx context.Context) domain.Sermon {
	if cached, ok := s.cachedSermon(); ok {
		s.metrics.CacheLookup(string(SlotSermon), "hit")
		return *cached
	}

	res, err := s.do(ctx, SlotSermon, func(ctx context.Context) (refreshResult, error) {
		if cached, ok := s.cachedSermon(); ok {
			return refreshResult{value: cached, fresh: true}, nil
		}
		now := s.now()
		sermon, err := s.fetcher.FetchLatestSermon(ctx)
		if err != nil {
			return refreshResult{}, err
		}
		s.mu.Lock()
		s.state.Sermon = cloneSermon(&sermon)
		s.state.LastFetch.Sermon = now.UnixMilli()
		s.mu.Unlock()
		s.persist(ctx)
		return refreshResult{value: &sermon}, nil
	})
	if err != nil {
		if cached, _ := s.cachedSermon(); cached != nil {
			s.metrics.CacheLookup(string(SlotSermon), "stale")
			s.log.Warn("sermon refresh failed; serving cached", slog.Any("err", err))
			return *cached
		}
		s.metrics.CacheLookup(string(SlotSermon), "placeholder")
		s.log.Warn("sermon refresh failed; nothing cached", slog.Any("err", err))
		return media.Placeholder(err)
	}

	if res.fresh {
		s.metrics.CacheLookup(string(SlotSermon), "hit")
	} else {
		s.metrics.CacheLookup(string(SlotSermon), "miss")
	}
	return *cloneSermon(res.value)
}

// Livestream is LatestSermon for the livestream slot. A nil result means no
// broadcast is scheduled, and that answer is cached like any other.
func (s *Service) Livestream(ctx context.Context) *domain.Sermon {
	if cached, ok := s.cachedLivestream(); ok {
		s.metrics.CacheLookup(string(SlotLivestream), "hit")
		return cached
	}

	res, err := s.do(ctx, SlotLivestream, func(ctx context.Context) (refreshResult, error) {
		if cached, ok := s.cachedLivestream(); ok {
			return refreshResult{value: cached, fresh: true}, nil
		}
		now := s.now()
		live, err := s.fetcher.FetchLivestream(ctx)
		if err != nil {
			return refreshResult{}, err
		}
		s.mu.Lock()
		s.state.Livestream = cloneSermon(live)
		s.state.LastFetch.Livestream = now.UnixMilli()
		s.mu.Unlock()
		s.persist(ctx)
		return refreshResult{value: live}, nil
	})
	if err != nil {
		cached, _ := s.cachedLivestream()
		s.metrics.CacheLookup(string(SlotLivestream), "stale")
		s.log.Warn("livestream refresh failed; serving cached", slog.Any("err", err))
		return cached
	}

	if res.fresh {
		s.metrics.CacheLookup(string(SlotLivestream), "hit")
	} else {
		s.metrics.CacheLookup(string(SlotLivestream), "miss")
	}
	return cloneSermon(res.value)
}

// do runs fn once per slot across concurrent callers. A caller whose context
// ends stops waiting; the shared refresh keeps running for the others.
func (s *Service) do(ctx context.Context, slot Slot, fn func(context.Context) (refreshResult, error)) (refreshResult, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.refresh.DoChan(string(slot), func() (any, error) {
		return fn(shared)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return refreshResult{}, r.Err
		}
		return r.Val.(refreshResult), nil
	case <-ctx.Done():
		return refreshResult{}, ctx.Err()
	}
}

// Invalidate forces the next lookup of slot to refresh. The cached value stays
// available as a fallback.
func (s *Service) Invalidate(ctx context.Context, slot Slot) error {
	s.mu.Lock()
	switch slot {
	case SlotSermon:
		s.state.LastFetch.Sermon = 0
	case SlotLivestream:
		s.state.LastFetch.Livestream = 0
	default:
		s.mu.Unlock()
		return errors.New("sermoncache: unknown slot " + string(slot))
	}
	s.mu.Unlock()
	s.persist(ctx)
	return nil
}

func (s *Service) persist(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	b, err := json.Marshal(s.state)
	s.mu.Unlock()
	if err != nil {
		s.log.Error("sermon cache encode failed", slog.Any("err", err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.store.Save(ctx, b); err != nil {
		s.log.Warn("sermon cache save failed", slog.Any("err", err))
	}
}

func cloneSermon(s *domain.Sermon) *domain.Sermon {
	if s == nil {
		return nil
	}
	c := *s
	if s.VideoID != nil {
		id := *s.VideoID
		c.VideoID = &id
	}
	return &c
}
