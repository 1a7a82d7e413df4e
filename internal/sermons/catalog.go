package sermons

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sanctuary/backend/internal/domain"
)

// DefaultCatalogTTL is how long one catalog listing answers Years, Months and
// Sermons before the catalog is listed again.
const DefaultCatalogTTL = 5 * time.Minute

// SermonLister is the slice of media.Client the catalog browser needs.
type SermonLister interface {
	Sermons(ctx context.Context, kind domain.MediaType) ([]domain.Sermon, error)
}

// CatalogBrowser groups a flat media catalog into the year/month shape of the
// archive API, for deployments without one.
type CatalogBrowser struct {
	lister SermonLister
	ttl    time.Duration
	now    func() time.Time

	listing  singleflight.Group
	mu       sync.Mutex
	items    []domain.Sermon
	loadedAt time.Time
}

// NewCatalogBrowser lists the catalog at most once per ttl; a non-positive ttl
// means DefaultCatalogTTL.
func NewCatalogBrowser(lister SermonLister, ttl time.Duration) *CatalogBrowser {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &CatalogBrowser{lister: lister, ttl: ttl, now: time.Now}
}

func (b *CatalogBrowser) cached() ([]domain.Sermon, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.items == nil || b.now().Sub(b.loadedAt) >= b.ttl {
		return nil, false
	}
	return b.items, true
}

// load returns the dated sermons of the catalog. Concurrent callers share one
// listing and failed listings are not remembered.
func (b *CatalogBrowser) load(ctx context.Context) ([]domain.Sermon, error) {
	if items, ok := b.cached(); ok {
		return items, nil
	}
	ch := b.listing.DoChan("catalog", func() (any, error) {
		if items, ok := b.cached(); ok {
			return items, nil
		}
		items, err := b.lister.Sermons(context.WithoutCancel(ctx), domain.MediaSermons)
		if err != nil {
			return nil, err
		}
		out := make([]domain.Sermon, 0, len(items))
		for _, s := range items {
			if s.Date.IsZero() {
				continue
			}
			out = append(out, s)
		}
		b.mu.Lock()
		b.items, b.loadedAt = out, b.now()
		b.mu.Unlock()
		return out, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]domain.Sermon), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Years lists years with at least one sermon, newest first.
func (b *CatalogBrowser) Years(ctx context.Context) ([]string, error) {
	items, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var years []int
	for _, s := range items {
		y := s.Date.Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	out := make([]string, 0, len(years))
	for _, y := range years {
		out = append(out, strconv.Itoa(y))
	}
	return out, nil
}

// Months lists month names for year in calendar order.
func (b *CatalogBrowser) Months(ctx context.Context, year string) ([]string, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return []string{}, nil
	}
	items, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var months []int
	for _, s := range items {
		if s.Date.Year() != y {
			continue
		}
		m := int(s.Date.Month())
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Ints(months)
	out := make([]string, 0, len(months))
	for _, m := range months {
		out = append(out, monthName(m))
	}
	return out, nil
}

func (b *CatalogBrowser) Sermons(ctx context.Context, year, month string) ([]Sermon, error) {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return []Sermon{}, nil
	}
	m := monthIndex(month)
	if m == 0 {
		return []Sermon{}, nil
	}
	items, err := b.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []Sermon{}
	for _, s := range items {
		if s.Date.Year() == y && int(s.Date.Month()) == m {
			out = append(out, fromDomain(s))
		}
	}
	sortByDateDesc(out)
	return out, nil
}

func fromDomain(s domain.Sermon) Sermon {
	out := Sermon{
		ID:          s.ID,
		Title:       s.Title,
		Speaker:     s.Speaker,
		Date:        FormatSermonDate(s.Date),
		Description: s.Description,
		VideoURL:    s.StreamURL,
		Tags:        []string{},
	}
	if out.ID == "" && s.VideoID != nil {
		out.ID = *s.VideoID
	}
	if out.Title == "" {
		out.Title = untitledSermon
	}
	if out.Speaker == "" {
		out.Speaker = unknownSpeaker
	}
	if s.SeriesName != "" {
		for _, tag := range strings.Split(s.SeriesName, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				out.Tags = append(out.Tags, tag)
			}
		}
	}
	return out
}

func monthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return monthNames[m-1]
}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}
