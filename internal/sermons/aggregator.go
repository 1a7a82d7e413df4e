package sermons

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

type YearGroup struct {
	Year   string       `json:"year"`
	Months []MonthGroup `json:"months"`
}

type MonthGroup struct {
	Month   string   `json:"month"`
	Sermons []Sermon `json:"sermons"`
}

// Aggregator flattens a Browser into a single newest-first list.
type Aggregator struct {
	browser Browser
	limit   int
	log     *slog.Logger
}

func NewAggregator(browser Browser, concurrency int, log *slog.Logger) *Aggregator {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{browser: browser, limit: concurrency, log: log}
}

func (a *Aggregator) Years(ctx context.Context) ([]string, error) {
	return a.browser.Years(ctx)
}

func (a *Aggregator) Months(ctx context.Context, year string) ([]string, error) {
	return a.browser.Months(ctx, year)
}

func (a *Aggregator) Sermons(ctx context.Context, year, month string) ([]Sermon, error) {
	return a.browser.Sermons(ctx, year, month)
}

// ByYearMonth walks the whole archive. Years and months are ordered by
// descending label. A year or month that fails to load is logged and left out;
// only a failure to list years is returned.
func (a *Aggregator) ByYearMonth(ctx context.Context) ([]YearGroup, error) {
	years, err := a.browser.Years(ctx)
	if err != nil {
		return nil, err
	}
	years = append([]string(nil), years...)
	sort.Sort(sort.Reverse(sort.StringSlice(years)))

	groups := make([]YearGroup, len(years))
	yearFailed := make([]bool, len(years))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for i, year := range years {
		groups[i].Year = year
		g.Go(func() error {
			months, err := a.browser.Months(gctx, year)
			if err != nil {
				a.log.Warn("sermon months unavailable", slog.String("year", year), slog.Any("err", err))
				yearFailed[i] = true
				return nil
			}
			months = append([]string(nil), months...)
			sort.Sort(sort.Reverse(sort.StringSlice(months)))
			groups[i].Months = make([]MonthGroup, len(months))
			for j, month := range months {
				groups[i].Months[j].Month = month
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := make([][]bool, len(groups))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for i := range groups {
		failed[i] = make([]bool, len(groups[i].Months))
		for j := range groups[i].Months {
			year, month := groups[i].Year, groups[i].Months[j].Month
			g.Go(func() error {
				list, err := a.browser.Sermons(gctx, year, month)
				if err != nil {
					a.log.Warn("sermon month unavailable",
						slog.String("year", year),
						slog.String("month", month),
						slog.Any("err", err),
					)
					failed[i][j] = true
					return nil
				}
				groups[i].Months[j].Sermons = list
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]YearGroup, 0, len(groups))
	for i, y := range groups {
		if yearFailed[i] {
			continue
		}
		kept := make([]MonthGroup, 0, len(y.Months))
		for j, m := range y.Months {
			if !failed[i][j] {
				kept = append(kept, m)
			}
		}
		y.Months = kept
		out = append(out, y)
	}
	return out, nil
}

// AllSermons returns every sermon in the archive, newest first by parsed date.
func (a *Aggregator) AllSermons(ctx context.Context) ([]Sermon, error) {
	groups, err := a.ByYearMonth(ctx)
	if err != nil {
		return nil, err
	}
	out := []Sermon{}
	for _, y := range groups {
		for _, m := range y.Months {
			out = append(out, m.Sermons...)
		}
	}
	sortByDateDesc(out)
	return out, nil
}

// LatestSermon returns the newest sermon, or nil for an empty archive.
func (a *Aggregator) LatestSermon(ctx context.Context) (*Sermon, error) {
	all, err := a.AllSermons(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	s := all[0]
	return &s, nil
}
