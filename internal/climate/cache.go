package climate

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/stationhistory/internal/metrics"
	"github.com/lox/stationhistory/internal/models"
	"github.com/lox/stationhistory/internal/store"
)

type Fetcher interface {
	FetchDaily(ctx context.Context, from, to time.Time) (Series, error)
	Key() string
}

// BenchmarkOutcome is the wide series or the reason it is unavailable.
// Stale carries a served-from-cache warning in Advisories.
type BenchmarkOutcome struct {
	Series     Series
	FetchedAt  time.Time
	Outcome    models.Outcome
	Stale      bool
	Advisories []models.Advisory
}

// WideCache owns the one wide archive fetch. It always requests the span
// covering every normal period and keeps it for ttl, in memory and in the
// store when one is configured.
type WideCache struct {
	fetcher Fetcher
	store   *store.Store
	clock   clockwork.Clock
	ttl     time.Duration
	from    time.Time
	to      time.Time

	mu        sync.Mutex
	series    Series
	fetchedAt time.Time
}

func NewWideCache(f Fetcher, st *store.Store, clock clockwork.Clock, ttl time.Duration, periods []NormalPeriod) *WideCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	from, to := WideRange(periods)
	return &WideCache{
		fetcher: f,
		store:   st,
		clock:   clock,
		ttl:     ttl,
		from:    from,
		to:      to,
	}
}

func (c *WideCache) Range() (from, to time.Time) { return c.from, c.to }

// Get returns the wide series, refreshing it when older than the ttl. A
// failed refresh falls back to the previous copy.
func (c *WideCache) Get(ctx context.Context) BenchmarkOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.series == nil {
		c.loadFromStore()
	}
	if c.series != nil && now.Sub(c.fetchedAt) < c.ttl {
		metrics.BenchmarkCacheTotal.WithLabelValues("hit").Inc()
		return BenchmarkOutcome{Series: c.series, FetchedAt: c.fetchedAt, Outcome: models.OK()}
	}
	metrics.BenchmarkCacheTotal.WithLabelValues("miss").Inc()

	series, err := c.fetch(ctx, now)
	if err == nil {
		c.series, c.fetchedAt = series, now
		return BenchmarkOutcome{Series: series, FetchedAt: now, Outcome: models.OK()}
	}

	log.Printf("climate: refresh wide series %s: %v", c.fetcher.Key(), err)
	if c.series != nil {
		metrics.BenchmarkCacheTotal.WithLabelValues("stale").Inc()
		return BenchmarkOutcome{
			Series:    c.series,
			FetchedAt: c.fetchedAt,
			Outcome:   models.OK(),
			Stale:     true,
			Advisories: []models.Advisory{{
				Level:   "warning",
				Message: fmt.Sprintf("climate benchmark could not be refreshed, using data from %s", c.fetchedAt.Format("2006-01-02 15:04")),
			}},
		}
	}
	return BenchmarkOutcome{
		Outcome: models.Unavailable(err.Error()),
		Advisories: []models.Advisory{{
			Level:   "warning",
			Message: "climate benchmark unavailable: " + err.Error(),
		}},
	}
}

func (c *WideCache) fetch(ctx context.Context, now time.Time) (Series, error) {
	var run *store.FetchRun
	if c.store != nil {
		var err error
		run, err = c.store.StartFetchRun("archive", c.from.Format(dateLayout)+".."+c.to.Format(dateLayout), nil, nil)
		if err != nil {
			log.Printf("climate: start fetch run: %v", err)
		}
	}

	series, err := c.fetcher.FetchDaily(ctx, c.from, c.to)
	if err == nil && len(series) == 0 {
		err = fmt.Errorf("%w: empty series", ErrMalformed)
	}

	if run != nil {
		run.Success = err == nil
		run.RecordsParsed = sql.NullInt64{Int64: int64(len(series)), Valid: true}
		if err != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
		if cerr := c.store.CompleteFetchRun(run); cerr != nil {
			log.Printf("climate: complete fetch run: %v", cerr)
		}
	}
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		fetch := store.BenchmarkFetch{SeriesKey: c.fetcher.Key(), Start: c.from, End: c.to, FetchedAt: now}
		if err := c.store.ReplaceBenchmarkSeries(fetch, series); err != nil {
			log.Printf("climate: persist wide series: %v", err)
		}
	}
	return series, nil
}

// loadFromStore restores a persisted series that covers the wide range.
func (c *WideCache) loadFromStore() {
	if c.store == nil {
		return
	}
	fetch, days, err := c.store.GetBenchmarkSeries(c.fetcher.Key())
	if err != nil {
		log.Printf("climate: load cached wide series: %v", err)
		return
	}
	if fetch == nil || len(days) == 0 {
		return
	}
	if fetch.Start.After(c.from) || fetch.End.Before(c.to) {
		return
	}
	c.series = Series(days)
	c.fetchedAt = fetch.FetchedAt
}
