package ingest

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/stationhistory/internal/metrics"
	"github.com/lox/stationhistory/internal/source"
	"github.com/lox/stationhistory/internal/store"
)

// Discoverer finds the years a station has published a file for.
type Discoverer struct {
	source    source.Source
	store     *store.Store
	clock     clockwork.Clock
	startYear int
	ttl       time.Duration
}

// NewDiscoverer creates a Discoverer. st may be nil, in which case every call
// probes the source.
func NewDiscoverer(src source.Source, st *store.Store, clock clockwork.Clock, startYear int, ttl time.Duration) *Discoverer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Discoverer{
		source:    src,
		store:     st,
		clock:     clock,
		startYear: startYear,
		ttl:       ttl,
	}
}

// Discover probes startYear through the current calendar year in ascending
// order and returns the available ones. It never fails: a year that cannot be
// probed is treated as unavailable.
func (d *Discoverer) Discover(ctx context.Context, stationID string) []int {
	now := d.clock.Now()

	cached := d.cachedProbes(stationID)

	var years []int
	for year := d.startYear; year <= now.Year(); year++ {
		if p, ok := cached[year]; ok && now.Sub(p.CheckedAt) < d.ttl {
			metrics.YearProbesTotal.WithLabelValues("cached").Inc()
			if p.Available {
				years = append(years, year)
			}
			continue
		}

		available := d.probe(ctx, stationID, year)
		if available {
			metrics.YearProbesTotal.WithLabelValues("available").Inc()
			years = append(years, year)
		} else {
			metrics.YearProbesTotal.WithLabelValues("unavailable").Inc()
		}

		if d.store != nil && ctx.Err() == nil {
			p := store.YearProbe{StationID: stationID, Year: year, Available: available, CheckedAt: now}
			if err := d.store.UpsertYearProbe(p); err != nil {
				log.Printf("discover: cache probe %s/%d: %v", stationID, year, err)
			}
		}
	}
	return years
}

func (d *Discoverer) cachedProbes(stationID string) map[int]store.YearProbe {
	if d.store == nil {
		return nil
	}
	probes, err := d.store.GetYearProbes(stationID)
	if err != nil {
		log.Printf("discover: load cached probes for %s: %v", stationID, err)
		return nil
	}
	return probes
}

func (d *Discoverer) probe(ctx context.Context, stationID string, year int) bool {
	rc, err := d.source.Open(ctx, stationID, year)
	if err != nil {
		return false
	}
	defer rc.Close()
	return HasTimestampHeader(rc)
}
