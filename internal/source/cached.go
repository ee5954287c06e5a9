package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/stationhistory/internal/metrics"
	"github.com/lox/stationhistory/internal/store"
)

// Cached keeps file bodies in the store. Past years are immutable and served
// from the cache indefinitely; the current year expires after currentYearTTL.
type Cached struct {
	inner          Source
	store          *store.Store
	clock          clockwork.Clock
	currentYearTTL time.Duration
}

func NewCached(inner Source, st *store.Store, clock clockwork.Clock, currentYearTTL time.Duration) *Cached {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cached{
		inner:          inner,
		store:          st,
		clock:          clock,
		currentYearTTL: currentYearTTL,
	}
}

func (c *Cached) Scheme() string { return c.inner.Scheme() }

func (c *Cached) Open(ctx context.Context, stationID string, year int) (io.ReadCloser, error) {
	now := c.clock.Now()

	cached, err := c.store.GetSourceFile(stationID, year)
	if err != nil {
		log.Printf("source: cache lookup %s: %v", Path(stationID, year), err)
		cached = nil
	}
	if cached != nil && c.fresh(cached, year, now) {
		metrics.SourceCacheTotal.WithLabelValues("hit").Inc()
		return io.NopCloser(bytes.NewReader(cached.Payload)), nil
	}
	metrics.SourceCacheTotal.WithLabelValues("miss").Inc()

	payload, err := c.fetch(ctx, stationID, year)
	if err != nil {
		if cached != nil {
			log.Printf("source: refresh %s failed, serving cached copy from %s: %v",
				Path(stationID, year), cached.FetchedAt.Format(time.RFC3339), err)
			metrics.SourceCacheTotal.WithLabelValues("stale").Inc()
			return io.NopCloser(bytes.NewReader(cached.Payload)), nil
		}
		return nil, err
	}

	if err := c.store.PutSourceFile(stationID, year, payload, now); err != nil {
		log.Printf("source: cache store %s: %v", Path(stationID, year), err)
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (c *Cached) fetch(ctx context.Context, stationID string, year int) ([]byte, error) {
	rc, err := c.inner.Open(ctx, stationID, year)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", Path(stationID, year), err)
	}
	return payload, nil
}

func (c *Cached) fresh(f *store.SourceFile, year int, now time.Time) bool {
	if year < now.Year() {
		return true
	}
	return now.Sub(f.FetchedAt) < c.currentYearTTL
}
