// Package climate fetches a long daily temperature series from the
// Open-Meteo archive and derives month-day climatology and normal-period
// benchmarks from it.
package climate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/lox/stationhistory/internal/httputil"
	"github.com/lox/stationhistory/internal/metrics"
	"github.com/lox/stationhistory/internal/models"
)

const DefaultArchiveURL = "https://archive-api.open-meteo.com/v1/archive"

var (
	ErrUnavailable = errors.New("climate archive unavailable")
	ErrMalformed   = errors.New("malformed climate archive response")
)

const dateLayout = "2006-01-02"

// ArchiveClient requests daily temperature_2m max/min/mean for one point.
type ArchiveClient struct {
	baseURL   string
	latitude  float64
	longitude float64
	timezone  string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker

	maxElapsedTime time.Duration
}

func NewArchiveClient(baseURL string, latitude, longitude float64, timezone string, client *http.Client) *ArchiveClient {
	if baseURL == "" {
		baseURL = DefaultArchiveURL
	}
	if client == nil {
		client = httputil.NewClient(httputil.DefaultTimeout)
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "climate-archive",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("climate: circuit %s %s -> %s", name, from, to)
		},
	})
	return &ArchiveClient{
		baseURL:        baseURL,
		latitude:       latitude,
		longitude:      longitude,
		timezone:       timezone,
		client:         client,
		breaker:        cb,
		maxElapsedTime: 30 * time.Second,
	}
}

// Key identifies the series location for caching.
func (c *ArchiveClient) Key() string {
	return fmt.Sprintf("%.4f,%.4f", c.latitude, c.longitude)
}

type archiveResponse struct {
	Daily *struct {
		Time    []string   `json:"time"`
		TempMax []*float64 `json:"temperature_2m_max"`
		TempMin []*float64 `json:"temperature_2m_min"`
		TempAvg []*float64 `json:"temperature_2m_mean"`
	} `json:"daily"`
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// FetchDaily requests the daily series for the inclusive date range. Only the
// wide cache calls this; narrow windows are cut locally with Slice.
func (c *ArchiveClient) FetchDaily(ctx context.Context, from, to time.Time) (Series, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(c.latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(c.longitude, 'f', -1, 64))
	values.Set("start_date", from.Format(dateLayout))
	values.Set("end_date", to.Format(dateLayout))
	values.Set("daily", "temperature_2m_max,temperature_2m_min,temperature_2m_mean")
	values.Set("timezone", c.timezone)
	u := c.baseURL + "?" + values.Encode()

	var body []byte
	operation := func() error {
		_, err := c.breaker.Execute(func() (interface{}, error) {
			b, err := c.get(ctx, u)
			if err != nil {
				return nil, err
			}
			body = b
			return nil, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%w: circuit open: %v", ErrUnavailable, err))
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsedTime
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		metrics.ArchiveCallsTotal.WithLabelValues("error").Inc()
		if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrMalformed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	series, err := decodeArchive(body)
	if err != nil {
		metrics.ArchiveCallsTotal.WithLabelValues("malformed").Inc()
		return nil, err
	}
	metrics.ArchiveCallsTotal.WithLabelValues("ok").Inc()
	return series, nil
}

func (c *ArchiveClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("fetch archive: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if httputil.IsRetryableStatus(resp.StatusCode) {
		return nil, fmt.Errorf("fetch archive: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr archiveResponse
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Reason != "" {
			return nil, backoff.Permanent(fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, apiErr.Reason))
		}
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode))
	}
	return b, nil
}

func decodeArchive(body []byte) (Series, error) {
	var data archiveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if data.Error {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, data.Reason)
	}
	d := data.Daily
	if d == nil || d.Time == nil || d.TempMax == nil || d.TempMin == nil || d.TempAvg == nil {
		return nil, fmt.Errorf("%w: missing daily columns", ErrMalformed)
	}
	n := len(d.Time)
	if len(d.TempMax) != n || len(d.TempMin) != n || len(d.TempAvg) != n {
		return nil, fmt.Errorf("%w: daily columns differ in length", ErrMalformed)
	}

	series := make(Series, 0, n)
	for i, ts := range d.Time {
		date, err := time.Parse(dateLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: parse date %q: %v", ErrMalformed, ts, err)
		}
		series = append(series, models.BenchmarkDay{
			Date:     date,
			TempHigh: nullable(d.TempMax[i]),
			TempLow:  nullable(d.TempMin[i]),
			TempAvg:  nullable(d.TempAvg[i]),
		})
	}
	series.sort()
	return series, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
