package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/stationhistory/internal/httputil"
)

// HTTP reads files from a web location such as a raw repository mirror.
type HTTP struct {
	baseURL        string
	client         *http.Client
	maxElapsedTime time.Duration
}

func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	return &HTTP{
		baseURL:        strings.TrimRight(baseURL, "/"),
		client:         httputil.NewClient(timeout),
		maxElapsedTime: time.Minute,
	}
}

func (h *HTTP) Scheme() string { return "http" }

// Open streams the file body. The caller must close it.
func (h *HTTP) Open(ctx context.Context, stationID string, year int) (io.ReadCloser, error) {
	url := h.baseURL + "/" + Path(stationID, year)

	var body io.ReadCloser
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("fetch %s: %w", url, err)
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, url))
		}
		if httputil.IsRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", url, resp.StatusCode, string(b)))
		}

		body = resp.Body
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = h.maxElapsedTime
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}
