// Package fetch provides the rate-limited HTTP layer shared by all
// upstream sources.
package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/mchmarny/georisk/pkg/metrics"
	"github.com/mchmarny/georisk/pkg/net"
)

// ErrSourceUnavailable marks a source that could not be reached even
// after retries. Callers skip the source for the rest of the batch.
var ErrSourceUnavailable = errors.New("source unavailable")

// Fetcher issues JSON GET requests for one source, serialized through
// the shared Limiter. Transient failures retry with exponential backoff
// inside the client; whatever survives the retry ceiling surfaces as
// ErrSourceUnavailable.
type Fetcher struct {
	source  string
	client  *resty.Client
	limiter *Limiter
}

func New(source string, hc *http.Client, limiter *Limiter, timeout time.Duration, retries int, backoff time.Duration) *Fetcher {
	return &Fetcher{
		source:  source,
		client:  net.NewRestyClient(hc, timeout, retries, backoff),
		limiter: limiter,
	}
}

// GetJSON fetches url with the given query params and decodes the
// response body into out.
func (f *Fetcher) GetJSON(ctx context.Context, url string, params map[string]string, out interface{}) error {
	if err := f.limiter.Acquire(ctx, f.source); err != nil {
		return errors.Wrapf(err, "waiting for %s slot", f.source)
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(out).
		Get(url)
	if err != nil {
		metrics.FetchRequests.WithLabelValues(f.source, "error").Inc()
		return errors.Wrapf(ErrSourceUnavailable, "%s: %v", f.source, err)
	}
	if resp.IsError() {
		metrics.FetchRequests.WithLabelValues(f.source, "error").Inc()
		return errors.Wrapf(ErrSourceUnavailable, "%s: status %d", f.source, resp.StatusCode())
	}

	metrics.FetchRequests.WithLabelValues(f.source, "ok").Inc()
	return nil
}
