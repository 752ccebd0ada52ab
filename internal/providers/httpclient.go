// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/kitsuneislife/miau-index/internal/buildinfo"
	"github.com/kitsuneislife/miau-index/internal/domain"
	"github.com/kitsuneislife/miau-index/internal/models"
)

const maxResponseBytes = 8 << 20

// errStatus marks an HTTP status worth retrying.
type errStatus struct {
	code int
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// restClient is the transport shared by all catalog clients: one rate
// limiter, bounded retries with backoff, and a common user agent.
type restClient struct {
	http     *http.Client
	limiter  *rate.Limiter
	attempts uint
	source   models.SourceTag
	headers  map[string]string
}

func newRESTClient(source models.SourceTag, timeout time.Duration, attempts int, rps float64) *restClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if attempts <= 0 {
		attempts = 3
	}
	if rps <= 0 {
		rps = 2
	}
	return &restClient{
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		attempts: uint(attempts),
		source:   source,
	}
}

// getJSON fetches url and decodes the body into dest. A 404 returns
// (false, nil) so callers can treat not-found as an empty result. 429 and
// 5xx are retried; other statuses fail immediately.
func (c *restClient) getJSON(ctx context.Context, url string, dest any) (bool, error) {
	return c.doJSON(ctx, http.MethodGet, url, nil, dest)
}

func (c *restClient) doJSON(ctx context.Context, method, url string, body func() (io.Reader, error), dest any) (bool, error) {
	var found bool

	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			var reader io.Reader
			if body != nil {
				r, err := body()
				if err != nil {
					return retry.Unrecoverable(err)
				}
				reader = r
			}

			req, err := http.NewRequestWithContext(ctx, method, url, reader)
			if err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "building request"))
			}
			req.Header.Set("User-Agent", buildinfo.UserAgent)
			req.Header.Set("Accept", "application/json")
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			for k, v := range c.headers {
				req.Header.Set(k, v)
			}

			resp, err := c.http.Do(req)
			if err != nil {
				return errors.Wrap(err, "executing request")
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				found = false
				return nil
			case resp.StatusCode == http.StatusTooManyRequests:
				return &errStatus{code: resp.StatusCode}
			case resp.StatusCode >= 500:
				return &errStatus{code: resp.StatusCode}
			case resp.StatusCode != http.StatusOK:
				return retry.Unrecoverable(&errStatus{code: resp.StatusCode})
			}

			data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			if err != nil {
				return errors.Wrap(err, "reading response")
			}
			if err := json.Unmarshal(data, dest); err != nil {
				return retry.Unrecoverable(errors.Wrap(err, "decoding response"))
			}

			found = true
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Debug().
				Str("provider", string(c.source)).
				Uint("attempt", n+1).
				Err(err).
				Msg("retrying provider request")
		}),
	)
	if err != nil {
		var se *errStatus
		if errors.As(err, &se) && se.code == http.StatusTooManyRequests {
			return false, domain.NewRateLimitError(string(c.source), 0)
		}
		return false, domain.NewProviderError(string(c.source), err)
	}

	return found, nil
}

// ping reports whether url answers with any non-5xx status inside a short
// deadline. Used by IsAvailable.
func (c *restClient) ping(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode < 500
}
