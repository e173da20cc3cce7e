// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across components.
package httputil

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// RetryBaseDelay controls the base duration for exponential backoff.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

// RateLimitMultiplier scales the backoff after an HTTP 429 response.
const RateLimitMultiplier = 2.0

const defaultMaxRetries = 3

// Backoff returns the wait before retry number attempt (zero-based):
// 2^attempt * RetryBaseDelay, doubled when the upstream rate limited us.
func Backoff(attempt int, rateLimited bool) time.Duration {
	mult := 1.0
	if rateLimited {
		mult = RateLimitMultiplier
	}
	return time.Duration(math.Pow(2, float64(attempt)) * mult * float64(RetryBaseDelay))
}

// Client sends requests through a shared Limiter and retries transient
// failures. A zero Client uses http.DefaultClient and no limiter, and
// sends each request once.
type Client struct {
	HTTP    *http.Client
	Limiter *Limiter

	// MaxRetries is the number of retries after the first attempt. Zero
	// disables retries; a negative value selects the default of 3.
	MaxRetries int
}

// Do executes req with retries. Transport errors, HTTP 429, and 5xx
// responses are retried with exponential backoff; 429 backs off longer.
// Every attempt first waits on the limiter. After exhausting retries the
// last response is returned so the caller can inspect it; if the last
// attempt failed at the transport level its error is returned.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := c.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := client.Do(req.Clone(ctx))
		rateLimited := false
		switch {
		case err != nil:
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil, eris.Wrap(err, "request cancelled")
			}
			if attempt >= maxRetries {
				return nil, eris.Wrapf(err, "after %d retries", maxRetries)
			}
		case resp.StatusCode == http.StatusTooManyRequests:
			rateLimited = true
			c.Limiter.Penalize(Backoff(attempt, true))
			fallthrough
		case resp.StatusCode >= 500:
			// Exhausted retries: return the response as-is.
			if attempt >= maxRetries {
				return resp, nil
			}
			// Drain and close the body before retrying.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		default:
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(Backoff(attempt, rateLimited)):
		}
	}
}
