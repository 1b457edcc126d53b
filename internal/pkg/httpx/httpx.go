package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// StatusError wraps a non-2xx response so callers can classify it.
type StatusError struct {
	Code       int
	URL        string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s", e.Code, e.URL)
}

func (e *StatusError) HTTPStatusCode() int { return e.Code }

// CheckResponse returns a *StatusError for non-2xx responses.
func CheckResponse(resp *http.Response) error {
	if resp == nil {
		return fmt.Errorf("nil response")
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	u := ""
	if resp.Request != nil && resp.Request.URL != nil {
		u = resp.Request.URL.Redacted()
	}
	return &StatusError{
		Code:       resp.StatusCode,
		URL:        u,
		RetryAfter: RetryAfterDuration(resp, 0, time.Minute),
	}
}

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// IsRateLimited reports whether err carries a 429.
func IsRateLimited(err error) bool {
	var sc HTTPStatusCoder
	return errors.As(err, &sc) && sc.HTTPStatusCode() == http.StatusTooManyRequests
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return IsRetryableHTTPStatus(sc.HTTPStatusCode())
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	j := 0.2
	delta := base.Seconds() * j
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

// RetryPolicy bounds in-call retries of a single HTTP exchange.
type RetryPolicy struct {
	Initial    time.Duration
	Max        time.Duration
	MaxRetries uint64
}

var DefaultRetryPolicy = RetryPolicy{Initial: 500 * time.Millisecond, Max: 8 * time.Second, MaxRetries: 3}

// Retry runs op with capped exponential backoff. Errors that IsRetryableError rejects stop immediately.
// onRetry may be nil.
func Retry(ctx context.Context, p RetryPolicy, op func() error, onRetry func(err error, wait time.Duration)) error {
	eb := backoff.NewExponentialBackOff()
	if p.Initial > 0 {
		eb.InitialInterval = p.Initial
	}
	if p.Max > 0 {
		eb.MaxInterval = p.Max
	}
	eb.MaxElapsedTime = 0
	var b backoff.BackOff = backoff.WithMaxRetries(eb, p.MaxRetries)
	b = backoff.WithContext(b, ctx)

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(wrapped, b, func(err error, wait time.Duration) {
		if onRetry != nil {
			onRetry(err, wait)
		}
	})
}
