// Package external classifies failures of outbound calls to the issue
// tracker, the wiki and model providers into domain error kinds.
package external

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"basegraph.app/scribe/common/ratelimit"
	"basegraph.app/scribe/internal/domain"
)

const defaultBackoff = 10 * time.Second

// Call describes one finished outbound request.
type Call struct {
	Service string // "jira", "gitlab", "confluence"
	Op      string
	Status  int    // 0 when no response was received
	Header  http.Header
	Err     error
}

// Classify maps a failed call to a *domain.Error. Auth failures become
// configuration errors, timeouts, 429 and 5xx become transient, 404 becomes
// not found and other 4xx become validation errors. A 429 also pauses the
// limiter for the Retry-After window. A cancelled ctx is returned unwrapped.
func Classify(ctx context.Context, limiter *ratelimit.Limiter, c Call) error {
	if c.Err == nil && c.Status < 300 {
		return nil
	}
	if errors.Is(c.Err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}

	op := c.Service + "." + c.Op
	switch {
	case errors.Is(c.Err, context.DeadlineExceeded):
		return domain.Transient(op, c.Service+" request timed out, try again", c.Err)
	case c.Status == http.StatusUnauthorized || c.Status == http.StatusForbidden:
		return &domain.Error{
			Kind:    domain.KindConfiguration,
			Op:      op,
			Message: c.Service + " rejected the configured credentials",
			Err:     c.Err,
		}
	case c.Status == http.StatusTooManyRequests:
		limiter.Backoff(retryAfter(c.Header))
		return domain.Transient(op, c.Service+" is rate limiting requests, try again later", c.Err)
	case c.Status >= 500:
		return domain.Transient(op, fmt.Sprintf("%s returned %d, try again", c.Service, c.Status), c.Err)
	case c.Status == http.StatusNotFound:
		return &domain.Error{Kind: domain.KindNotFound, Op: op, Message: c.Service + " resource not found", Err: c.Err}
	case c.Status >= 400:
		return &domain.Error{
			Kind:    domain.KindValidation,
			Op:      op,
			Message: fmt.Sprintf("%s rejected the request (%d)", c.Service, c.Status),
			Err:     c.Err,
		}
	}

	var netErr net.Error
	if errors.As(c.Err, &netErr) {
		return domain.Transient(op, c.Service+" is unreachable, try again", c.Err)
	}
	return domain.Transient(op, c.Service+" request failed, try again", c.Err)
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return defaultBackoff
	}
	v := h.Get("Retry-After")
	if v == "" {
		return defaultBackoff
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return defaultBackoff
}
