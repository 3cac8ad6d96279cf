package sparql

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kanselarij-vlaanderen/themis-export-service/errors"
)

// LinearBackoff waits Initial*attempt before retry attempt n (1-indexed),
// capped at Max when Max is positive.
type LinearBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns the wait before the given retry attempt.
func (l LinearBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := l.Initial * time.Duration(attempt)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("sparql endpoint returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), body)
}

// retryable decides whether a failed attempt is worth repeating. Transport
// failures, 5xx, 429 and the configured status codes are; everything else
// (including a cancelled context) is not.
func (c *Client) retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return c.retryStatus[statusErr.StatusCode]
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Anything else from the transport (connection reset, EOF) is transient too.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
