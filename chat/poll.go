package chat

import (
	"context"
	"time"
)

const pollInterval = 100 * time.Millisecond

// pollUntil repeatedly evaluates cond until it reports true, the timeout
// elapses, or ctx is cancelled. Errors from cond count as "not yet": the
// page may be mid-render and a retry usually succeeds.
func pollUntil(ctx context.Context, timeout time.Duration, cond func() (bool, error)) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		if ok, err := cond(); err == nil && ok {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
		}
	}
}
