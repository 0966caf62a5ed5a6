// Package idempotency records Idempotency-Key attempts so a retried request
// replays the first outcome instead of running twice.
package idempotency

import (
	"errors"
	"time"
)

// DefaultTTL is how long a completed attempt is remembered.
const DefaultTTL = 24 * time.Hour

const pendingMarker = "\x00pending"

// ErrInFlight is returned by Begin while an earlier attempt with the same key
// has neither completed nor been released.
var ErrInFlight = errors.New("idempotent request already in flight")

// Attempt is the outcome of claiming a key.
type Attempt struct {
	// Started is true when this call claimed the key and should do the work.
	Started bool
	// Result is the recorded outcome of a completed earlier attempt.
	Result string
}

func key(scope, k string) string {
	return "idem:" + scope + ":" + k
}
