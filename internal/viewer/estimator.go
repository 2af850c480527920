package viewer

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type Estimate struct {
	// OffsetMs is client time minus server time at the last sample.
	OffsetMs        float64
	OneWayLatencyMs float64
}

// Estimator tracks the server clock offset from SYNC_TIME round trips. Only
// the latest sample is kept.
type Estimator struct {
	clock clock.Clock

	mu            sync.Mutex
	requestSentAt time.Time
	pending       bool
	estimate      Estimate
	sampled       bool
}

func NewEstimator(clk clock.Clock) *Estimator {
	return &Estimator{clock: clk}
}

// requestTimeout is how long a request may stay unanswered before a new one
// replaces it.
const requestTimeout = 5 * time.Second

// MarkRequestSent must be called right before a SYNC_TIME request is written.
// It reports false while an earlier request is still unanswered.
func (e *Estimator) MarkRequestSent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if e.pending && now.Sub(e.requestSentAt) < requestTimeout {
		return false
	}
	e.requestSentAt = now
	e.pending = true

	return true
}

// CancelRequest forgets a request that could not be sent.
func (e *Estimator) CancelRequest() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = false
}

// Observe records a sample from a SYNC_TIME reply. It reports false and keeps
// the previous estimate when no request is pending.
func (e *Estimator) Observe(serverNow int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.pending {
		return false
	}

	now := e.clock.Now()
	e.estimate = Estimate{
		OffsetMs:        float64(now.UnixMilli() - serverNow),
		OneWayLatencyMs: float64(now.Sub(e.requestSentAt).Milliseconds()) / 2,
	}
	e.pending = false
	e.sampled = true

	return true
}

func (e *Estimator) Estimate() (Estimate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.estimate, e.sampled
}

// ServerToClientTime translates a server timestamp in ms to local time in ms.
// Without a sample the timestamp is returned unchanged.
func (e *Estimator) ServerToClientTime(serverTs int64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.sampled {
		return serverTs
	}

	return serverTs + int64(e.estimate.OffsetMs+e.estimate.OneWayLatencyMs)
}
