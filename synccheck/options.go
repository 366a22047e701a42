package synccheck

import "time"

// Options tunes how a run talks to the entity store.
type Options struct {
	// CallTimeout bounds each individual entity store call.
	CallTimeout time.Duration

	// MaxAttempts is how many times a failing call is tried before the run
	// fails. Values below 1 mean 1.
	MaxAttempts int

	// Backoff between attempts: InitialBackoff, doubled per attempt, capped
	// at MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxCallsPerSecond throttles entity store calls within one run.
	// Zero means unlimited.
	MaxCallsPerSecond float64

	// Supersede makes a new run request cancel an in-flight run on the same
	// set instead of being rejected.
	Supersede bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		CallTimeout:    5 * time.Second,
		MaxAttempts:    4,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// backoff returns the wait before retry number attempt (1-based): 100ms,
// 200ms, 400ms, ... up to MaxBackoff. A zero InitialBackoff retries at once.
func (o Options) backoff(attempt int) time.Duration {
	if o.InitialBackoff <= 0 {
		return 0
	}
	d := o.InitialBackoff
	for i := 1; i < attempt && d < o.MaxBackoff; i++ {
		d *= 2
	}
	if d > o.MaxBackoff {
		d = o.MaxBackoff
	}
	return d
}
