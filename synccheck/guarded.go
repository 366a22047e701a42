package synccheck

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/logger"
)

// guardedStore wraps the entity store for the duration of one run. Every
// call gets its own timeout, shares the run's rate limiter, and is retried
// with exponential backoff. A not-found answer from Get is an answer, not a
// failure, and is never retried.
type guardedStore struct {
	inner   entity.Store
	opts    Options
	limiter *rate.Limiter
	logger  *zap.SugaredLogger
	sleep   func(ctx context.Context, d time.Duration) error
}

func newGuardedStore(inner entity.Store, opts Options, log *zap.SugaredLogger) *guardedStore {
	g := &guardedStore{inner: inner, opts: opts, logger: log, sleep: sleepCtx}
	if opts.MaxCallsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.MaxCallsPerSecond), 1)
	}
	return g
}

func (g *guardedStore) Get(ctx context.Context, ref entity.Ref) (*entity.Record, error) {
	return guard(ctx, g, "get "+ref.String(), func(ctx context.Context) (*entity.Record, error) {
		return g.inner.Get(ctx, ref)
	})
}

func (g *guardedStore) Query(ctx context.Context, entityType string, p entity.Predicate) ([]*entity.Record, error) {
	return guard(ctx, g, "query "+entityType, func(ctx context.Context) ([]*entity.Record, error) {
		return g.inner.Query(ctx, entityType, p)
	})
}

func (g *guardedStore) ForeignKeysOf(ctx context.Context, ref entity.Ref) ([]entity.Ref, error) {
	return guard(ctx, g, "foreign keys of "+ref.String(), func(ctx context.Context) ([]entity.Ref, error) {
		return g.inner.ForeignKeysOf(ctx, ref)
	})
}

func guard[T any](ctx context.Context, g *guardedStore, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := g.opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			storeRetries.Inc()
			g.logger.Debugw("retrying entity store call",
				logger.FieldOperation, op,
				logger.FieldAttempt, attempt,
				logger.FieldError, last)
			if err := g.sleep(ctx, g.opts.backoff(attempt-1)); err != nil {
				return zero, err
			}
		}
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return zero, ctx.Err()
				}
				return zero, errors.Wrap(err, "rate limiter")
			}
		}

		v, err := withTimeout(ctx, g.opts.CallTimeout, fn)
		if err == nil || errors.IsNotFoundError(err) {
			return v, err
		}
		if ctx.Err() != nil {
			// The run itself was cancelled or superseded.
			return zero, ctx.Err()
		}
		last = err
	}

	return zero, errors.WithDetailf(
		errors.StoreUnavailable(last, op),
		"gave up after %d attempts", attempts)
}

type callResult[T any] struct {
	v   T
	err error
}

// withTimeout runs fn with its own deadline. A store that ignores its
// context is abandoned when the deadline passes.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan callResult[T], 1)
	go func() {
		v, err := fn(callCtx)
		done <- callResult[T]{v: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return res.v, timedOut(res.err, timeout)
		}
		return res.v, res.err
	case <-callCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, timedOut(callCtx.Err(), timeout)
	}
}

func timedOut(err error, timeout time.Duration) error {
	return errors.Mark(errors.Wrapf(err, "timed out after %s", timeout), errors.ErrTimeout)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
