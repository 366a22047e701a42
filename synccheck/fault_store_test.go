package synccheck

import (
	"context"
	"sync"
	"time"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
)

// faultStore wraps a MemStore and injects failures, hangs and blocking.
type faultStore struct {
	*entity.MemStore

	mu         sync.Mutex
	failures   int  // next N calls fail
	failAlways bool // every call fails
	hang       time.Duration
	block      chan struct{} // calls wait until closed or cancelled
	entered    chan struct{} // signalled when a call starts waiting on block
	calls      int
}

func newFaultStore() *faultStore {
	return &faultStore{MemStore: entity.NewMemStore(), entered: make(chan struct{}, 1)}
}

func (f *faultStore) failNext(n int) {
	f.mu.Lock()
	f.failures = n
	f.mu.Unlock()
}

func (f *faultStore) setFailAlways(v bool) {
	f.mu.Lock()
	f.failAlways = v
	f.mu.Unlock()
}

func (f *faultStore) setHang(d time.Duration) {
	f.mu.Lock()
	f.hang = d
	f.mu.Unlock()
}

func (f *faultStore) blockCalls() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = make(chan struct{})
	return f.block
}

func (f *faultStore) unblock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.block != nil {
		close(f.block)
		f.block = nil
	}
}

func (f *faultStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *faultStore) before(ctx context.Context) error {
	f.mu.Lock()
	f.calls++
	block, hang := f.block, f.hang
	fail := f.failAlways || f.failures > 0
	if f.failures > 0 {
		f.failures--
	}
	f.mu.Unlock()

	if block != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if hang > 0 {
		// Ignores ctx on purpose, like a stuck driver.
		time.Sleep(hang)
	}
	if fail {
		return errors.New("connection reset by peer")
	}
	return nil
}

func (f *faultStore) Get(ctx context.Context, ref entity.Ref) (*entity.Record, error) {
	if err := f.before(ctx); err != nil {
		return nil, err
	}
	return f.MemStore.Get(ctx, ref)
}

func (f *faultStore) Query(ctx context.Context, entityType string, p entity.Predicate) ([]*entity.Record, error) {
	if err := f.before(ctx); err != nil {
		return nil, err
	}
	return f.MemStore.Query(ctx, entityType, p)
}

func (f *faultStore) ForeignKeysOf(ctx context.Context, ref entity.Ref) ([]entity.Ref, error) {
	if err := f.before(ctx); err != nil {
		return nil, err
	}
	return f.MemStore.ForeignKeysOf(ctx, ref)
}
