// Package synccheck re-evaluates relationship sets against the entity store
// and reconciles the findings into the violation ledger.
//
// A run goes Running → Completed | Failed. Runs for the same set are
// single-flight; runs for different sets proceed in parallel. A run that
// fails for any reason leaves the ledger exactly as it found it.
package synccheck

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/logger"
	"github.com/teranos/relset/relset"
	"github.com/teranos/relset/sym"
	"github.com/teranos/relset/violation"
)

// ErrSuperseded is returned by a run that was cancelled by a newer run on
// the same set.
var ErrSuperseded = errors.New("sync check superseded by a newer run")

// SetLoader loads a set with its members and rules.
type SetLoader interface {
	GetSet(ctx context.Context, id string) (*relset.Set, error)
}

// Result is what a completed run changed.
type Result struct {
	Run                    *Run                  `json:"run"`
	NewViolations          []violation.Violation `json:"new_violations"`
	AutoResolvedViolations []violation.Violation `json:"auto_resolved_violations"`
}

type runSlot struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// Orchestrator runs sync checks.
type Orchestrator struct {
	sets     SetLoader
	resolver *relset.Resolver
	entities entity.Store
	ledger   *violation.Store
	runs     *RunStore
	opts     Options
	logger   *zap.SugaredLogger
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]*runSlot
}

// New creates an orchestrator. A nil logger disables logging.
func New(sets SetLoader, resolver *relset.Resolver, entities entity.Store, ledger *violation.Store, runs *RunStore, opts Options, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		sets:     sets,
		resolver: resolver,
		entities: entities,
		ledger:   ledger,
		runs:     runs,
		opts:     opts,
		logger:   logger.OrNop(log),
		now:      time.Now,
		inflight: make(map[string]*runSlot),
	}
}

// Run executes one sync check on setID.
//
// While another run on the same set is in flight the request fails with an
// invalid state transition, or, with Options.Supersede, cancels the older run
// and starts once it has stopped. The older run then returns ErrSuperseded.
func (o *Orchestrator) Run(ctx context.Context, setID string) (*Result, error) {
	runCtx, slot, prev, err := o.acquire(ctx, setID)
	if err != nil {
		return nil, err
	}
	defer o.release(setID, slot)

	if prev != nil {
		<-prev.done
		if err := o.cancelled(ctx, runCtx); err != nil {
			return nil, err
		}
	}

	set, err := o.sets.GetSet(runCtx, setID)
	if err != nil {
		if cerr := o.cancelled(ctx, runCtx); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}

	started := o.now()
	run, err := o.runs.Start(runCtx, slot.id, setID, started)
	if err != nil {
		if cerr := o.cancelled(ctx, runCtx); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	runCtx = logger.WithRunID(logger.WithSetID(runCtx, setID), run.ID)
	log := logger.FromContext(runCtx, o.logger)
	log.Infow(sym.Sync + " sync check started")

	result, err := o.execute(runCtx, set, run, started, log)
	elapsed := time.Since(started)
	runDuration.Observe(elapsed.Seconds())

	if err != nil {
		if cerr := o.cancelled(ctx, runCtx); cerr != nil {
			err = cerr
		}
		// Record the failure even if the caller has gone away.
		if ferr := o.runs.Fail(context.WithoutCancel(ctx), run, err, o.now()); ferr != nil {
			log.Errorw("failed to record sync run failure", logger.FieldError, ferr)
		}
		runsTotal.WithLabelValues(string(RunFailed)).Inc()
		log.Warnw(sym.Sync+" sync check failed",
			logger.FieldError, err,
			logger.FieldDurationMS, elapsed.Milliseconds())
		if errors.IsEntityStoreUnavailable(err) {
			err = errors.WithHint(err, errors.HintNoChanges)
		}
		return nil, errors.Wrapf(err, "sync check on set %s", setID)
	}

	runsTotal.WithLabelValues(string(RunCompleted)).Inc()
	for _, v := range result.NewViolations {
		violationsOpened.WithLabelValues(string(v.Kind)).Inc()
	}
	violationsAutoResolved.Add(float64(len(result.AutoResolvedViolations)))

	log.Infow(sym.Sync+" sync check completed",
		"members", run.MembersChecked,
		"new", len(result.NewViolations),
		"auto_resolved", len(result.AutoResolvedViolations),
		logger.FieldDurationMS, elapsed.Milliseconds())
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, set *relset.Set, run *Run, started time.Time, log *zap.SugaredLogger) (*Result, error) {
	store := newGuardedStore(o.entities, o.opts, log)

	members, err := o.resolver.Resolve(ctx, set, store)
	if err != nil {
		return nil, err
	}
	run.MembersChecked = len(members)
	log.Debugw(sym.Resolve+" members resolved", logger.FieldCount, len(members))

	findings, err := detect(ctx, set, members, store)
	if err != nil {
		return nil, err
	}

	delta, err := o.ledger.Reconcile(ctx, set.ID, run.ID, started, findings,
		func(ctx context.Context, tx *sql.Tx, d *violation.Delta) error {
			run.NewCount = len(d.New)
			run.AutoResolvedCount = len(d.AutoResolved)
			return o.runs.completeTx(ctx, tx, run, o.now())
		})
	if err != nil {
		return nil, err
	}

	return &Result{
		Run:                    run,
		NewViolations:          delta.New,
		AutoResolvedViolations: delta.AutoResolved,
	}, nil
}

// acquire claims the set's run slot. With supersede, the previous holder is
// cancelled and returned so the caller can wait for it.
func (o *Orchestrator) acquire(ctx context.Context, setID string) (context.Context, *runSlot, *runSlot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev := o.inflight[setID]
	if prev != nil {
		if !o.opts.Supersede {
			return nil, nil, nil, errors.InvalidTransitionf("set "+setID,
				"sync check %s is already running", prev.id)
		}
		prev.cancel()
		o.logger.Infow(sym.Sync+" superseding running sync check",
			logger.FieldSetID, setID,
			"superseded", prev.id)
	}

	runCtx, cancel := context.WithCancel(ctx)
	slot := &runSlot{id: uuid.New().String(), cancel: cancel, done: make(chan struct{})}
	o.inflight[setID] = slot
	return runCtx, slot, prev, nil
}

func (o *Orchestrator) release(setID string, slot *runSlot) {
	o.mu.Lock()
	if o.inflight[setID] == slot {
		delete(o.inflight, setID)
	}
	o.mu.Unlock()
	slot.cancel()
	close(slot.done)
}

// cancelled distinguishes a superseded run from a caller cancellation.
func (o *Orchestrator) cancelled(parent, runCtx context.Context) error {
	if runCtx.Err() == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	return ErrSuperseded
}
