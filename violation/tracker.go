package violation

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/logger"
	"github.com/teranos/relset/sym"
)

// Tracker is the user-facing violation lifecycle.
type Tracker struct {
	store  *Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewTracker creates a tracker over store. A nil logger disables logging.
func NewTracker(store *Store, log *zap.SugaredLogger) *Tracker {
	return &Tracker{store: store, logger: logger.OrNop(log), now: time.Now}
}

// Resolve marks an open violation as fixed. The note is optional.
func (t *Tracker) Resolve(ctx context.Context, id, actor, note string) (*Violation, error) {
	return t.transition(ctx, id, StatusResolved, actor, strings.TrimSpace(note))
}

// Acknowledge accepts an open violation's condition. A note is required.
func (t *Tracker) Acknowledge(ctx context.Context, id, actor, note string) (*Violation, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("violation %s: acknowledging requires a note", id),
			"explain why the condition is acceptable")
	}
	return t.transition(ctx, id, StatusAcknowledged, actor, note)
}

func (t *Tracker) transition(ctx context.Context, id string, to Status, actor, note string) (*Violation, error) {
	if err := t.store.Transition(ctx, id, to, SourceUser, actor, note, t.now()); err != nil {
		return nil, err
	}
	t.logger.Infow(sym.Violation+" violation "+string(to),
		logger.FieldViolationID, id,
		logger.FieldActorID, actor,
	)
	return t.store.Get(ctx, id)
}

// Get returns one violation.
func (t *Tracker) Get(ctx context.Context, id string) (*Violation, error) {
	return t.store.Get(ctx, id)
}

// ListOpen returns the set's open violations.
func (t *Tracker) ListOpen(ctx context.Context, setID string) ([]Violation, error) {
	return t.store.List(ctx, setID, StatusOpen)
}

// ListAll returns the set's violations, filtered by status when any are given.
func (t *Tracker) ListAll(ctx context.Context, setID string, statuses ...Status) ([]Violation, error) {
	return t.store.List(ctx, setID, statuses...)
}

// History returns the audit trail of one violation.
func (t *Tracker) History(ctx context.Context, id string) ([]Event, error) {
	if _, err := t.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return t.store.History(ctx, id)
}
