package violation

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	reltest "github.com/teranos/relset/internal/testing"
)

var (
	pipe1 = entity.Ref{Type: "pipe", ID: "P-1"}
	pipe2 = entity.Ref{Type: "pipe", ID: "P-2"}
	inlet = entity.Ref{Type: "structure", ID: "S-9"}
)

func setupLedger(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	db := reltest.CreateTestDB(t)
	_, err := db.Exec(`INSERT INTO relationship_sets (id, name, created_at, updated_at) VALUES ('set-1', 'Storm-Main', '', '')`)
	require.NoError(t, err)
	return db, NewStore(db)
}

func missingMaterial(subject entity.Ref) Finding {
	return Finding{
		Kind: KindMetadata, RuleID: "r-1", Field: "material", Severity: "error",
		Subject: subject, Message: "field 'material' is required but missing",
	}
}

func TestFingerprintIsStable(t *testing.T) {
	a := missingMaterial(pipe1).Fingerprint("set-1")
	assert.Equal(t, a, missingMaterial(pipe1).Fingerprint("set-1"))
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, missingMaterial(pipe2).Fingerprint("set-1"))
	assert.NotEqual(t, a, missingMaterial(pipe1).Fingerprint("set-2"))

	// Messages carry live values and must not affect identity.
	changed := missingMaterial(pipe1)
	changed.Message = "something else"
	assert.Equal(t, a, changed.Fingerprint("set-1"))

	link := Finding{Kind: KindLinkIntegrity, Subject: pipe1, Secondary: inlet}
	other := Finding{Kind: KindLinkIntegrity, Subject: pipe1, Secondary: entity.Ref{Type: "structure", ID: "S-10"}}
	assert.NotEqual(t, link.Fingerprint("set-1"), other.Fingerprint("set-1"))
}

func TestReconcileOpensAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	_, store := setupLedger(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	findings := []Finding{missingMaterial(pipe1), missingMaterial(pipe1), {Kind: KindExistence, Severity: "error", Subject: pipe2, Message: "pipe/P-2 no longer exists"}}
	delta, err := store.Reconcile(ctx, "set-1", "run-1", at, findings, nil)
	require.NoError(t, err)
	require.Len(t, delta.New, 2)
	assert.Empty(t, delta.AutoResolved)
	assert.Equal(t, StatusOpen, delta.New[0].Status)
	assert.Equal(t, at, delta.New[0].DetectedAt)

	// Same findings again: nothing new, nothing resolved.
	delta, err = store.Reconcile(ctx, "set-1", "run-2", at.Add(time.Hour), findings, nil)
	require.NoError(t, err)
	assert.Empty(t, delta.New)
	assert.Empty(t, delta.AutoResolved)

	open, err := store.List(ctx, "set-1", StatusOpen)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "run-1", open[0].RunID)
	assert.Equal(t, "r-1", open[0].RuleID)
	assert.True(t, open[1].Secondary.IsZero())
}

func TestReconcileAutoResolves(t *testing.T) {
	ctx := context.Background()
	_, store := setupLedger(t)
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	second := first.Add(24 * time.Hour)

	delta, err := store.Reconcile(ctx, "set-1", "run-1", first, []Finding{missingMaterial(pipe1)}, nil)
	require.NoError(t, err)
	id := delta.New[0].ID

	delta, err = store.Reconcile(ctx, "set-1", "run-2", second, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, delta.New)
	require.Len(t, delta.AutoResolved, 1)
	assert.Equal(t, id, delta.AutoResolved[0].ID)

	v, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, v.Status)
	assert.Equal(t, AutoResolveNote, v.ResolutionNote)
	require.NotNil(t, v.ResolvedAt)
	assert.True(t, second.Equal(*v.ResolvedAt))

	events, err := store.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, Status(""), events[0].From)
	assert.Equal(t, StatusOpen, events[0].To)
	assert.Equal(t, StatusResolved, events[1].To)
	assert.Equal(t, SourceSystem, events[1].Source)
}

func TestReconcileReappearanceCreatesNewRow(t *testing.T) {
	ctx := context.Background()
	_, store := setupLedger(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	delta, err := store.Reconcile(ctx, "set-1", "run-1", at, []Finding{missingMaterial(pipe1)}, nil)
	require.NoError(t, err)
	original := delta.New[0]

	require.NoError(t, store.Transition(ctx, original.ID, StatusAcknowledged, SourceUser, "dana", "legacy asset", at.Add(time.Minute)))
	before, err := store.Get(ctx, original.ID)
	require.NoError(t, err)

	delta, err = store.Reconcile(ctx, "set-1", "run-2", at.Add(time.Hour), []Finding{missingMaterial(pipe1)}, nil)
	require.NoError(t, err)
	require.Len(t, delta.New, 1)
	assert.NotEqual(t, original.ID, delta.New[0].ID)
	assert.Equal(t, original.Fingerprint, delta.New[0].Fingerprint)

	after, err := store.Get(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, StatusAcknowledged, after.Status)
	assert.Equal(t, "legacy asset", after.ResolutionNote)
}

func TestReconcileHookFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	_, store := setupLedger(t)

	_, err := store.Reconcile(ctx, "set-1", "run-1", time.Now(), []Finding{missingMaterial(pipe1)},
		func(context.Context, *sql.Tx, *Delta) error { return errors.New("run record unavailable") })
	require.Error(t, err)

	all, err := store.List(ctx, "set-1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReconcileCancelledWritesNothing(t *testing.T) {
	_, store := setupLedger(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := store.Reconcile(ctx, "set-1", "run-1", time.Now(), []Finding{missingMaterial(pipe1)},
		func(context.Context, *sql.Tx, *Delta) error {
			cancel()
			return nil
		})
	require.Error(t, err)

	all, err := store.List(context.Background(), "set-1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestReconcileRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM violations WHERE set_id = \? AND status = 'open'`).
		WithArgs("set-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO violations`).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = NewStore(db).Reconcile(context.Background(), "set-1", "run-1", time.Now(), []Finding{missingMaterial(pipe1)}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransition(t *testing.T) {
	ctx := context.Background()
	_, store := setupLedger(t)
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	delta, err := store.Reconcile(ctx, "set-1", "run-1", at, []Finding{missingMaterial(pipe1)}, nil)
	require.NoError(t, err)
	id := delta.New[0].ID

	require.NoError(t, store.Transition(ctx, id, StatusResolved, SourceUser, "dana", "", at))

	err = store.Transition(ctx, id, StatusAcknowledged, SourceUser, "dana", "late", at)
	assert.True(t, errors.IsInvalidStateTransition(err))
	assert.Contains(t, err.Error(), id)
	assert.Contains(t, err.Error(), "resolved")

	err = store.Transition(ctx, "missing", StatusResolved, SourceUser, "", "", at)
	assert.True(t, errors.IsNotFoundError(err))

	err = store.Transition(ctx, id, StatusOpen, SourceUser, "", "", at)
	assert.True(t, errors.IsInvalidRequestError(err))

	events, err := store.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, SourceUser, events[1].Source)
	assert.Equal(t, "dana", events[1].Actor)
}

func TestListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	_, store := setupLedger(t)
	at := time.Now()

	delta, err := store.Reconcile(ctx, "set-1", "run-1", at, []Finding{missingMaterial(pipe1), missingMaterial(pipe2)}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Transition(ctx, delta.New[0].ID, StatusAcknowledged, SourceUser, "", "ok", at))

	acked, err := store.List(ctx, "set-1", StatusAcknowledged)
	require.NoError(t, err)
	require.Len(t, acked, 1)
	assert.Equal(t, pipe1, acked[0].Subject)

	both, err := store.List(ctx, "set-1", StatusOpen, StatusAcknowledged)
	require.NoError(t, err)
	assert.Len(t, both, 2)

	_, err = store.List(ctx, "set-1", "closed")
	assert.True(t, errors.IsInvalidRequestError(err))
}
