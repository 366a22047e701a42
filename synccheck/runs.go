package synccheck

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/relset/db"
	"github.com/teranos/relset/errors"
)

// RunStatus is the state of one sync check run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the persisted record of one sync check.
type Run struct {
	ID                string     `json:"id"`
	SetID             string     `json:"set_id"`
	Status            RunStatus  `json:"status"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Error             string     `json:"error,omitempty"`
	MembersChecked    int        `json:"members_checked"`
	NewCount          int        `json:"new_count"`
	AutoResolvedCount int        `json:"auto_resolved_count"`
}

// RunStore persists run records in sync_runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new run record store
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Start records a run as running. An empty id is generated.
func (s *RunStore) Start(ctx context.Context, id, setID string, at time.Time) (*Run, error) {
	if id == "" {
		id = uuid.New().String()
	}
	run := &Run{ID: id, SetID: setID, Status: RunRunning, StartedAt: at.UTC()}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, set_id, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.SetID, run.Status, db.FormatTime(run.StartedAt))
	if err != nil {
		return nil, errors.Wrap(err, "failed to record sync run")
	}
	return run, nil
}

// completeTx marks the run completed inside the reconciliation transaction,
// so the ledger and the run record commit together.
func (s *RunStore) completeTx(ctx context.Context, tx *sql.Tx, run *Run, at time.Time) error {
	done := at.UTC()
	_, err := tx.ExecContext(ctx, `
		UPDATE sync_runs SET status = ?, completed_at = ?, members_checked = ?, new_count = ?, auto_resolved_count = ?
		WHERE id = ?`,
		RunCompleted, db.FormatTime(done), run.MembersChecked, run.NewCount, run.AutoResolvedCount, run.ID)
	if err != nil {
		return errors.Wrap(err, "failed to complete sync run")
	}
	run.Status = RunCompleted
	run.CompletedAt = &done
	return nil
}

// Fail marks the run failed with the cause.
func (s *RunStore) Fail(ctx context.Context, run *Run, cause error, at time.Time) error {
	done := at.UTC()
	run.Status = RunFailed
	run.CompletedAt = &done
	run.Error = cause.Error()
	run.NewCount, run.AutoResolvedCount = 0, 0
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs SET status = ?, completed_at = ?, error = ?, members_checked = ?
		WHERE id = ?`,
		run.Status, db.FormatTime(done), run.Error, run.MembersChecked, run.ID)
	return errors.Wrap(err, "failed to mark sync run failed")
}

// Get returns one run.
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	runs, err := s.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, errors.NewNotFoundError("sync run %s not found", id)
	}
	return runs[0], nil
}

// List returns a set's runs, newest first. limit <= 0 means all.
func (s *RunStore) List(ctx context.Context, setID string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx, `WHERE set_id = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`, setID, limit)
}

func (s *RunStore) query(ctx context.Context, where string, args ...any) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, set_id, status, started_at, completed_at, error, members_checked, new_count, auto_resolved_count
		FROM sync_runs `+where, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query sync runs")
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		var r Run
		var started string
		var completed sql.NullString
		if err := rows.Scan(&r.ID, &r.SetID, &r.Status, &started, &completed, &r.Error,
			&r.MembersChecked, &r.NewCount, &r.AutoResolvedCount); err != nil {
			return nil, errors.Wrap(err, "failed to scan sync run")
		}
		r.StartedAt = db.ParseTime(started)
		if completed.Valid {
			t := db.ParseTime(completed.String)
			r.CompletedAt = &t
		}
		out = append(out, &r)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate sync runs")
}
