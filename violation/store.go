package violation

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/relset/db"
	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
)

const violationColumns = `id, set_id, run_id, kind, rule_id, field, severity,
	subject_type, subject_id, secondary_type, secondary_id,
	message, status, fingerprint, detected_at, resolved_at, resolution_note`

// Store is the SQLite-backed violation ledger.
type Store struct {
	db *sql.DB
}

// NewStore creates a new ledger over db
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// BeforeCommit runs inside the reconciliation transaction after the ledger
// has been updated. Returning an error rolls everything back.
type BeforeCommit func(ctx context.Context, tx *sql.Tx, delta *Delta) error

// Reconcile brings the set's open violations in line with one run's findings,
// in a single transaction:
//   - open rows whose fingerprint was not detected are resolved by the system
//   - findings with an open row are left alone
//   - every other finding gets a new open row
//
// If ctx is cancelled before commit nothing is written.
func (s *Store) Reconcile(ctx context.Context, setID, runID string, at time.Time, findings []Finding, hook BeforeCommit) (*Delta, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin reconciliation")
	}
	defer tx.Rollback()

	open, err := queryViolations(ctx, tx,
		`SELECT `+violationColumns+` FROM violations WHERE set_id = ? AND status = 'open' ORDER BY detected_at, id`,
		setID)
	if err != nil {
		return nil, err
	}

	detected := make(map[string]bool, len(findings))
	var fresh []Finding
	var freshPrints []string
	for _, f := range findings {
		fp := f.Fingerprint(setID)
		if detected[fp] {
			continue
		}
		detected[fp] = true
		fresh = append(fresh, f)
		freshPrints = append(freshPrints, fp)
	}

	stamp := db.FormatTime(at.UTC())
	delta := &Delta{}
	stillOpen := make(map[string]bool, len(open))

	for _, v := range open {
		if detected[v.Fingerprint] {
			stillOpen[v.Fingerprint] = true
			continue
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE violations SET status = 'resolved', resolved_at = ?, resolution_note = ?
			WHERE id = ? AND status = 'open'`,
			stamp, AutoResolveNote, v.ID,
		); err != nil {
			return nil, errors.Wrapf(err, "failed to auto-resolve violation %s", v.ID)
		}
		if err := insertEvent(ctx, tx, v.ID, StatusOpen, StatusResolved, SourceSystem, "", AutoResolveNote, stamp); err != nil {
			return nil, err
		}
		resolvedAt := at.UTC()
		v.Status = StatusResolved
		v.ResolvedAt = &resolvedAt
		v.ResolutionNote = AutoResolveNote
		delta.AutoResolved = append(delta.AutoResolved, v)
	}

	for i, f := range fresh {
		fp := freshPrints[i]
		if stillOpen[fp] {
			continue
		}
		v := Violation{
			ID:          uuid.New().String(),
			SetID:       setID,
			RunID:       runID,
			Kind:        f.Kind,
			RuleID:      f.RuleID,
			Field:       f.Field,
			Severity:    f.Severity,
			Subject:     f.Subject,
			Secondary:   f.Secondary,
			Message:     f.Message,
			Status:      StatusOpen,
			Fingerprint: fp,
			DetectedAt:  at.UTC(),
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO violations (`+violationColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, '')`,
			v.ID, v.SetID, v.RunID, v.Kind, nullable(v.RuleID), v.Field, v.Severity,
			v.Subject.Type, v.Subject.ID, nullable(v.Secondary.Type), nullable(v.Secondary.ID),
			v.Message, v.Status, v.Fingerprint, stamp,
		); err != nil {
			return nil, errors.Wrapf(err, "failed to record %s violation on %s", v.Kind, v.Subject)
		}
		if err := insertEvent(ctx, tx, v.ID, "", StatusOpen, SourceSystem, "", "", stamp); err != nil {
			return nil, err
		}
		delta.New = append(delta.New, v)
	}

	if hook != nil {
		if err := hook(ctx, tx, delta); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit reconciliation")
	}
	return delta, nil
}

// Transition moves an open violation to a terminal status and records the
// event. Violations that are not open fail with an invalid state transition.
func (s *Store) Transition(ctx context.Context, id string, to Status, source Source, actor, note string, at time.Time) error {
	if to != StatusResolved && to != StatusAcknowledged {
		return errors.NewInvalidRequestError("cannot transition violation to %q", to)
	}
	stamp := db.FormatTime(at.UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transition")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE violations SET status = ?, resolved_at = ?, resolution_note = ?
		WHERE id = ? AND status = 'open'`,
		to, stamp, note, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update violation %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var current Status
		err := tx.QueryRowContext(ctx, `SELECT status FROM violations WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.NewNotFoundError("violation %s not found", id)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to read violation %s", id)
		}
		return errors.InvalidTransitionf("violation "+id, "cannot move to %s: violation is %s, not open", to, current)
	}

	if err := insertEvent(ctx, tx, id, StatusOpen, to, source, actor, note, stamp); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transition")
}

// Get returns one violation.
func (s *Store) Get(ctx context.Context, id string) (*Violation, error) {
	list, err := queryViolations(ctx, s.db, `SELECT `+violationColumns+` FROM violations WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.NewNotFoundError("violation %s not found", id)
	}
	return &list[0], nil
}

// List returns a set's violations, oldest first, optionally limited to the
// given statuses.
func (s *Store) List(ctx context.Context, setID string, statuses ...Status) ([]Violation, error) {
	query := `SELECT ` + violationColumns + ` FROM violations WHERE set_id = ?`
	args := []any{setID}
	if len(statuses) > 0 {
		marks := make([]string, len(statuses))
		for i, st := range statuses {
			if !st.IsValid() {
				return nil, errors.NewInvalidRequestError("unknown violation status %q", st)
			}
			marks[i] = "?"
			args = append(args, st)
		}
		query += ` AND status IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY detected_at, id`
	return queryViolations(ctx, s.db, query, args...)
}

// History returns a violation's audit trail in order.
func (s *Store) History(ctx context.Context, id string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, violation_id, from_status, to_status, source, actor, note, at
		FROM violation_events WHERE violation_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query violation history")
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var at string
		if err := rows.Scan(&e.ID, &e.ViolationID, &e.From, &e.To, &e.Source, &e.Actor, &e.Note, &at); err != nil {
			return nil, errors.Wrap(err, "failed to scan violation event")
		}
		e.At = db.ParseTime(at)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate violation history")
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryViolations(ctx context.Context, q querier, query string, args ...any) ([]Violation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query violations")
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		var v Violation
		var ruleID, secType, secID, resolvedAt sql.NullString
		var detectedAt string
		if err := rows.Scan(
			&v.ID, &v.SetID, &v.RunID, &v.Kind, &ruleID, &v.Field, &v.Severity,
			&v.Subject.Type, &v.Subject.ID, &secType, &secID,
			&v.Message, &v.Status, &v.Fingerprint, &detectedAt, &resolvedAt, &v.ResolutionNote,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan violation")
		}
		v.RuleID = ruleID.String
		v.Secondary = entity.Ref{Type: secType.String, ID: secID.String}
		v.DetectedAt = db.ParseTime(detectedAt)
		if resolvedAt.Valid {
			t := db.ParseTime(resolvedAt.String)
			v.ResolvedAt = &t
		}
		out = append(out, v)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate violations")
}

func insertEvent(ctx context.Context, tx *sql.Tx, violationID string, from, to Status, source Source, actor, note, at string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO violation_events (violation_id, from_status, to_status, source, actor, note, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		violationID, from, to, source, actor, note, at)
	return errors.Wrapf(err, "failed to record event for violation %s", violationID)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
