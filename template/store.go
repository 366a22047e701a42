// Package template captures a set's rules as a reusable, member-free bundle
// and applies it to other sets.
//
// Templates are versioned by name: saving under an existing name creates the
// next minor version instead of overwriting. A template reference is an id,
// a name (latest version), or name@constraint such as "storm@~1.1".
package template

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/teranos/relset/db"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/rule"
)

// FirstVersion is the version of a newly named template.
const FirstVersion = "1.0.0"

// Template is a snapshot of a set's rules.
type Template struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	SourceSetID string      `json:"source_set_id"`
	Rules       []rule.Rule `json:"rules"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Store persists templates.
type Store struct {
	db *sql.DB
}

// NewStore creates a new template storage instance
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save inserts t as the next version of its name and fills in ID, Version
// and CreatedAt.
func (s *Store) Save(ctx context.Context, t *Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.NewInvalidRequestError("template name cannot be empty")
	}
	if strings.Contains(t.Name, "@") {
		return errors.NewInvalidRequestError("template name %q cannot contain '@'", t.Name)
	}

	encoded, err := json.Marshal(t.Rules)
	if err != nil {
		return errors.Wrap(err, "failed to encode template rules")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	versions, err := versionsOf(ctx, tx, t.Name)
	if err != nil {
		return err
	}
	next := FirstVersion
	if len(versions) > 0 {
		next = versions[len(versions)-1].IncMinor().String()
	}

	t.ID = uuid.New().String()
	t.Version = next
	t.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO templates (id, name, version, source_set_id, rules, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Version, t.SourceSetID, string(encoded), db.FormatTime(t.CreatedAt))
	if db.IsUniqueViolation(err) {
		return errors.NewConflictError("template %s@%s already exists", t.Name, t.Version)
	}
	if err != nil {
		return errors.Wrap(err, "failed to save template")
	}
	return errors.Wrap(tx.Commit(), "failed to commit template")
}

// Get returns a template by id.
func (s *Store) Get(ctx context.Context, id string) (*Template, error) {
	list, err := s.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.NewNotFoundError("template %s not found", id)
	}
	return list[0], nil
}

// Resolve finds a template by id, by name (latest version), or by
// name@constraint (highest version satisfying the constraint).
func (s *Store) Resolve(ctx context.Context, ref string) (*Template, error) {
	if t, err := s.Get(ctx, ref); err == nil || !errors.IsNotFoundError(err) {
		return t, err
	}

	name, constraint, hasConstraint := strings.Cut(ref, "@")
	candidates, err := s.query(ctx, `WHERE name = ?`, name)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.NewNotFoundError("template %q not found", ref)
	}
	sortByVersion(candidates)

	if !hasConstraint {
		return candidates[len(candidates)-1], nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, errors.NewInvalidRequestError("invalid version constraint %q: %v", constraint, err)
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		v, err := semver.NewVersion(candidates[i].Version)
		if err == nil && c.Check(v) {
			return candidates[i], nil
		}
	}
	return nil, errors.NewNotFoundError("no version of template %q satisfies %s", name, constraint)
}

// List returns every template version, by name then version.
func (s *Store) List(ctx context.Context) ([]*Template, error) {
	list, err := s.query(ctx, ``)
	if err != nil {
		return nil, err
	}
	sortByVersion(list)
	return list, nil
}

func (s *Store) query(ctx context.Context, where string, args ...any) ([]*Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, version, source_set_id, rules, created_at FROM templates `+where, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query templates")
	}
	defer rows.Close()

	var out []*Template
	for rows.Next() {
		var t Template
		var rules, created string
		if err := rows.Scan(&t.ID, &t.Name, &t.Version, &t.SourceSetID, &rules, &created); err != nil {
			return nil, errors.Wrap(err, "failed to scan template")
		}
		if err := json.Unmarshal([]byte(rules), &t.Rules); err != nil {
			return nil, errors.Wrapf(err, "template %s: failed to decode rules", t.ID)
		}
		t.CreatedAt = db.ParseTime(created)
		out = append(out, &t)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate templates")
}

func versionsOf(ctx context.Context, tx *sql.Tx, name string) ([]*semver.Version, error) {
	rows, err := tx.QueryContext(ctx, `SELECT version FROM templates WHERE name = ?`, name)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list template versions")
	}
	defer rows.Close()

	var out []*semver.Version
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan template version")
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "template %q has invalid version %q", name, raw)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate template versions")
	}
	sort.Sort(semver.Collection(out))
	return out, nil
}

// sortByVersion orders by name, then semantic version ascending.
func sortByVersion(list []*Template) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		vi, erri := semver.NewVersion(list[i].Version)
		vj, errj := semver.NewVersion(list[j].Version)
		if erri != nil || errj != nil {
			return list[i].Version < list[j].Version
		}
		return vi.LessThan(vj)
	})
}
