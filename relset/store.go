package relset

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/relset/db"
	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/rule"
	"github.com/teranos/relset/schema"
)

// Store persists sets, their members and their rules.
type Store struct {
	db *sql.DB
}

// NewStore creates a new set storage instance
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateSet inserts a new set. Members and rules on s are ignored; add them
// with AddMember and AddRules.
func (s *Store) CreateSet(ctx context.Context, set *Set) error {
	if set.Name == "" {
		return errors.NewInvalidRequestError("set name cannot be empty")
	}
	if set.ID == "" {
		set.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	set.CreatedAt = now
	set.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationship_sets (id, name, description, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		set.ID, set.Name, set.Description, set.Category,
		db.FormatTime(now), db.FormatTime(now),
	)
	if db.IsUniqueViolation(err) {
		return errors.NewConflictError("set %q already exists", set.Name)
	}
	if err != nil {
		return errors.Wrap(err, "failed to create set")
	}
	return nil
}

// GetSet loads a set with its members and rules.
func (s *Store) GetSet(ctx context.Context, id string) (*Set, error) {
	set, err := s.getHeader(ctx, id)
	if err != nil {
		return nil, err
	}
	if set.Members, err = s.listMembers(ctx, id); err != nil {
		return nil, err
	}
	if set.Rules, err = s.ListRules(ctx, id); err != nil {
		return nil, err
	}
	return set, nil
}

// GetSetByName loads a set by its unique name.
func (s *Store) GetSetByName(ctx context.Context, name string) (*Set, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM relationship_sets WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("set %q not found", name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to look up set")
	}
	return s.GetSet(ctx, id)
}

// ListSets returns every set without members or rules, ordered by name.
func (s *Store) ListSets(ctx context.Context) ([]*Set, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, category, created_at, updated_at
		FROM relationship_sets ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sets")
	}
	defer rows.Close()

	var out []*Set
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate sets")
}

func (s *Store) getHeader(ctx context.Context, id string) (*Set, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, category, created_at, updated_at
		FROM relationship_sets WHERE id = ?`, id)
	set, err := scanSet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("set %s not found", id)
	}
	return set, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSet(sc scanner) (*Set, error) {
	var set Set
	var created, updated string
	if err := sc.Scan(&set.ID, &set.Name, &set.Description, &set.Category, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan set")
	}
	set.CreatedAt = db.ParseTime(created)
	set.UpdatedAt = db.ParseTime(updated)
	return &set, nil
}

// AddMember appends a member to a set. A static reference already present
// in the set is a conflict.
func (s *Store) AddMember(ctx context.Context, m *Member) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now().UTC()

	var entityID, predicate sql.NullString
	switch m.Kind {
	case MemberStatic:
		entityID = sql.NullString{String: m.EntityID, Valid: true}
	case MemberFilter:
		encoded, err := entity.MarshalPredicate(m.Predicate)
		if err != nil {
			return err
		}
		predicate = sql.NullString{String: encoded, Valid: true}
	default:
		return errors.NewInvalidRequestError("unknown member kind %q", m.Kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := touchSet(ctx, tx, m.SetID, m.CreatedAt); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM set_members WHERE set_id = ?`, m.SetID,
	).Scan(&m.Position); err != nil {
		return errors.Wrap(err, "failed to compute member position")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO set_members (id, set_id, kind, entity_type, entity_id, predicate, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.SetID, m.Kind, m.EntityType, entityID, predicate, m.Position,
		db.FormatTime(m.CreatedAt),
	)
	if db.IsUniqueViolation(err) {
		return errors.NewConflictError("%s is already a member of set %s", m.Ref(), m.SetID)
	}
	if err != nil {
		return errors.Wrap(err, "failed to add member")
	}
	return errors.Wrap(tx.Commit(), "failed to commit member")
}

// RemoveMember deletes one member from a set.
func (s *Store) RemoveMember(ctx context.Context, setID, memberID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM set_members WHERE set_id = ? AND id = ?`, setID, memberID)
	if err != nil {
		return errors.Wrap(err, "failed to remove member")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("member %s not found in set %s", memberID, setID)
	}
	return nil
}

func (s *Store) listMembers(ctx context.Context, setID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, set_id, kind, entity_type, entity_id, predicate, position, created_at
		FROM set_members WHERE set_id = ? ORDER BY position`, setID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list members")
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var m Member
		var entityID, predicate sql.NullString
		var created string
		if err := rows.Scan(&m.ID, &m.SetID, &m.Kind, &m.EntityType, &entityID, &predicate, &m.Position, &created); err != nil {
			return nil, errors.Wrap(err, "failed to scan member")
		}
		m.EntityID = entityID.String
		if predicate.Valid {
			if m.Predicate, err = entity.UnmarshalPredicate(predicate.String); err != nil {
				return nil, errors.Wrapf(err, "member %s", m.ID)
			}
		}
		m.CreatedAt = db.ParseTime(created)
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate members")
}

// AddRules appends already-validated rules to a set in one transaction,
// assigning fresh ids.
func (s *Store) AddRules(ctx context.Context, setID string, rules ...rule.Rule) ([]rule.Rule, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := touchSet(ctx, tx, setID, now); err != nil {
		return nil, err
	}
	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM set_rules WHERE set_id = ?`, setID,
	).Scan(&next); err != nil {
		return nil, errors.Wrap(err, "failed to compute rule position")
	}

	out := make([]rule.Rule, 0, len(rules))
	for i, r := range rules {
		r.ID = uuid.New().String()
		list, err := json.Marshal(nonNil(r.ExpectedList))
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode expected list")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO set_rules (id, set_id, position, entity_type, field, check_type, value_type,
				expected, expected_list, severity, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, setID, next+i, r.EntityType, r.Field, r.Check, r.ValueType,
			r.Expected, string(list), r.Severity, r.Description, db.FormatTime(now),
		); err != nil {
			return nil, errors.Wrapf(err, "failed to add %s", r.Label())
		}
		out = append(out, r)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit rules")
	}
	return out, nil
}

// RemoveRule deletes one rule. Violations it produced keep their rule id.
func (s *Store) RemoveRule(ctx context.Context, setID, ruleID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM set_rules WHERE set_id = ? AND id = ?`, setID, ruleID)
	if err != nil {
		return errors.Wrap(err, "failed to remove rule")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("rule %s not found in set %s", ruleID, setID)
	}
	return nil
}

// ListRules returns a set's rules in order.
func (s *Store) ListRules(ctx context.Context, setID string) ([]rule.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_type, field, check_type, value_type, expected, expected_list, severity, description
		FROM set_rules WHERE set_id = ? ORDER BY position`, setID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list rules")
	}
	defer rows.Close()

	var out []rule.Rule
	for rows.Next() {
		var r rule.Rule
		var vt, list string
		if err := rows.Scan(&r.ID, &r.EntityType, &r.Field, &r.Check, &vt, &r.Expected, &list, &r.Severity, &r.Description); err != nil {
			return nil, errors.Wrap(err, "failed to scan rule")
		}
		r.ValueType = schema.ValueType(vt)
		if err := json.Unmarshal([]byte(list), &r.ExpectedList); err != nil {
			return nil, errors.Wrapf(err, "rule %s: failed to decode expected list", r.ID)
		}
		if len(r.ExpectedList) == 0 {
			r.ExpectedList = nil
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate rules")
}

// touchSet bumps updated_at and fails with not found for unknown sets.
func touchSet(ctx context.Context, tx *sql.Tx, setID string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE relationship_sets SET updated_at = ? WHERE id = ?`,
		db.FormatTime(at), setID)
	if err != nil {
		return errors.Wrap(err, "failed to update set")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("set %s not found", setID)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
