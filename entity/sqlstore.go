package entity

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/teranos/relset/errors"
)

// SQLStore reads entities from the entities/entity_refs tables.
// Query narrows by entity type in SQL and evaluates the predicate in Go.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore creates a read-only entity store over db
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get returns the record for ref.
func (s *SQLStore) Get(ctx context.Context, ref Ref) (*Record, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM entities WHERE entity_type = ? AND id = ?`,
		ref.Type, ref.ID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound(ref)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get entity %s", ref)
	}
	return decodeRecord(ref, raw)
}

// Query returns records of entityType matching p, ordered by id.
func (s *SQLStore) Query(ctx context.Context, entityType string, p Predicate) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields FROM entities WHERE entity_type = ? ORDER BY id`,
		entityType,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s entities", entityType)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan entity")
		}
		rec, err := decodeRecord(Ref{Type: entityType, ID: id}, raw)
		if err != nil {
			return nil, err
		}
		if p.Match(rec) {
			out = append(out, rec)
		}
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate entities")
}

// ForeignKeysOf returns the references declared on ref.
func (s *SQLStore) ForeignKeysOf(ctx context.Context, ref Ref) ([]Ref, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT to_type, to_id FROM entity_refs WHERE from_type = ? AND from_id = ? ORDER BY to_type, to_id`,
		ref.Type, ref.ID,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list references of %s", ref)
	}
	defer rows.Close()

	var out []Ref
	for rows.Next() {
		var to Ref
		if err := rows.Scan(&to.Type, &to.ID); err != nil {
			return nil, errors.Wrap(err, "failed to scan reference")
		}
		out = append(out, to)
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate references")
}

func decodeRecord(ref Ref, raw string) (*Record, error) {
	fields := make(map[string]any)
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, errors.Wrapf(err, "failed to decode fields of %s", ref)
		}
	}
	return &Record{Ref: ref, Fields: fields}, nil
}
