package entity

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"

	"github.com/BurntSushi/toml"

	"github.com/teranos/relset/errors"
)

// fixtureFile is the TOML layout accepted by ImportTOML:
//
//	[[entity]]
//	type = "pipe"
//	id = "P-1"
//	refs = ["structure/S-1"]
//	[entity.fields]
//	material = "PVC"
//	diameter = 300
type fixtureFile struct {
	Entity []fixtureEntity `toml:"entity"`
}

type fixtureEntity struct {
	Type   string         `toml:"type"`
	ID     string         `toml:"id"`
	Refs   []string       `toml:"refs"`
	Fields map[string]any `toml:"fields"`
}

// ImportOptions controls ImportTOML.
type ImportOptions struct {
	// Replace clears all mirrored entities and references before importing.
	Replace bool
}

// ImportTOML loads entity fixtures into the SQLStore tables in one
// transaction and returns how many entities were written. Existing entities
// with the same reference are overwritten, including their references.
func ImportTOML(ctx context.Context, db *sql.DB, r io.Reader, opts ImportOptions) (int, error) {
	var ff fixtureFile
	if _, err := toml.NewDecoder(r).Decode(&ff); err != nil {
		return 0, errors.Wrap(err, "failed to decode entity fixtures")
	}

	type prepared struct {
		ref    Ref
		fields string
		refs   []Ref
	}
	batch := make([]prepared, 0, len(ff.Entity))
	for i, fe := range ff.Entity {
		if fe.Type == "" || fe.ID == "" {
			return 0, errors.NewInvalidRequestError("entity #%d: type and id are required", i+1)
		}
		fields := fe.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		encoded, err := json.Marshal(fields)
		if err != nil {
			return 0, errors.Wrapf(err, "entity %s/%s: failed to encode fields", fe.Type, fe.ID)
		}
		p := prepared{ref: Ref{Type: fe.Type, ID: fe.ID}, fields: string(encoded)}
		for _, raw := range fe.Refs {
			to, err := ParseRef(raw)
			if err != nil {
				return 0, errors.Wrapf(err, "entity %s", p.ref)
			}
			p.refs = append(p.refs, to)
		}
		batch = append(batch, p)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin import")
	}
	defer tx.Rollback()

	if opts.Replace {
		for _, stmt := range []string{`DELETE FROM entity_refs`, `DELETE FROM entities`} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return 0, errors.Wrap(err, "failed to clear entities")
			}
		}
	}

	for _, p := range batch {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entities (entity_type, id, fields) VALUES (?, ?, ?)
			ON CONFLICT (entity_type, id) DO UPDATE SET fields = excluded.fields`,
			p.ref.Type, p.ref.ID, p.fields,
		); err != nil {
			return 0, errors.Wrapf(err, "failed to write entity %s", p.ref)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM entity_refs WHERE from_type = ? AND from_id = ?`,
			p.ref.Type, p.ref.ID,
		); err != nil {
			return 0, errors.Wrapf(err, "failed to reset references of %s", p.ref)
		}
		for _, to := range p.refs {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO entity_refs (from_type, from_id, to_type, to_id)
				VALUES (?, ?, ?, ?)`,
				p.ref.Type, p.ref.ID, to.Type, to.ID,
			); err != nil {
				return 0, errors.Wrapf(err, "failed to write reference %s -> %s", p.ref, to)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit import")
	}
	return len(batch), nil
}
