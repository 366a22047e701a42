package relset

import (
	"context"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/schema"
)

// Resolved is one concrete member reference produced by resolution.
// Static is true when any static member names the reference, even if a
// filter group also returned it.
type Resolved struct {
	Ref    entity.Ref
	Static bool
}

// Resolver turns membership declarations into concrete references.
type Resolver struct {
	registry schema.Registry
}

// NewResolver creates a resolver validating against reg.
func NewResolver(reg schema.Registry) *Resolver {
	return &Resolver{registry: reg}
}

// Resolve returns the set's members, de-duplicated, in declaration order.
//
// Static references are not checked for existence here. Filter groups are
// queried through store every time. Any store error is returned as is and
// aborts resolution; callers must not treat a partial list as complete.
func (r *Resolver) Resolve(ctx context.Context, set *Set, store entity.Store) ([]Resolved, error) {
	var out []Resolved
	index := make(map[entity.Ref]int)

	add := func(ref entity.Ref, static bool) {
		if i, ok := index[ref]; ok {
			if static {
				out[i].Static = true
			}
			return
		}
		index[ref] = len(out)
		out = append(out, Resolved{Ref: ref, Static: static})
	}

	for _, m := range set.Members {
		if err := ValidateMember(m, r.registry); err != nil {
			return nil, err
		}

		if m.Kind == MemberStatic {
			add(m.Ref(), true)
			continue
		}

		records, err := store.Query(ctx, m.EntityType, m.Predicate)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve %s", m.Label())
		}
		for _, rec := range records {
			add(rec.Ref, false)
		}
	}
	return out, nil
}
