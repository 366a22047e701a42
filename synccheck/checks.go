package synccheck

import (
	"context"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/relset"
	"github.com/teranos/relset/rule"
	"github.com/teranos/relset/violation"
)

// detect runs the existence, link integrity and metadata checks over the
// set's resolved members. Any store error aborts detection entirely.
func detect(ctx context.Context, set *relset.Set, members []relset.Resolved, store entity.Store) ([]violation.Finding, error) {
	var findings []violation.Finding
	exists := make(map[entity.Ref]bool)

	for _, m := range members {
		rec, err := store.Get(ctx, m.Ref)
		if errors.IsNotFoundError(err) {
			exists[m.Ref] = false
			// A filter that stops matching is the filter working, not drift.
			if m.Static {
				findings = append(findings, violation.Finding{
					Kind:     violation.KindExistence,
					Severity: string(rule.SeverityError),
					Subject:  m.Ref,
					Message:  m.Ref.String() + " no longer exists in the entity store",
				})
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		exists[m.Ref] = true

		links, err := linkFindings(ctx, m.Ref, store, exists)
		if err != nil {
			return nil, err
		}
		findings = append(findings, links...)

		for _, r := range set.RulesFor(m.Ref.Type) {
			res := rule.Evaluate(r, rec)
			if res.Passed {
				continue
			}
			findings = append(findings, violation.Finding{
				Kind:     violation.KindMetadata,
				RuleID:   r.ID,
				Field:    r.Field,
				Severity: string(r.Severity),
				Subject:  m.Ref,
				Message:  res.Message,
			})
		}
	}
	return findings, nil
}

// linkFindings reports every declared reference of subject that does not
// resolve. exists caches lookups across members.
func linkFindings(ctx context.Context, subject entity.Ref, store entity.Store, exists map[entity.Ref]bool) ([]violation.Finding, error) {
	targets, err := store.ForeignKeysOf(ctx, subject)
	if errors.IsNotFoundError(err) {
		// Deleted between Get and here; the next run will see it missing.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []violation.Finding
	for _, to := range targets {
		ok, seen := exists[to]
		if !seen {
			_, err := store.Get(ctx, to)
			switch {
			case err == nil:
				ok = true
			case errors.IsNotFoundError(err):
				ok = false
			default:
				return nil, err
			}
			exists[to] = ok
		}
		if ok {
			continue
		}
		out = append(out, violation.Finding{
			Kind:      violation.KindLinkIntegrity,
			Severity:  string(rule.SeverityError),
			Subject:   subject,
			Secondary: to,
			Message:   subject.String() + " references " + to.String() + ", which does not exist",
		})
	}
	return out, nil
}
