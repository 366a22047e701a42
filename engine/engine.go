// Package engine is the entry point to the compliance rule engine. It wires
// the set store, member resolver, sync check orchestrator, violation tracker
// and template manager over one database, and exposes the operations callers
// use.
package engine

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/logger"
	"github.com/teranos/relset/relset"
	"github.com/teranos/relset/rule"
	"github.com/teranos/relset/schema"
	"github.com/teranos/relset/sym"
	"github.com/teranos/relset/synccheck"
	"github.com/teranos/relset/template"
	"github.com/teranos/relset/violation"
)

// Engine implements the relationship set operations.
type Engine struct {
	sets      *relset.Store
	registry  schema.Registry
	tracker   *violation.Tracker
	runs      *synccheck.RunStore
	orch      *synccheck.Orchestrator
	templates *template.Manager
	logger    *zap.SugaredLogger
}

// New creates an engine over a migrated database. The registry and entity
// store are external collaborators; relset only reads them.
func New(db *sql.DB, reg schema.Registry, entities entity.Store, opts synccheck.Options, log *zap.SugaredLogger) *Engine {
	log = logger.OrNop(log)
	sets := relset.NewStore(db)
	ledger := violation.NewStore(db)
	runs := synccheck.NewRunStore(db)

	return &Engine{
		sets:      sets,
		registry:  reg,
		tracker:   violation.NewTracker(ledger, log.Named("violation")),
		runs:      runs,
		orch:      synccheck.New(sets, relset.NewResolver(reg), entities, ledger, runs, opts, log.Named("synccheck")),
		templates: template.NewManager(sets, template.NewStore(db), reg, log.Named("template")),
		logger:    log,
	}
}

// CreateSetRequest describes a new relationship set.
type CreateSetRequest struct {
	Name        string
	Description string
	Category    string
}

// CreateSet creates an empty set.
func (e *Engine) CreateSet(ctx context.Context, req CreateSetRequest) (*relset.Set, error) {
	set := &relset.Set{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Category:    req.Category,
	}
	if err := e.sets.CreateSet(ctx, set); err != nil {
		return nil, err
	}
	e.logger.Infow(sym.Set+" set created", logger.FieldSetID, set.ID, "name", set.Name)
	return set, nil
}

// GetSet returns a set with its members and rules.
func (e *Engine) GetSet(ctx context.Context, setID string) (*relset.Set, error) {
	return e.sets.GetSet(ctx, setID)
}

// FindSet looks a set up by id, falling back to its name.
func (e *Engine) FindSet(ctx context.Context, idOrName string) (*relset.Set, error) {
	set, err := e.sets.GetSet(ctx, idOrName)
	if errors.IsNotFoundError(err) {
		return e.sets.GetSetByName(ctx, idOrName)
	}
	return set, err
}

// ListSets returns every set, without members or rules.
func (e *Engine) ListSets(ctx context.Context) ([]*relset.Set, error) {
	return e.sets.ListSets(ctx)
}

// AddStaticMember adds a fixed entity reference to a set. The entity type
// must be known to the registry; the entity itself need not exist.
func (e *Engine) AddStaticMember(ctx context.Context, setID string, ref entity.Ref) (*relset.Member, error) {
	return e.addMember(ctx, relset.Member{
		SetID: setID, Kind: relset.MemberStatic, EntityType: ref.Type, EntityID: ref.ID,
	})
}

// AddFilterGroup adds a live filter over entityType to a set.
func (e *Engine) AddFilterGroup(ctx context.Context, setID, entityType string, p entity.Predicate) (*relset.Member, error) {
	return e.addMember(ctx, relset.Member{
		SetID: setID, Kind: relset.MemberFilter, EntityType: entityType, Predicate: p,
	})
}

func (e *Engine) addMember(ctx context.Context, m relset.Member) (*relset.Member, error) {
	if err := relset.ValidateMember(m, e.registry); err != nil {
		return nil, err
	}
	if err := e.sets.AddMember(ctx, &m); err != nil {
		return nil, err
	}
	e.logger.Infow(sym.Set+" member added",
		logger.FieldSetID, m.SetID,
		"member_id", m.ID,
		"kind", m.Kind,
		logger.FieldEntityType, m.EntityType)
	return &m, nil
}

// RemoveMember deletes a member from a set.
func (e *Engine) RemoveMember(ctx context.Context, setID, memberID string) error {
	return e.sets.RemoveMember(ctx, setID, memberID)
}

// AddRule validates r against the registry and appends it to the set.
// Invalid definitions fail with a configuration error naming the rule.
func (e *Engine) AddRule(ctx context.Context, setID string, r rule.Rule) (rule.Rule, error) {
	r.ID = ""
	valid, err := rule.Validate(r, e.registry)
	if err != nil {
		return rule.Rule{}, err
	}
	added, err := e.sets.AddRules(ctx, setID, valid)
	if err != nil {
		return rule.Rule{}, err
	}
	e.logger.Infow(sym.Rule+" rule added",
		logger.FieldSetID, setID,
		logger.FieldRuleID, added[0].ID,
		"check", added[0].Check,
		"field", added[0].EntityType+"."+added[0].Field)
	return added[0], nil
}

// RemoveRule deletes a rule from a set. Its violations keep their history.
func (e *Engine) RemoveRule(ctx context.Context, setID, ruleID string) error {
	return e.sets.RemoveRule(ctx, setID, ruleID)
}

// RunSyncCheck re-evaluates a set and reconciles the violation ledger.
func (e *Engine) RunSyncCheck(ctx context.Context, setID string) (*synccheck.Result, error) {
	return e.orch.Run(ctx, setID)
}

// ListRuns returns a set's sync runs, newest first.
func (e *Engine) ListRuns(ctx context.Context, setID string, limit int) ([]*synccheck.Run, error) {
	return e.runs.List(ctx, setID, limit)
}

// ResolveViolation marks an open violation as fixed.
func (e *Engine) ResolveViolation(ctx context.Context, violationID, actor, note string) (*violation.Violation, error) {
	return e.tracker.Resolve(ctx, violationID, actor, note)
}

// AcknowledgeViolation accepts an open violation. note is required.
func (e *Engine) AcknowledgeViolation(ctx context.Context, violationID, actor, note string) (*violation.Violation, error) {
	return e.tracker.Acknowledge(ctx, violationID, actor, note)
}

// ListViolations returns a set's violations, optionally filtered by status.
func (e *Engine) ListViolations(ctx context.Context, setID string, statuses ...violation.Status) ([]violation.Violation, error) {
	if _, err := e.sets.GetSet(ctx, setID); err != nil {
		return nil, err
	}
	return e.tracker.ListAll(ctx, setID, statuses...)
}

// ViolationHistory returns a violation's audit trail.
func (e *Engine) ViolationHistory(ctx context.Context, violationID string) ([]violation.Event, error) {
	return e.tracker.History(ctx, violationID)
}

// SaveTemplate snapshots a set's rules under name (the set's name if empty).
func (e *Engine) SaveTemplate(ctx context.Context, setID, name string) (*template.Template, error) {
	return e.templates.SaveAsTemplate(ctx, setID, name)
}

// ApplyTemplate appends a template's rules to a set. Rules that do not
// validate against the registry are reported in the result, not applied.
func (e *Engine) ApplyTemplate(ctx context.Context, templateRef, setID string) (*template.ApplyResult, error) {
	return e.templates.ApplyTemplate(ctx, templateRef, setID)
}

// ListTemplates returns every template version.
func (e *Engine) ListTemplates(ctx context.Context) ([]*template.Template, error) {
	return e.templates.ListTemplates(ctx)
}
