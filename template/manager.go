package template

import (
	"context"

	"go.uber.org/zap"

	"github.com/teranos/relset/errors"
	"github.com/teranos/relset/logger"
	"github.com/teranos/relset/relset"
	"github.com/teranos/relset/rule"
	"github.com/teranos/relset/schema"
	"github.com/teranos/relset/sym"
)

// SetStore is the part of the set store the manager needs.
type SetStore interface {
	GetSet(ctx context.Context, id string) (*relset.Set, error)
	AddRules(ctx context.Context, setID string, rules ...rule.Rule) ([]rule.Rule, error)
}

// Rejected is a template rule that could not be applied.
type Rejected struct {
	Rule rule.Rule `json:"rule"`
	Err  error     `json:"-"`
}

// ApplyResult reports a partial application: rules that were added to the
// target, and rules that failed validation there.
type ApplyResult struct {
	Template *Template   `json:"template"`
	Applied  []rule.Rule `json:"applied"`
	Rejected []Rejected  `json:"rejected,omitempty"`
}

// Err combines the rejections into one configuration error, or nil.
func (r *ApplyResult) Err() error {
	var combined error
	for _, rej := range r.Rejected {
		if combined == nil {
			combined = rej.Err
			continue
		}
		combined = errors.WithSecondaryError(combined, rej.Err)
	}
	return combined
}

// Manager saves and applies templates.
type Manager struct {
	sets      SetStore
	templates *Store
	registry  schema.Registry
	logger    *zap.SugaredLogger
}

// NewManager creates a template manager. A nil logger disables logging.
func NewManager(sets SetStore, templates *Store, reg schema.Registry, log *zap.SugaredLogger) *Manager {
	return &Manager{sets: sets, templates: templates, registry: reg, logger: logger.OrNop(log)}
}

// SaveAsTemplate snapshots the set's rules. Members and violations are not
// captured. An empty name uses the set's name.
func (m *Manager) SaveAsTemplate(ctx context.Context, setID, name string) (*Template, error) {
	set, err := m.sets.GetSet(ctx, setID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = set.Name
	}

	t := &Template{Name: name, SourceSetID: set.ID, Rules: append([]rule.Rule(nil), set.Rules...)}
	if err := m.templates.Save(ctx, t); err != nil {
		return nil, err
	}
	m.logger.Infow(sym.Template+" template saved",
		logger.FieldTemplateID, t.ID,
		logger.FieldSetID, set.ID,
		"name", t.Name,
		"version", t.Version,
		logger.FieldCount, len(t.Rules))
	return t, nil
}

// ApplyTemplate appends clones of the template's rules to the target set.
// Existing rules on the target are untouched and membership is never copied.
// Each rule is validated against the registry on its own; a rule that fails
// is reported in Rejected while the others still apply.
func (m *Manager) ApplyTemplate(ctx context.Context, templateRef, targetSetID string) (*ApplyResult, error) {
	t, err := m.templates.Resolve(ctx, templateRef)
	if err != nil {
		return nil, err
	}
	if _, err := m.sets.GetSet(ctx, targetSetID); err != nil {
		return nil, err
	}

	result := &ApplyResult{Template: t}
	var valid []rule.Rule
	for _, r := range t.Rules {
		checked, err := rule.Validate(r, m.registry)
		if err != nil {
			result.Rejected = append(result.Rejected, Rejected{Rule: r, Err: err})
			m.logger.Warnw(sym.Template+" template rule rejected",
				logger.FieldTemplateID, t.ID,
				logger.FieldRuleID, r.ID,
				logger.FieldError, err)
			continue
		}
		valid = append(valid, checked)
	}

	if len(valid) > 0 {
		if result.Applied, err = m.sets.AddRules(ctx, targetSetID, valid...); err != nil {
			return nil, err
		}
	}

	m.logger.Infow(sym.Template+" template applied",
		logger.FieldTemplateID, t.ID,
		logger.FieldSetID, targetSetID,
		"applied", len(result.Applied),
		"rejected", len(result.Rejected))
	return result, nil
}

// ListTemplates returns every template version.
func (m *Manager) ListTemplates(ctx context.Context) ([]*Template, error) {
	return m.templates.List(ctx)
}
