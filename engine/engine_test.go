package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/relset/entity"
	"github.com/teranos/relset/errors"
	reltest "github.com/teranos/relset/internal/testing"
	"github.com/teranos/relset/rule"
	"github.com/teranos/relset/schema"
	"github.com/teranos/relset/synccheck"
	"github.com/teranos/relset/violation"
)

func newEngine(t *testing.T) (*Engine, *entity.MemStore) {
	t.Helper()
	reg := schema.NewStatic(map[string]schema.Fields{
		"pipe":      {"material": schema.TypeText, "diameter": schema.TypeNumber, "system": schema.TypeText},
		"structure": {"rim_elevation": schema.TypeNumber},
	})
	store := entity.NewMemStore()
	return New(reltest.CreateTestDB(t), reg, store, synccheck.DefaultOptions(), nil), store
}

func TestEngineWorkflow(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)

	p1 := entity.Ref{Type: "pipe", ID: "P-1"}
	p2 := entity.Ref{Type: "pipe", ID: "P-2"}
	p3 := entity.Ref{Type: "pipe", ID: "P-3"}
	mh := entity.Ref{Type: "structure", ID: "MH-4"}
	store.Put(p1, map[string]any{"material": "PVC", "diameter": 300, "system": "storm"})
	store.Put(p2, map[string]any{"material": "", "diameter": 250, "system": "storm"})
	store.Put(p3, map[string]any{"material": "DI", "diameter": 100, "system": "sanitary"})
	store.Put(mh, map[string]any{"rim_elevation": 102.4})
	store.Link(p1, mh)

	set, err := e.CreateSet(ctx, CreateSetRequest{Name: " Storm-Main ", Category: "drainage"})
	require.NoError(t, err)
	assert.Equal(t, "Storm-Main", set.Name)

	_, err = e.AddStaticMember(ctx, set.ID, p1)
	require.NoError(t, err)
	_, err = e.AddFilterGroup(ctx, set.ID, "pipe", entity.Eq("system", "storm"))
	require.NoError(t, err)
	_, err = e.AddStaticMember(ctx, set.ID, p3)
	require.NoError(t, err)

	required, err := e.AddRule(ctx, set.ID, rule.Rule{EntityType: "pipe", Field: "material", Check: rule.CheckRequired})
	require.NoError(t, err)
	_, err = e.AddRule(ctx, set.ID, rule.Rule{
		EntityType: "pipe", Field: "material", Check: rule.CheckInList,
		ExpectedList: []string{"PVC", "HDPE", "RCP"}, Severity: rule.SeverityWarning,
	})
	require.NoError(t, err)

	res, err := e.RunSyncCheck(ctx, set.ID)
	require.NoError(t, err)
	// P-2: required + in_list on a missing field; P-3: in_list.
	require.Len(t, res.NewViolations, 3)
	byRule := map[string]int{}
	for _, v := range res.NewViolations {
		byRule[v.RuleID]++
		assert.Equal(t, violation.KindMetadata, v.Kind)
	}
	assert.Equal(t, 1, byRule[required.ID])

	var diViolation violation.Violation
	for _, v := range res.NewViolations {
		if v.Subject == p3 {
			diViolation = v
		}
	}
	assert.Equal(t, `field 'material' is "DI", expected one of ["PVC", "HDPE", "RCP"]`, diViolation.Message)

	ack, err := e.AcknowledgeViolation(ctx, diViolation.ID, "dana", "ductile iron approved for this reach")
	require.NoError(t, err)
	assert.Equal(t, violation.StatusAcknowledged, ack.Status)

	_, err = e.ResolveViolation(ctx, diViolation.ID, "dana", "")
	assert.True(t, errors.IsInvalidStateTransition(err))

	open, err := e.ListViolations(ctx, set.ID, violation.StatusOpen)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	history, err := e.ViolationHistory(ctx, diViolation.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	runs, err := e.ListRuns(ctx, set.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, synccheck.RunCompleted, runs[0].Status)

	found, err := e.FindSet(ctx, "Storm-Main")
	require.NoError(t, err)
	assert.Equal(t, set.ID, found.ID)
	assert.Len(t, found.Members, 3)
	assert.Len(t, found.Rules, 2)
}

func TestEngineRejectsInvalidDefinitions(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	set, err := e.CreateSet(ctx, CreateSetRequest{Name: "Storm-Main"})
	require.NoError(t, err)

	_, err = e.AddRule(ctx, set.ID, rule.Rule{EntityType: "pipe", Field: "material", Check: rule.CheckMax, Expected: "10"})
	assert.True(t, errors.IsConfigurationError(err))

	_, err = e.AddRule(ctx, set.ID, rule.Rule{EntityType: "pipe", Field: "material", Check: rule.CheckRegex, Expected: "[A-Z"})
	assert.True(t, errors.IsConfigurationError(err))

	_, err = e.AddStaticMember(ctx, set.ID, entity.Ref{Type: "parcel", ID: "X"})
	assert.True(t, errors.IsConfigurationError(err))

	_, err = e.AddFilterGroup(ctx, set.ID, "pipe", entity.Gte("length", 10))
	assert.True(t, errors.IsConfigurationError(err))

	loaded, err := e.GetSet(ctx, set.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Rules)
	assert.Empty(t, loaded.Members)

	_, err = e.ListViolations(ctx, "missing")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestEngineMemberAndRuleRemoval(t *testing.T) {
	ctx := context.Background()
	e, store := newEngine(t)
	store.Put(entity.Ref{Type: "pipe", ID: "P-1"}, map[string]any{})

	set, err := e.CreateSet(ctx, CreateSetRequest{Name: "Storm-Main"})
	require.NoError(t, err)
	m, err := e.AddStaticMember(ctx, set.ID, entity.Ref{Type: "pipe", ID: "P-1"})
	require.NoError(t, err)
	r, err := e.AddRule(ctx, set.ID, rule.Rule{EntityType: "pipe", Field: "material", Check: rule.CheckRequired})
	require.NoError(t, err)

	res, err := e.RunSyncCheck(ctx, set.ID)
	require.NoError(t, err)
	require.Len(t, res.NewViolations, 1)

	// Dropping the rule auto-resolves its open violation on the next run.
	require.NoError(t, e.RemoveRule(ctx, set.ID, r.ID))
	res, err = e.RunSyncCheck(ctx, set.ID)
	require.NoError(t, err)
	assert.Len(t, res.AutoResolvedViolations, 1)

	require.NoError(t, e.RemoveMember(ctx, set.ID, m.ID))
	assert.True(t, errors.IsNotFoundError(e.RemoveMember(ctx, set.ID, m.ID)))

	sets, err := e.ListSets(ctx)
	require.NoError(t, err)
	assert.Len(t, sets, 1)
}

func TestEngineTemplates(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	src, err := e.CreateSet(ctx, CreateSetRequest{Name: "Storm-Main"})
	require.NoError(t, err)
	_, err = e.AddRule(ctx, src.ID, rule.Rule{EntityType: "pipe", Field: "diameter", Check: rule.CheckMin, Expected: "150"})
	require.NoError(t, err)
	dst, err := e.CreateSet(ctx, CreateSetRequest{Name: "Storm-North"})
	require.NoError(t, err)

	tpl, err := e.SaveTemplate(ctx, src.ID, "storm-basics")
	require.NoError(t, err)

	res, err := e.ApplyTemplate(ctx, "storm-basics", dst.ID)
	require.NoError(t, err)
	require.Len(t, res.Applied, 1)
	assert.Equal(t, tpl.ID, res.Template.ID)

	list, err := e.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	loaded, err := e.GetSet(ctx, dst.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Rules, 1)
	assert.Empty(t, loaded.Members)
}
