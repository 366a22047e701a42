package relset

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
)

func registry() *schema.Static {
	return schema.NewStatic(map[string]schema.Fields{
		"pipe":      {"material": schema.TypeText, "system": schema.TypeText, "diameter": schema.TypeNumber},
		"structure": {"rim_elevation": schema.TypeNumber},
	})
}

func newSet(t *testing.T, store *Store, name string) *Set {
	t.Helper()
	set := &Set{Name: name, Category: "drainage"}
	require.NoError(t, store.CreateSet(context.Background(), set))
	return set
}

func TestStoreSetLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore(reltest.CreateTestDB(t))

	set := newSet(t, store, "Storm-Main")
	assert.NotEmpty(t, set.ID)

	err := store.CreateSet(ctx, &Set{Name: "Storm-Main"})
	assert.True(t, errors.IsConflictError(err))
	assert.True(t, errors.IsInvalidRequestError(store.CreateSet(ctx, &Set{})))

	require.NoError(t, store.AddMember(ctx, &Member{SetID: set.ID, Kind: MemberStatic, EntityType: "pipe", EntityID: "P-1"}))
	require.NoError(t, store.AddMember(ctx, &Member{
		SetID: set.ID, Kind: MemberFilter, EntityType: "pipe",
		Predicate: entity.And(entity.Eq("system", "storm"), entity.Gte("diameter", 300)),
	}))
	err = store.AddMember(ctx, &Member{SetID: set.ID, Kind: MemberStatic, EntityType: "pipe", EntityID: "P-1"})
	assert.True(t, errors.IsConflictError(err))

	added, err := store.AddRules(ctx, set.ID,
		rule.Rule{EntityType: "pipe", Field: "material", Check: rule.CheckRequired, Severity: rule.SeverityError},
		rule.Rule{EntityType: "pipe", Field: "material", Check: rule.CheckInList, ExpectedList: []string{"PVC", "HDPE"}, Severity: rule.SeverityWarning, ValueType: schema.TypeText},
	)
	require.NoError(t, err)
	require.Len(t, added, 2)

	loaded, err := store.GetSet(ctx, set.ID)
	require.NoError(t, err)
	assert.Equal(t, "Storm-Main", loaded.Name)
	assert.Equal(t, "drainage", loaded.Category)

	require.Len(t, loaded.Members, 2)
	assert.Equal(t, 0, loaded.Members[0].Position)
	assert.Equal(t, entity.Ref{Type: "pipe", ID: "P-1"}, loaded.Members[0].Ref())
	assert.Equal(t, MemberFilter, loaded.Members[1].Kind)
	assert.Equal(t, []string{"diameter", "system"}, loaded.Members[1].Predicate.FieldNames())

	require.Len(t, loaded.Rules, 2)
	assert.Equal(t, added[0].ID, loaded.Rules[0].ID)
	assert.Nil(t, loaded.Rules[0].ExpectedList)
	assert.Equal(t, []string{"PVC", "HDPE"}, loaded.Rules[1].ExpectedList)
	assert.Equal(t, schema.TypeText, loaded.Rules[1].ValueType)

	require.NoError(t, store.RemoveRule(ctx, set.ID, added[0].ID))
	assert.True(t, errors.IsNotFoundError(store.RemoveRule(ctx, set.ID, added[0].ID)))
	require.NoError(t, store.RemoveMember(ctx, set.ID, loaded.Members[0].ID))

	loaded, err = store.GetSet(ctx, set.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Members, 1)
	assert.Len(t, loaded.Rules, 1)

	byName, err := store.GetSetByName(ctx, "Storm-Main")
	require.NoError(t, err)
	assert.Equal(t, set.ID, byName.ID)

	all, err := store.ListSets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStoreUnknownSet(t *testing.T) {
	ctx := context.Background()
	store := NewStore(reltest.CreateTestDB(t))

	_, err := store.GetSet(ctx, "nope")
	assert.True(t, errors.IsNotFoundError(err))

	err = store.AddMember(ctx, &Member{SetID: "nope", Kind: MemberStatic, EntityType: "pipe", EntityID: "P-1"})
	assert.True(t, errors.IsNotFoundError(err))

	_, err = store.AddRules(ctx, "nope", rule.Rule{EntityType: "pipe", Field: "material", Check: rule.CheckRequired, Severity: rule.SeverityError})
	assert.True(t, errors.IsNotFoundError(err))
}

func TestValidateMember(t *testing.T) {
	reg := registry()

	assert.NoError(t, ValidateMember(Member{Kind: MemberStatic, EntityType: "pipe", EntityID: "P-1"}, reg))
	assert.NoError(t, ValidateMember(Member{Kind: MemberFilter, EntityType: "pipe", Predicate: entity.MatchAll()}, reg))

	for name, m := range map[string]Member{
		"unknown type":          {Kind: MemberStatic, EntityType: "valve", EntityID: "V-1"},
		"static without id":     {Kind: MemberStatic, EntityType: "pipe"},
		"filter unknown field":  {Kind: MemberFilter, EntityType: "pipe", Predicate: entity.Eq("colour", "red")},
		"filter malformed tree": {Kind: MemberFilter, EntityType: "pipe", Predicate: entity.Predicate{Op: "like"}},
		"unknown kind":          {Kind: "dynamic", EntityType: "pipe"},
	} {
		err := ValidateMember(m, reg)
		assert.True(t, errors.IsConfigurationError(err), "%s: %v", name, err)
	}
}

func TestResolveDeduplicatesAndKeepsStaticFlag(t *testing.T) {
	mem := entity.NewMemStore()
	mem.Put(entity.Ref{Type: "pipe", ID: "P-1"}, map[string]any{"system": "storm"})
	mem.Put(entity.Ref{Type: "pipe", ID: "P-2"}, map[string]any{"system": "storm"})
	mem.Put(entity.Ref{Type: "pipe", ID: "P-3"}, map[string]any{"system": "sanitary"})

	set := &Set{Members: []Member{
		{Kind: MemberFilter, EntityType: "pipe", Predicate: entity.Eq("system", "storm")},
		{Kind: MemberStatic, EntityType: "pipe", EntityID: "P-2"},
		{Kind: MemberStatic, EntityType: "pipe", EntityID: "P-404"},
		{Kind: MemberFilter, EntityType: "pipe", Predicate: entity.MatchAll()},
	}}

	got, err := NewResolver(registry()).Resolve(context.Background(), set, mem)
	require.NoError(t, err)
	assert.Equal(t, []Resolved{
		{Ref: entity.Ref{Type: "pipe", ID: "P-1"}},
		{Ref: entity.Ref{Type: "pipe", ID: "P-2"}, Static: true},
		{Ref: entity.Ref{Type: "pipe", ID: "P-404"}, Static: true},
		{Ref: entity.Ref{Type: "pipe", ID: "P-3"}},
	}, got)
}

func TestResolveRequeriesFilters(t *testing.T) {
	mem := entity.NewMemStore()
	set := &Set{Members: []Member{{Kind: MemberFilter, EntityType: "pipe", Predicate: entity.Eq("system", "storm")}}}
	resolver := NewResolver(registry())

	got, err := resolver.Resolve(context.Background(), set, mem)
	require.NoError(t, err)
	assert.Empty(t, got)

	mem.Put(entity.Ref{Type: "pipe", ID: "P-7"}, map[string]any{"system": "storm"})
	got, err = resolver.Resolve(context.Background(), set, mem)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestResolveRejectsUnknownFilterTarget(t *testing.T) {
	set := &Set{Members: []Member{{Kind: MemberFilter, EntityType: "parcel", Predicate: entity.MatchAll()}}}
	_, err := NewResolver(registry()).Resolve(context.Background(), set, entity.NewMemStore())
	assert.True(t, errors.IsConfigurationError(err))
}

func TestRulesFor(t *testing.T) {
	set := &Set{Rules: []rule.Rule{
		{ID: "a", EntityType: "pipe"},
		{ID: "b", EntityType: "structure"},
		{ID: "c", EntityType: "pipe"},
	}}
	got := set.RulesFor("pipe")
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[1].ID)
}
