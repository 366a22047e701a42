package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/relset/errors"
)

func pipe(id string, fields map[string]any) *Record {
	return &Record{Ref: Ref{Type: "pipe", ID: id}, Fields: fields}
}

func TestPredicateMatch(t *testing.T) {
	rec := pipe("P-1", map[string]any{
		"material": "PVC",
		"diameter": 300.0,
		"system":   "Storm",
		"notes":    "",
	})

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"match all", MatchAll(), true},
		{"eq text", Eq("material", "PVC"), true},
		{"eq is case sensitive", Eq("material", "pvc"), false},
		{"eq numeric across types", Eq("diameter", 300), true},
		{"neq", Neq("material", "RCP"), true},
		{"neq on missing field", Neq("owner", "city"), true},
		{"contains ignores case", Contains("system", "STORM"), true},
		{"in", In("material", "HDPE", "PVC"), true},
		{"in miss", In("material", "HDPE", "RCP"), false},
		{"gte boundary", Gte("diameter", 300), true},
		{"gt boundary", Gt("diameter", 300), false},
		{"lt", Lt("diameter", "450"), true},
		{"numeric op on text", Gt("material", 1), false},
		{"exists", Exists("material"), true},
		{"empty string does not exist", Exists("notes"), false},
		{"and", And(Eq("system", "Storm"), Gte("diameter", 250)), true},
		{"or", Or(Eq("system", "Sanitary"), Eq("material", "PVC")), true},
		{"not", Not(Eq("material", "PVC")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Match(rec))
		})
	}
}

func TestPredicateValidate(t *testing.T) {
	assert.NoError(t, MatchAll().Validate())
	assert.NoError(t, And(Eq("a", 1), Not(Exists("b"))).Validate())

	bad := []Predicate{
		{Op: "like", Field: "a"},
		{Op: OpEq},
		{Op: OpIn, Field: "a"},
		{Op: OpAnd},
		{Op: OpNot, Args: []Predicate{Exists("a"), Exists("b")}},
		And(Eq("a", 1), Predicate{Op: OpGt}),
	}
	for _, p := range bad {
		err := p.Validate()
		require.Error(t, err, "%+v should be invalid", p)
		assert.True(t, errors.IsInvalidRequestError(err))
	}
}

func TestPredicateFieldNames(t *testing.T) {
	p := And(Eq("system", "Storm"), Or(Gte("diameter", 300), Not(Exists("material"))), Eq("system", "x"))
	assert.Equal(t, []string{"diameter", "material", "system"}, p.FieldNames())
	assert.Empty(t, MatchAll().FieldNames())
}

func TestPredicateStorageEncoding(t *testing.T) {
	p := And(Eq("system", "Storm"), In("material", "PVC", "HDPE"), Gte("diameter", 300))

	encoded, err := MarshalPredicate(p)
	require.NoError(t, err)

	decoded, err := UnmarshalPredicate(encoded)
	require.NoError(t, err)

	// Decoded numbers are float64; matching must not care.
	rec := pipe("P-9", map[string]any{"system": "Storm", "material": "HDPE", "diameter": 375})
	assert.True(t, decoded.Match(rec))
	assert.Equal(t, p.FieldNames(), decoded.FieldNames())

	empty, err := UnmarshalPredicate("")
	require.NoError(t, err)
	assert.True(t, empty.Match(rec))
}

func TestParseRef(t *testing.T) {
	ref, err := ParseRef("detail/D-1/rev-2")
	require.NoError(t, err)
	assert.Equal(t, Ref{Type: "detail", ID: "D-1/rev-2"}, ref)
	assert.Equal(t, "detail/D-1/rev-2", ref.String())

	for _, s := range []string{"", "pipe", "/P-1", "pipe/"} {
		_, err := ParseRef(s)
		assert.Error(t, err, s)
	}
}

func TestNumberAndText(t *testing.T) {
	n, ok := Number("12.5")
	assert.True(t, ok)
	assert.Equal(t, 12.5, n)

	_, ok = Number(true)
	assert.False(t, ok)

	assert.Equal(t, "12", Text(12.0))
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "true", Text(true))
}
