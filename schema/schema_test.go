package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/relset/errors"
)

func pipeCatalog() map[string]Fields {
	return map[string]Fields{
		"pipe": {
			"material": TypeText,
			"diameter": TypeNumber,
			"lined":    TypeBoolean,
		},
		"structure": {
			"rim_elevation": TypeNumber,
		},
	}
}

func TestStaticFieldsFor(t *testing.T) {
	reg := NewStatic(pipeCatalog())

	fields, err := reg.FieldsFor("pipe")
	require.NoError(t, err)
	assert.Equal(t, []string{"diameter", "lined", "material"}, fields.Names())

	_, err = reg.FieldsFor("parcel")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStaticFieldsForReturnsCopy(t *testing.T) {
	reg := NewStatic(pipeCatalog())

	fields, err := reg.FieldsFor("pipe")
	require.NoError(t, err)
	fields["injected"] = TypeText

	again, err := reg.FieldsFor("pipe")
	require.NoError(t, err)
	_, ok := again["injected"]
	assert.False(t, ok, "callers must not be able to mutate the registry")
}

func TestField(t *testing.T) {
	reg := NewStatic(pipeCatalog())

	vt, err := Field(reg, "pipe", "diameter")
	require.NoError(t, err)
	assert.Equal(t, TypeNumber, vt)
	assert.True(t, vt.IsNumeric())

	_, err = Field(reg, "pipe", "colour")
	assert.True(t, errors.IsNotFoundError(err))

	_, err = Field(reg, "culvert", "diameter")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestReplace(t *testing.T) {
	reg := NewStatic(pipeCatalog())
	reg.Replace(map[string]Fields{"note": {"body": TypeText}})

	assert.Equal(t, []string{"note"}, reg.EntityTypes())
	_, err := reg.FieldsFor("pipe")
	assert.Error(t, err)
}

func TestValueType(t *testing.T) {
	assert.True(t, TypeText.IsValid())
	assert.False(t, ValueType("date").IsValid())
	assert.False(t, TypeText.IsNumeric())
}
