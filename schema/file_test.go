package schema

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const catalogYAML = `
entity_types:
  pipe:
    material: text
    diameter: number
  structure:
    rim_elevation: number
`

func writeCatalog(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseCatalog(t *testing.T) {
	types, err := ParseCatalog([]byte(catalogYAML))
	require.NoError(t, err)
	assert.Equal(t, TypeNumber, types["pipe"]["diameter"])
	assert.Equal(t, TypeNumber, types["structure"]["rim_elevation"])
}

func TestParseCatalogRejectsUnknownType(t *testing.T) {
	_, err := ParseCatalog([]byte("entity_types:\n  pipe:\n    installed: date\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown value type "date"`)
}

func TestParseCatalogRejectsEmpty(t *testing.T) {
	_, err := ParseCatalog([]byte("other: 1\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), catalogYAML)

	reg, err := LoadFile(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.Equal(t, path, reg.Path())
	assert.Equal(t, []string{"pipe", "structure"}, reg.EntityTypes())
}

func TestReloadKeepsPreviousCatalogOnError(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), catalogYAML)
	reg, err := LoadFile(path, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("entity_types: [broken"), 0o644))
	require.Error(t, reg.Reload())

	_, err = reg.FieldsFor("pipe")
	assert.NoError(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), catalogYAML)
	reg, err := LoadFile(path, nil)
	require.NoError(t, err)
	reg.debouncePeriod = 10 * time.Millisecond

	reloaded := make(chan struct{}, 1)
	reg.OnReload(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})

	require.NoError(t, reg.Watch())
	t.Cleanup(func() { reg.Stop() })

	updated := catalogYAML + "  note:\n    body: text\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("catalog was not reloaded after write")
	}

	fields, err := reg.FieldsFor("note")
	require.NoError(t, err)
	assert.Equal(t, TypeText, fields["body"])
}

func TestStopWithoutWatch(t *testing.T) {
	path := writeCatalog(t, t.TempDir(), catalogYAML)
	reg, err := LoadFile(path, nil)
	require.NoError(t, err)
	assert.NoError(t, reg.Stop())
}
