package i18n

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfab/hwagent/internal/apperr"
)

func writeCatalog(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const enJSON = `{
  "app": {"title": "Hardware Agent", "greeting": "Hello, %s"},
  "status": {"healthy": "healthy"}
}`

const deJSON = `{
  "app": {"title": "Hardware-Agent", "greeting": "Hallo, %s"},
  "status": {"healthy": "gesund"}
}`

func TestTranslateResolvesDottedKeys(t *testing.T) {
	t.Parallel()

	dir := writeCatalog(t, map[string]string{"en.json": enJSON})
	c, err := NewCatalog(dir, "en", discard())
	require.NoError(t, err)

	assert.Equal(t, "Hardware Agent", c.Translate("app.title"))
	assert.Equal(t, "Hello, world", c.Translate("app.greeting", "world"))
}

func TestTranslateMissingKeyReturnsKey(t *testing.T) {
	t.Parallel()

	dir := writeCatalog(t, map[string]string{"en.json": enJSON})
	c, err := NewCatalog(dir, "en", discard())
	require.NoError(t, err)

	assert.Equal(t, "app.nonexistent", c.Translate("app.nonexistent"))
	assert.Equal(t, "app.title.deeper", c.Translate("app.title.deeper"))
}

func TestSetLanguageSwitchesAndLoadsLazily(t *testing.T) {
	t.Parallel()

	dir := writeCatalog(t, map[string]string{"en.json": enJSON, "de.json": deJSON})
	c, err := NewCatalog(dir, "en", discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"en"}, c.Languages())

	require.NoError(t, c.SetLanguage("de"))
	assert.Equal(t, "Hardware-Agent", c.Translate("app.title"))
	assert.Equal(t, []string{"de", "en"}, c.Languages())
}

func TestSetLanguageUnknown(t *testing.T) {
	t.Parallel()

	dir := writeCatalog(t, map[string]string{"en.json": enJSON})
	c, err := NewCatalog(dir, "en", discard())
	require.NoError(t, err)

	err = c.SetLanguage("fr")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTranslation, apperr.CodeOf(err))
	// The active language must survive a failed switch.
	assert.Equal(t, "en", c.Language())
}

func TestNewCatalogMissingDefault(t *testing.T) {
	t.Parallel()

	_, err := NewCatalog(t.TempDir(), "en", discard())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTranslation, apperr.CodeOf(err))
}

func TestNewCatalogMalformedFile(t *testing.T) {
	t.Parallel()

	dir := writeCatalog(t, map[string]string{"en.json": `{"app": `})
	_, err := NewCatalog(dir, "en", discard())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeTranslation, apperr.CodeOf(err))
}

func TestAvailableListsFiles(t *testing.T) {
	t.Parallel()

	dir := writeCatalog(t, map[string]string{
		"en.json":    enJSON,
		"de.json":    deJSON,
		"notes.txt":  "ignored",
		"README.md":  "ignored",
	})
	c, err := NewCatalog(dir, "en", discard())
	require.NoError(t, err)

	codes, err := c.Available()
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "en"}, codes)
}

func TestKeysFlattensNestedDictionaries(t *testing.T) {
	t.Parallel()

	dir := writeCatalog(t, map[string]string{"en.json": enJSON})
	c, err := NewCatalog(dir, "en", discard())
	require.NoError(t, err)

	keys, err := c.Keys("en")
	require.NoError(t, err)
	assert.Equal(t, []string{"app.greeting", "app.title", "status.healthy"}, keys)
}
