// Package i18n loads per-language JSON dictionaries and resolves dotted
// translation keys.
package i18n

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cfab/hwagent/internal/apperr"
)

// Catalog holds loaded translation dictionaries, one per language code.
// Languages load lazily on first use.
type Catalog struct {
	dir    string
	logger *slog.Logger

	mu       sync.RWMutex
	language string
	loaded   map[string]map[string]any
}

// NewCatalog creates a catalog reading <code>.json files from dir and
// activates the default language. A missing default file is an error.
func NewCatalog(dir, defaultLanguage string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{
		dir:    dir,
		logger: logger.With(slog.String("component", "i18n")),
		loaded: make(map[string]map[string]any),
	}
	if err := c.SetLanguage(defaultLanguage); err != nil {
		return nil, err
	}
	return c, nil
}

// SetLanguage activates the given language, loading its file if needed.
func (c *Catalog) SetLanguage(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.loaded[code]; !ok {
		dict, err := c.loadLocked(code)
		if err != nil {
			return err
		}
		c.loaded[code] = dict
	}
	c.language = code
	return nil
}

// Language returns the active language code.
func (c *Catalog) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

// Languages returns the loaded language codes, sorted.
func (c *Catalog) Languages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	codes := make([]string, 0, len(c.loaded))
	for code := range c.loaded {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Available lists the language codes present in the catalog directory,
// loaded or not.
func (c *Catalog) Available() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeTranslation, "failed to read translations directory")
	}

	var codes []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		codes = append(codes, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(codes)
	return codes, nil
}

// Translate resolves a dotted key in the active language and formats it with
// args. A missing key returns the key itself so the caller always has
// something displayable.
func (c *Catalog) Translate(key string, args ...any) string {
	c.mu.RLock()
	dict := c.loaded[c.language]
	c.mu.RUnlock()

	value, ok := lookup(dict, key)
	if !ok {
		c.logger.Debug("missing translation",
			slog.String("key", key),
			slog.String("language", c.Language()))
		return key
	}
	if len(args) == 0 {
		return value
	}
	return fmt.Sprintf(value, args...)
}

func (c *Catalog) loadLocked(code string) (map[string]any, error) {
	path := filepath.Join(c.dir, code+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeTranslation, "failed to read translation file for "+code)
	}

	var dict map[string]any
	if err := json.Unmarshal(data, &dict); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeTranslation, "translation file for "+code+" is not valid JSON")
	}
	c.logger.Debug("translation file loaded",
		slog.String("language", code),
		slog.String("path", path))
	return dict, nil
}

// lookup walks a nested string map along a dotted path and returns the leaf
// string, if any.
func lookup(dict map[string]any, key string) (string, bool) {
	parts := strings.Split(key, ".")
	current := any(dict)
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = m[part]
		if !ok {
			return "", false
		}
	}
	s, ok := current.(string)
	return s, ok
}

// Keys returns the full set of dotted leaf keys in the given language,
// loading it if necessary. Used by the consistency checker.
func (c *Catalog) Keys(code string) ([]string, error) {
	c.mu.Lock()
	dict, ok := c.loaded[code]
	if !ok {
		var err error
		dict, err = c.loadLocked(code)
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		c.loaded[code] = dict
	}
	c.mu.Unlock()

	var keys []string
	collectKeys("", dict, &keys)
	sort.Strings(keys)
	return keys, nil
}

func collectKeys(prefix string, node map[string]any, out *[]string) {
	for k, v := range node {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			collectKeys(full, child, out)
			continue
		}
		*out = append(*out, full)
	}
}
