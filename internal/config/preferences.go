package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/cfab/hwagent/internal/apperr"
)

const backupExtension = ".bak"

// Preferences is a mutable view over the JSON configuration document.
// Values are addressed by dotted paths ("i18n.default_language") and kept
// in memory until Save writes them back, taking a backup of the previous
// file first.
type Preferences struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	doc     map[string]any
	dirty   bool
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewPreferences loads the JSON document at path. A missing file yields an
// empty document that Save will create.
func NewPreferences(path string, logger *slog.Logger) (*Preferences, error) {
	p := &Preferences{
		path:   path,
		logger: logger.With("component", "preferences"),
		doc:    make(map[string]any),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			p.logger.Warn("preferences file not found, starting empty", "path", path)
			return p, nil
		}
		return nil, apperr.Wrap(err, apperr.CodeFile, "failed to read preferences").
			With("path", path)
	}

	if err := json.Unmarshal(data, &p.doc); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfig, "preferences file is not valid JSON").
			With("path", path)
	}

	return p, nil
}

// Get returns the value at the dotted path, or def when the path does not
// resolve.
func (p *Preferences) Get(key string, def any) any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var cur any = p.doc
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		cur, ok = m[part]
		if !ok {
			return def
		}
	}
	return cur
}

// Set stores value at the dotted path, creating intermediate objects as
// needed. An intermediate path segment holding a non-object value is an
// error.
func (p *Preferences) Set(key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	parts := strings.Split(key, ".")
	cur := p.doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok {
			child := make(map[string]any)
			cur[part] = child
			cur = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return apperr.Newf(apperr.CodeConfig,
				"cannot set %q: %q is not an object", key, part)
		}
		cur = child
	}

	cur[parts[len(parts)-1]] = value
	p.dirty = true
	return nil
}

// Dirty reports whether there are unsaved changes.
func (p *Preferences) Dirty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dirty
}

// Save writes the document back to disk. The previous file, if present, is
// copied to a .bak sibling before being overwritten. Saving with no pending
// changes is a no-op.
func (p *Preferences) Save() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.dirty {
		p.logger.Debug("no preference changes, skipping save")
		return nil
	}

	if err := p.backupLocked(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p.doc, "", "  ")
	if err != nil {
		return apperr.Wrap(err, apperr.CodeConfig, "failed to encode preferences")
	}

	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Wrap(err, apperr.CodeFile, "failed to create preferences directory").
				With("path", dir)
		}
	}

	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return apperr.Wrap(err, apperr.CodeFile, "failed to write preferences").
			With("path", p.path)
	}

	p.dirty = false
	p.logger.Info("preferences saved", "path", p.path)
	return nil
}

func (p *Preferences) backupLocked() error {
	prev, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Wrap(err, apperr.CodeFile, "failed to read preferences for backup").
			With("path", p.path)
	}

	backupPath := p.path + backupExtension
	if err := os.WriteFile(backupPath, prev, 0o644); err != nil {
		return apperr.Wrap(err, apperr.CodeFile, "failed to write preferences backup").
			With("path", backupPath)
	}

	p.logger.Debug("preferences backup written", "path", backupPath)
	return nil
}

// Watch starts watching the preferences file for external modifications and
// invokes onChange after reloading the document. Stop with Unwatch.
func (p *Preferences) Watch(onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperr.Wrap(err, apperr.CodeConfig, "failed to create file watcher")
	}

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return apperr.Wrap(err, apperr.CodeConfig, "failed to watch preferences directory").
			With("path", p.path)
	}

	p.mu.Lock()
	p.watcher = watcher
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.watchLoop(watcher, onChange)
	return nil
}

// Unwatch stops the file watcher, if one is running.
func (p *Preferences) Unwatch() {
	p.mu.Lock()
	watcher := p.watcher
	done := p.done
	p.watcher = nil
	p.mu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
		<-done
	}
}

func (p *Preferences) watchLoop(watcher *fsnotify.Watcher, onChange func()) {
	defer close(p.done)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := p.reload(); err != nil {
				p.logger.Error("failed to reload preferences", "error", err)
				continue
			}
			p.logger.Info("preferences reloaded after external change", "path", p.path)
			if onChange != nil {
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("preferences watcher error", "error", err)
		}
	}
}

func (p *Preferences) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeFile, "failed to read preferences").
			With("path", p.path)
	}

	doc := make(map[string]any)
	if err := json.Unmarshal(data, &doc); err != nil {
		return apperr.Wrap(err, apperr.CodeConfig, "preferences file is not valid JSON").
			With("path", p.path)
	}

	p.mu.Lock()
	p.doc = doc
	p.dirty = false
	p.mu.Unlock()
	return nil
}
