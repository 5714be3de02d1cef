package hardware

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cfab/hwagent/internal/apperr"
)

// Store persists the hardware profile as a JSON file and keeps it consistent
// with what the prober currently detects.
type Store struct {
	path   string
	prober Prober
	logger *slog.Logger

	mu      sync.RWMutex
	current *Profile
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, prober Prober, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		prober: prober,
		logger: logger.With(slog.String("component", "hardware_store")),
	}
}

// Current returns the last loaded or refreshed profile, nil before the first
// Refresh.
func (s *Store) Current() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Refresh probes the machine and reconciles the stored profile: on first run
// the probe result is persisted as-is; afterwards a UUID mismatch means the
// hardware changed and the stored profile is overwritten. A matching profile
// keeps its original created_at.
func (s *Store) Refresh(ctx context.Context) (*Profile, error) {
	probed, err := s.prober.Probe(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := s.load()
	switch {
	case err != nil:
		s.logger.Warn("stored profile unreadable, rebuilding",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
	case stored == nil:
		s.logger.Info("no stored profile, creating",
			slog.String("path", s.path))
	case stored.UUID != probed.UUID:
		s.logger.Info("hardware changed, overwriting profile",
			slog.String("stored_uuid", stored.UUID),
			slog.String("probed_uuid", probed.UUID))
	default:
		probed.CreatedAt = stored.CreatedAt
	}

	if err := s.save(probed); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = probed
	s.mu.Unlock()
	return probed, nil
}

// load reads the stored profile, returning (nil, nil) when the file does
// not exist yet.
func (s *Store) load() (*Profile, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeFile, "failed to read hardware profile")
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeFile, "hardware profile is not valid JSON")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) save(p *Profile) error {
	p.Timestamp = time.Now().UTC()

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return apperr.Wrap(err, apperr.CodeUnexpected, "failed to encode hardware profile")
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Wrap(err, apperr.CodeFile, "failed to create profile directory")
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return apperr.Wrap(err, apperr.CodeFile, "failed to write hardware profile")
	}
	s.logger.Debug("hardware profile written", slog.String("path", s.path))
	return nil
}
