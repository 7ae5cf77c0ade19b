package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"capital_waterfall/pkg/core/config"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

const recordExt = ".yaml"

// FileScenarioStore keeps one yaml file per scenario in a directory.
type FileScenarioStore struct {
	mu  sync.RWMutex
	dir string
	now func() time.Time
}

// NewFileScenarioStore creates dir if needed.
func NewFileScenarioStore(dir string) (*FileScenarioStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("scenario directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	return &FileScenarioStore{dir: dir, now: time.Now}, nil
}

func (f *FileScenarioStore) Save(ctx context.Context, s config.Scenario) (*Record, error) {
	if err := checkName(s.Name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now().UTC()
	rec := &Record{ID: uuid.New(), Name: s.Name, Scenario: s, CreatedAt: now, UpdatedAt: now}
	if prev, err := f.read(s.Name); err == nil {
		rec.ID = prev.ID
		rec.CreatedAt = prev.CreatedAt
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scenario: %w", err)
	}
	tmp, err := os.CreateTemp(f.dir, ".scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to save scenario: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to save scenario: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to save scenario: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(s.Name)); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to save scenario: %w", err)
	}
	return rec, nil
}

func (f *FileScenarioStore) Load(ctx context.Context, name string) (*Record, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.read(name)
}

// List returns the stored scenarios sorted by name. Unreadable files are
// skipped.
func (f *FileScenarioStore) List(ctx context.Context) ([]Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != recordExt {
			continue
		}
		rec, err := f.read(strings.TrimSuffix(e.Name(), recordExt))
		if err != nil {
			continue
		}
		out = append(out, Summary{ID: rec.ID, Name: rec.Name, UpdatedAt: rec.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *FileScenarioStore) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	return nil
}

func (f *FileScenarioStore) path(name string) string {
	return filepath.Join(f.dir, name+recordExt)
}

func (f *FileScenarioStore) read(name string) (*Record, error) {
	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode scenario %s: %w", name, err)
	}
	return &rec, nil
}
