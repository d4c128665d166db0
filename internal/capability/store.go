package capability

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Storage persists probe reports.
type Storage interface {
	Save(report Report) error
	Load() (Report, error)
}

// ErrNoReport is returned by Load when nothing was saved yet.
var ErrNoReport = errors.New("no probe report stored")

// FileStore keeps the last probe report in a TOML file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes report atomically.
func (s *FileStore) Save(report Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode probe report: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write probe report: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace probe report: %w", err)
	}
	return nil
}

// Load reads the stored report.
func (s *FileStore) Load() (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report Report
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return report, ErrNoReport
	}
	if err != nil {
		return report, fmt.Errorf("failed to read probe report: %w", err)
	}
	if err := toml.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("failed to parse probe report: %w", err)
	}
	return report, nil
}

// Cache serves the stored report and probes only when none is stored.
type Cache struct {
	query   *Query
	storage Storage

	mu     sync.RWMutex
	report *Report
}

// NewCache creates a cache. storage may be nil for an in-memory cache.
func NewCache(query *Query, storage Storage) *Cache {
	return &Cache{query: query, storage: storage}
}

// Report returns the cached report, loading or probing on first use.
func (c *Cache) Report() (Report, error) {
	c.mu.RLock()
	if c.report != nil {
		r := *c.report
		c.mu.RUnlock()
		return r, nil
	}
	c.mu.RUnlock()

	if c.storage != nil {
		if r, err := c.storage.Load(); err == nil {
			c.set(r)
			return r, nil
		} else if !errors.Is(err, ErrNoReport) {
			c.query.logger.Warn("Ignoring unreadable probe cache", "error", err)
		}
	}
	return c.Refresh()
}

// Refresh probes again and stores the result.
func (c *Cache) Refresh() (Report, error) {
	r := c.query.Report()
	c.set(r)
	if c.storage != nil {
		if err := c.storage.Save(r); err != nil {
			return r, err
		}
	}
	return r, nil
}

func (c *Cache) set(r Report) {
	c.mu.Lock()
	c.report = &r
	c.mu.Unlock()
}
