// Package session manages the work-session marker that enables automatic
// commits at workflow boundaries.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hpungsan/agentos/internal/cache"
	"github.com/hpungsan/agentos/internal/config"
)

// FileName is the sentinel file under the cache directory.
const FileName = "work-session"

// Info describes the active session.
type Info struct {
	Active      bool      `json:"active"`
	Description string    `json:"description,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`

	// Source says what activated the session: "file", "env", or "force".
	Source string `json:"source,omitempty"`
}

type marker struct {
	Description string    `json:"description"`
	StartedAt   time.Time `json:"started_at"`
}

// Manager reads and writes the sentinel file.
type Manager struct {
	path string
	cfg  *config.Config
	now  func() time.Time
}

// NewManager creates a Manager for cfg.CacheDir.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		path: filepath.Join(cfg.CacheDir, FileName),
		cfg:  cfg,
		now:  time.Now,
	}
}

// Path returns the sentinel location.
func (m *Manager) Path() string { return m.path }

// Start writes the sentinel, replacing any existing session.
func (m *Manager) Start(description string) (Info, error) {
	mk := marker{Description: strings.TrimSpace(description), StartedAt: m.now().UTC()}
	data, err := json.Marshal(mk)
	if err != nil {
		return Info{}, err
	}
	if err := cache.WriteFileAtomic(m.path, data, 0600); err != nil {
		return Info{}, err
	}
	return Info{Active: true, Description: mk.Description, StartedAt: mk.StartedAt, Source: "file"}, nil
}

// Stop removes the sentinel. Stopping an inactive session is not an error.
func (m *Manager) Stop() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Status reports the session. The sentinel's description is returned even
// when the session was activated through the environment.
func (m *Manager) Status() (Info, error) {
	info, err := m.readFile()
	if err != nil {
		return Info{}, err
	}
	switch {
	case info.Active:
	case m.cfg.ForceSession:
		info.Active, info.Source = true, "force"
	case m.cfg.WorkSession:
		info.Active, info.Source = true, "env"
	}
	return info, nil
}

func (m *Manager) readFile() (Info, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Info{}, nil
		}
		return Info{}, err
	}

	info := Info{Active: true, Source: "file"}
	var mk marker
	if json.Unmarshal(data, &mk) == nil {
		info.Description = mk.Description
		info.StartedAt = mk.StartedAt
		return info, nil
	}
	// Older markers hold the bare description.
	info.Description = strings.TrimSpace(string(data))
	return info, nil
}
