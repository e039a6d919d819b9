// Package manifest records every path autozsh created so a later rollback
// knows exactly what to remove.
package manifest

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
	"github.com/atomikpanda/autozsh/internal/rcfile"
)

// Kind says what an entry is.
type Kind string

const (
	KindDirectory Kind = "directory"
	KindFile      Kind = "file"
	KindConfig    Kind = "config"
)

// Entry is one created path.
type Entry struct {
	Path        string    `yaml:"path"`
	Kind        Kind      `yaml:"kind"`
	Feature     string    `yaml:"feature,omitempty"`
	InstalledAt time.Time `yaml:"installed_at"`
}

// Manifest is the sidecar file. The zero value is an empty manifest that
// has never been saved.
//
// The file outlives a rollback: it is emptied and stamped with
// RolledBackAt, so a later rollback knows nothing remains instead of
// guessing from well-known paths.
type Manifest struct {
	Version int `yaml:"version"`
	// Since is when the current install cycle started. Backups older than
	// this belong to an earlier cycle. Zero means unknown.
	Since time.Time `yaml:"since,omitempty"`
	// RolledBackAt is set by a rollback and cleared by the next install.
	RolledBackAt time.Time `yaml:"rolled_back_at,omitempty"`
	// ConfigCreated is true when autozsh created the rc file from nothing.
	ConfigCreated bool    `yaml:"config_created,omitempty"`
	RCFile        string  `yaml:"rc_file,omitempty"`
	Entries       []Entry `yaml:"entries"`

	path string
}

// DefaultPath is $XDG_STATE_HOME/autozsh/manifest.yaml.
func DefaultPath() string {
	return filepath.Join(logging.StateDir(), "manifest.yaml")
}

// Load reads the manifest at path. exists is false, with an empty
// manifest, when there is no file.
func Load(path string) (m *Manifest, exists bool, err error) {
	m = &Manifest{Version: 1, path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, errors.ErrRollback, "read manifest %s", path)
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, true, errors.Wrapf(err, errors.ErrRollback, "parse manifest %s", path)
	}
	m.path = path
	return m, true, nil
}

// Path returns where the manifest is stored.
func (m *Manifest) Path() string { return m.path }

// Record adds an entry, replacing any earlier entry for the same path, and
// saves the manifest.
func (m *Manifest) Record(e Entry) error {
	if e.InstalledAt.IsZero() {
		e.InstalledAt = time.Now().UTC()
	}
	m.Entries = slices.DeleteFunc(m.Entries, func(old Entry) bool { return old.Path == e.Path })
	m.Entries = append(m.Entries, e)
	return m.Save()
}

// MarkConfigCreated notes that rc was created by autozsh and saves.
func (m *Manifest) MarkConfigCreated(rc string) error {
	m.ConfigCreated = true
	m.RCFile = rc
	return m.Save()
}

// RolledBack reports whether the last thing that happened was a rollback.
func (m *Manifest) RolledBack() bool { return !m.RolledBackAt.IsZero() }

// Begin opens an install cycle. A fresh manifest, or one left behind by a
// rollback, starts a new cycle at now; an active one is left as it is.
// exists is what Load reported.
func (m *Manifest) Begin(exists bool, now time.Time) error {
	if exists && !m.RolledBack() {
		return nil
	}
	m.Since = now.UTC().Truncate(time.Second)
	m.RolledBackAt = time.Time{}
	return m.Save()
}

// NewestFirst returns the entries in reverse install order, so nested
// paths go before the directories that hold them.
func (m *Manifest) NewestFirst() []Entry {
	out := slices.Clone(m.Entries)
	slices.SortStableFunc(out, func(a, b Entry) int {
		return b.InstalledAt.Compare(a.InstalledAt)
	})
	return out
}

// Save writes the manifest atomically.
func (m *Manifest) Save() error {
	if m.path == "" {
		return errors.New(errors.ErrInvalidInput, "manifest has no path")
	}
	if m.Version == 0 {
		m.Version = 1
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return errors.Wrapf(err, errors.ErrInvalidInput, "create %s", filepath.Dir(m.path))
	}
	if err := rcfile.WriteAtomic(m.path, data, 0o644); err != nil {
		return errors.Wrapf(err, errors.ErrInvalidInput, "write manifest %s", m.path)
	}
	return nil
}

// MarkRolledBack empties m, stamps it as rolled back and saves.
func (m *Manifest) MarkRolledBack(now time.Time) error {
	m.Entries = nil
	m.ConfigCreated = false
	m.RCFile = ""
	m.Since = time.Time{}
	m.RolledBackAt = now.UTC()
	if err := m.Save(); err != nil {
		return errors.Wrap(err, errors.ErrRollback, "mark manifest rolled back")
	}
	return nil
}
