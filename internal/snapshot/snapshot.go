// Package snapshot owns the backup trail of the rc file and the rollback
// that undoes an installation.
package snapshot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/atomikpanda/autozsh/internal/ageutil"
	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
	"github.com/atomikpanda/autozsh/internal/rcfile"
)

const (
	tag       = ".autozsh."
	ext       = ".bak"
	stampForm = "20060102150405"
)

// Record is one backup of the rc file.
type Record struct {
	Source    string
	Path      string
	Created   time.Time
	Encrypted bool

	seq int
}

// Manager creates and restores backups. Key, when configured, encrypts
// new backups with age.
type Manager struct {
	Key *ageutil.Key
	Now func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Snapshot copies source to a sibling named
// <source>.autozsh.<YYYYMMDDHHMMSS>.bak. A second backup in the same second
// gets a _N suffix on the stamp. A missing source is not an error: it
// returns nil.
func (m *Manager) Snapshot(source string) (*Record, error) {
	logger := logging.GetLogger("snapshot")

	data, err := os.ReadFile(source)
	if os.IsNotExist(err) {
		logger.Info().Str("path", source).Msg("no rc file yet, nothing to back up")
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigMerge, "back up %s", source)
	}

	encrypted := m.Key.Configured()
	if encrypted {
		if data, err = m.Key.Encrypt(data); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigMerge, "encrypt backup of %s", source)
		}
	}

	now := m.now()
	stamp := now.Format(stampForm)
	for seq := 0; ; seq++ {
		plain := source + tag + stamp
		if seq > 0 {
			plain += "_" + strconv.Itoa(seq)
		}
		plain += ext
		if exists(plain) || exists(plain+ageutil.Ext) {
			continue
		}
		name := plain
		if encrypted {
			name += ageutil.Ext
		}
		// O_EXCL: an existing backup is never overwritten
		f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigMerge, "create backup %s", name)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(name)
			return nil, errors.Wrapf(err, errors.ErrConfigMerge, "write backup %s", name)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(name)
			return nil, errors.Wrapf(err, errors.ErrConfigMerge, "write backup %s", name)
		}
		if err := f.Close(); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigMerge, "write backup %s", name)
		}
		logger.Info().Str("backup", name).Msg("rc file backed up")
		return &Record{Source: source, Path: name, Created: now, Encrypted: encrypted, seq: seq}, nil
	}
}

var backupName = regexp.MustCompile(`^(\d{14})(?:_(\d+))?\.bak(?:\.age)?$`)

// List returns every backup of source, oldest first.
func (m *Manager) List(source string) ([]Record, error) {
	dir, base := filepath.Dir(source), filepath.Base(source)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrRollback, "list backups in %s", dir)
	}

	var out []Record
	prefix := base + tag
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		match := backupName.FindStringSubmatch(strings.TrimPrefix(e.Name(), prefix))
		if match == nil {
			continue
		}
		created, err := time.ParseInLocation(stampForm, match[1], time.Local)
		if err != nil {
			continue
		}
		seq := 0
		if match[2] != "" {
			seq, _ = strconv.Atoi(match[2])
		}
		out = append(out, Record{
			Source:    source,
			Path:      filepath.Join(dir, e.Name()),
			Created:   created,
			Encrypted: ageutil.Encrypted(e.Name()),
			seq:       seq,
		})
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := a.Created.Compare(b.Created); c != 0 {
			return c
		}
		return a.seq - b.seq
	})
	return out, nil
}

// LatestSince returns the most recent backup of source created at or after
// since, or nil when there is none. A zero since accepts every backup.
func (m *Manager) LatestSince(source string, since time.Time) (*Record, error) {
	all, err := m.List(source)
	if err != nil {
		return nil, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if since.IsZero() || !all[i].Created.Before(since) {
			r := all[i]
			return &r, nil
		}
	}
	return nil, nil
}

// Read returns the plaintext content of a backup.
func (m *Manager) Read(r Record) ([]byte, error) {
	if !r.Encrypted {
		return os.ReadFile(r.Path)
	}
	if !m.Key.Configured() {
		return nil, errors.Newf(errors.ErrRollback, "backup %s is encrypted and no age key is configured", r.Path)
	}
	return m.Key.DecryptFile(r.Path)
}

// Restore writes the backup's content over its source atomically. It
// reports false when the source already held exactly that content.
func (m *Manager) Restore(r Record) (bool, error) {
	data, err := m.Read(r)
	if err != nil {
		return false, errors.Wrapf(err, errors.ErrRollback, "read backup %s", r.Path)
	}
	perm := os.FileMode(0o644)
	if cur, err := os.ReadFile(r.Source); err == nil {
		if bytes.Equal(cur, data) {
			return false, nil
		}
		if info, err := os.Stat(r.Source); err == nil {
			perm = info.Mode().Perm()
		}
	}
	if err := rcfile.WriteAtomic(r.Source, data, perm); err != nil {
		return false, errors.Wrapf(err, errors.ErrRollback, "restore %s", r.Source)
	}
	logger := logging.GetLogger("snapshot")
	logger.Info().Str("backup", r.Path).Str("path", r.Source).Msg("rc file restored")
	return true, nil
}

func (r Record) String() string {
	return fmt.Sprintf("%s (%s)", filepath.Base(r.Path), r.Created.Format(time.DateTime))
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
