// Package audit keeps an append-only JSON-lines history of every step
// autozsh ran and how it ended.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/atomikpanda/autozsh/internal/logging"
)

// Outcome values.
const (
	Success = "success"
	Skipped = "skipped"
	Warning = "warning"
	Failure = "failure"
)

// Entry records a single step.
type Entry struct {
	Time    time.Time `json:"time"`
	Command string    `json:"command"` // "install" | "dry-run" | "rollback"
	Step    string    `json:"step"`
	Feature string    `json:"feature,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
}

// Trail is an audit log file. The zero value writes to DefaultPath.
type Trail struct {
	Path string
}

// DefaultPath is $XDG_STATE_HOME/autozsh/history.log.
func DefaultPath() string {
	return filepath.Join(logging.StateDir(), "history.log")
}

func (t *Trail) path() string {
	if t == nil || t.Path == "" {
		return DefaultPath()
	}
	return t.Path
}

// Log appends e. Errors are logged at debug level and otherwise ignored so
// that auditing never halts a run.
func (t *Trail) Log(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if err := t.append(e); err != nil {
		logger := logging.GetLogger("audit")
		logger.Debug().Err(err).Msg("audit entry dropped")
	}
}

func (t *Trail) append(e Entry) error {
	path := t.path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// Read loads entries, optionally filtered by command. It returns the last
// limit entries (all if limit <= 0).
func (t *Trail) Read(command string, limit int) ([]Entry, error) {
	f, err := os.Open(t.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue // skip malformed lines
		}
		if command != "" && e.Command != command {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
