package runner

import (
	"fmt"
	"io"

	"github.com/atomikpanda/autozsh/internal/color"
	"github.com/atomikpanda/autozsh/internal/logging"
	"github.com/atomikpanda/autozsh/internal/rcfile"
	"github.com/atomikpanda/autozsh/internal/snapshot"
)

// Summary collects what a run did and everything the user should know
// about afterwards.
type Summary struct {
	// Configured lists features whose directives were applied.
	Configured []string
	// Withheld lists features whose directives were skipped because one
	// of their resources failed.
	Withheld []string
	Warnings []string
	Changes  []rcfile.Change
	Backup   *snapshot.Record
	Rollback *snapshot.RollbackResult
	// Stopped is true when the run ended early by choice (abort or
	// rollback-then-stop).
	Stopped bool
}

func (s *Summary) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.Warnings = append(s.Warnings, msg)
	logger := logging.GetLogger("runner")
	logger.Warn().Msg(msg)
}

// Print writes the end-of-run report.
func (s *Summary) Print(w io.Writer) {
	if s.Backup != nil {
		fmt.Fprintf(w, "\nBackup: %s\n", s.Backup.Path)
	}
	changed := 0
	for _, c := range s.Changes {
		if c.Action != rcfile.NoOp {
			changed++
		}
	}
	if changed > 0 {
		fmt.Fprintf(w, "Config: %d change(s)\n", changed)
	}
	if len(s.Warnings) == 0 {
		if !s.Stopped {
			fmt.Fprintln(w, color.BoldGreen("\nDone."))
		}
		return
	}
	fmt.Fprintln(w, color.BoldYellow(fmt.Sprintf("\nFinished with %d warning(s):", len(s.Warnings))))
	for _, msg := range s.Warnings {
		color.Warnf(w, "%s", msg)
	}
}
