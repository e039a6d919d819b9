package pkgmgr

import (
	"context"
	"os"
	"os/exec"

	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
)

// Elevator obtains root rights for package installs. Root processes never
// need it; everyone else must have a working sudo before the first
// install.
type Elevator struct {
	Root     bool
	LookPath func(string) (string, error)
	Exec     Commander
	primed   bool
}

// NewElevator returns an Elevator for the current process.
func NewElevator(run Commander) *Elevator {
	return &Elevator{Root: os.Geteuid() == 0, LookPath: exec.LookPath, Exec: run}
}

// Ensure primes the sudo timestamp with `sudo -v`, prompting on the
// terminal if sudo needs a password. It fails with a precondition error
// when sudo is missing or refuses.
func (e *Elevator) Ensure(ctx context.Context) error {
	if e.Root || e.primed {
		return nil
	}
	look := e.LookPath
	if look == nil {
		look = exec.LookPath
	}
	if _, err := look("sudo"); err != nil {
		return errors.New(errors.ErrPrecondition, "root privileges required: not running as root and sudo is not installed")
	}
	if err := e.Exec.Run(ctx, "sudo", "-v"); err != nil {
		return errors.Wrap(err, errors.ErrPrecondition, "root privileges required: sudo -v failed")
	}
	logger := logging.GetLogger("pkgmgr")
	logger.Debug().Msg("sudo timestamp primed")
	e.primed = true
	return nil
}
