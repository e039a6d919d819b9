// Package pkgmgr drives the host package manager. One Manager covers every
// supported family; the family only changes the argument table.
package pkgmgr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
)

// Installer is the package-installer capability.
type Installer interface {
	Name() string
	UpdateIndex(ctx context.Context) error
	Install(ctx context.Context, names ...string) error
}

// Commander runs an external command. *shell.Runner satisfies it.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) error
}

// QuietCommander also runs a command with its output captured, keeping
// only the last line in the error. The index refresh uses it when the
// Commander supports it.
type QuietCommander interface {
	Commander
	Quiet(ctx context.Context, name string, args ...string) error
}

// Manager implements Installer for one package manager family.
type Manager struct {
	Family string
	// Root is true when the process already runs as uid 0.
	Root bool
	Exec Commander
}

// New returns a Manager for family. It fails for families it has no
// argument table for.
func New(family string, run Commander) (*Manager, error) {
	if _, err := installArgs(family, "x"); err != nil {
		return nil, err
	}
	return &Manager{Family: family, Root: os.Geteuid() == 0, Exec: run}, nil
}

func (m *Manager) Name() string { return m.Family }

// NeedsElevation reports whether commands are prefixed with sudo.
func (m *Manager) NeedsElevation() bool {
	return !m.Root && m.Family != "brew"
}

func (m *Manager) UpdateIndex(ctx context.Context) error {
	args, err := updateArgs(m.Family)
	if err != nil {
		return err
	}
	if err := m.run(ctx, args, true); err != nil {
		return errors.Wrap(err, errors.ErrResourceFetch, "refresh package index")
	}
	return nil
}

func (m *Manager) Install(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	args, err := installArgs(m.Family, names...)
	if err != nil {
		return err
	}
	if err := m.run(ctx, args, false); err != nil {
		return errors.Wrapf(err, errors.ErrResourceFetch, "install %s", strings.Join(names, " "))
	}
	return nil
}

// Command returns the full command line Install would run, for dry-run
// output.
func (m *Manager) Command(names ...string) []string {
	args, err := installArgs(m.Family, names...)
	if err != nil {
		return nil
	}
	return m.elevate(args)
}

func (m *Manager) run(ctx context.Context, args []string, quiet bool) error {
	full := m.elevate(args)
	logger := logging.GetLogger("pkgmgr")
	logger.Debug().Str("family", m.Family).Strs("argv", full).Bool("quiet", quiet).Msg("package manager")
	if q, ok := m.Exec.(QuietCommander); ok && quiet {
		return q.Quiet(ctx, full[0], full[1:]...)
	}
	return m.Exec.Run(ctx, full[0], full[1:]...)
}

func (m *Manager) elevate(args []string) []string {
	if m.NeedsElevation() {
		return append([]string{"sudo"}, args...)
	}
	return args
}

// installArgs returns the command + arguments that install pkgs with the
// given manager, without any privilege prefix.
func installArgs(manager string, pkgs ...string) ([]string, error) {
	var base []string
	switch manager {
	case "brew":
		base = []string{"brew", "install"}
	case "apt", "apt-get":
		base = []string{"apt-get", "install", "-y"}
	case "dnf":
		base = []string{"dnf", "install", "-y"}
	case "yum":
		base = []string{"yum", "install", "-y"}
	case "pacman":
		base = []string{"pacman", "-S", "--noconfirm", "--needed"}
	case "zypper":
		base = []string{"zypper", "--non-interactive", "install"}
	case "apk":
		base = []string{"apk", "add"}
	default:
		return nil, errors.Newf(errors.ErrPrecondition, "unsupported platform: unknown package manager %q", manager)
	}
	return append(base, pkgs...), nil
}

// updateArgs returns the command that refreshes the package index.
func updateArgs(manager string) ([]string, error) {
	switch manager {
	case "brew":
		return []string{"brew", "update"}, nil
	case "apt", "apt-get":
		return []string{"apt-get", "update"}, nil
	case "dnf":
		return []string{"dnf", "makecache"}, nil
	case "yum":
		return []string{"yum", "makecache"}, nil
	case "pacman":
		return []string{"pacman", "-Sy"}, nil
	case "zypper":
		return []string{"zypper", "--non-interactive", "refresh"}, nil
	case "apk":
		return []string{"apk", "update"}, nil
	default:
		return nil, fmt.Errorf("unknown package manager: %q", manager)
	}
}
