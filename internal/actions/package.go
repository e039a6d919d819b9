package actions

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/pkgmgr"
	"github.com/atomikpanda/autozsh/internal/probe"
)

// PackageAction installs a package through the host package manager unless
// one of its executables is already on PATH.
type PackageAction struct {
	Package     string   // name for the active manager
	Executables []string // any one of these proves the package is present
	Installer   pkgmgr.Installer
	Probe       *probe.Probe
	Out         io.Writer
}

func (a *PackageAction) Describe() string {
	via := "package manager"
	if a.Installer != nil {
		via = a.Installer.Name()
	}
	return fmt.Sprintf("install package %q via %s", a.Package, via)
}

func (a *PackageAction) present() string {
	for _, bin := range a.Executables {
		if a.Probe.Executable(bin) {
			return bin
		}
	}
	return ""
}

func (a *PackageAction) Run(ctx context.Context, dryRun bool) error {
	return runVia(ctx, a, dryRun, a.Out)
}

func (a *PackageAction) Plan(ctx context.Context) string {
	if bin := a.present(); bin != "" {
		return bin + " on PATH"
	}
	if m, ok := a.Installer.(*pkgmgr.Manager); ok {
		return "would run " + strings.Join(m.Command(a.Package), " ")
	}
	return "would install"
}

func (a *PackageAction) Ensure(ctx context.Context) Outcome {
	if bin := a.present(); bin != "" {
		return Outcome{Status: SkippedExisting, Target: a.Package, Reason: bin + " already on PATH"}
	}
	if a.Installer == nil {
		return failed(a.Package, errors.New(errors.ErrPrecondition, "no package manager available"))
	}
	if err := a.Installer.Install(ctx, a.Package); err != nil {
		return failed(a.Package, err)
	}
	return Outcome{Status: Created, Target: a.Package, Reason: "installed via " + a.Installer.Name()}
}
