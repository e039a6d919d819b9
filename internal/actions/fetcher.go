package actions

import (
	"context"
	"io"

	"github.com/atomikpanda/autozsh/internal/catalog"
	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/pkgmgr"
	"github.com/atomikpanda/autozsh/internal/platform"
	"github.com/atomikpanda/autozsh/internal/probe"
	"github.com/atomikpanda/autozsh/internal/remote"
)

// Fetcher turns resource specs into actions and runs them. Every target
// is expanded with Vars and must lie under one of Roots before anything is
// written.
type Fetcher struct {
	Git      remote.Git
	HTTP     remote.HTTP
	Packages pkgmgr.Installer
	Probe    *probe.Probe
	Roots    []string
	Vars     map[string]string
}

// action builds the action for spec, printing to w. Targets outside Roots
// are rejected.
func (f *Fetcher) action(spec catalog.ResourceSpec, w io.Writer) (Ensurer, error) {
	switch spec.Kind {
	case catalog.KindPackage:
		manager := ""
		if f.Packages != nil {
			manager = f.Packages.Name()
		}
		return &PackageAction{
			Package:     spec.PackageName(manager),
			Executables: spec.Executables(),
			Installer:   f.Packages,
			Probe:       f.Probe,
			Out:         w,
		}, nil
	case catalog.KindVersionedDirectory, catalog.KindDownloadableFile:
		target := platform.ExpandPathWith(spec.Target, f.Vars)
		if err := platform.Contained(target, f.Roots...); err != nil {
			return nil, err
		}
		if spec.Kind == catalog.KindDownloadableFile {
			return &DownloadAction{URL: spec.URL, Target: target, HTTP: f.HTTP, Out: w}, nil
		}
		return &VersionedDirectoryAction{URL: spec.URL, Target: target, Git: f.Git, Probe: f.Probe, Out: w}, nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown resource kind %q", spec.Kind)
	}
}

// Ensure converges one resource.
func (f *Fetcher) Ensure(ctx context.Context, spec catalog.ResourceSpec) Outcome {
	a, err := f.action(spec, nil)
	if err != nil {
		target := spec.Target
		if spec.Kind == catalog.KindPackage {
			target = spec.Package
		}
		return failed(target, err)
	}
	return a.Ensure(ctx)
}

// Run builds the action for spec and runs it, printing to w. A dry run
// only prints the plan and has no side effects.
func (f *Fetcher) Run(ctx context.Context, spec catalog.ResourceSpec, dryRun bool, w io.Writer) error {
	a, err := f.action(spec, w)
	if err != nil {
		return err
	}
	return a.Run(ctx, dryRun)
}
