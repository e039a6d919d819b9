// Package runner sequences an autozsh run: checks, feature installation
// stage by stage, rc file merge and the login shell change. It also drives
// rollback and the dry-run report.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/atomikpanda/autozsh/internal/actions"
	"github.com/atomikpanda/autozsh/internal/audit"
	"github.com/atomikpanda/autozsh/internal/catalog"
	"github.com/atomikpanda/autozsh/internal/color"
	"github.com/atomikpanda/autozsh/internal/config"
	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
	"github.com/atomikpanda/autozsh/internal/manifest"
	"github.com/atomikpanda/autozsh/internal/pkgmgr"
	"github.com/atomikpanda/autozsh/internal/platform"
	"github.com/atomikpanda/autozsh/internal/probe"
	"github.com/atomikpanda/autozsh/internal/rcfile"
	"github.com/atomikpanda/autozsh/internal/remote"
	"github.com/atomikpanda/autozsh/internal/selection"
	"github.com/atomikpanda/autozsh/internal/shell"
	"github.com/atomikpanda/autozsh/internal/snapshot"
)

// Elevator obtains root rights before the first package install.
type Elevator interface {
	Ensure(ctx context.Context) error
}

// Resolver picks the optional features.
type Resolver interface {
	Resolve(ctx context.Context, mode selection.Mode, raw []string) ([]string, error)
}

// Runner holds everything a run needs. Nothing is read from globals: the
// CLI builds one Runner from the resolved settings.
type Runner struct {
	Settings *config.Settings
	Catalog  *catalog.Catalog
	Probe    *probe.Probe
	Fetcher  *actions.Fetcher
	// NewInstaller builds the installer for a detected package manager.
	NewInstaller func(family string) (pkgmgr.Installer, error)
	Elevator     Elevator
	Snapshots    *snapshot.Manager
	Manifest     *manifest.Manifest
	// ManifestFound is true when Manifest was read from disk.
	ManifestFound bool
	Audit         *audit.Trail
	Resolver      Resolver
	Mode          selection.Mode
	Prompt        Prompter
	Exec          pkgmgr.Commander
	GOOS          string
	// LoginShell is the user's current login shell ($SHELL).
	LoginShell string
	// Purge also removes the framework directory on rollback.
	Purge bool
	// Progress shows spinners for long fetches.
	Progress bool
	Out      io.Writer
	Err      io.Writer

	state   State
	trace   []State
	command string
	summary *Summary
}

// New wires a Runner to the real host: go-git, HTTP, the shell and the
// manifest in the state directory.
func New(s *config.Settings, cat *catalog.Catalog, mode selection.Mode, prompt Prompter) (*Runner, error) {
	m, found, err := manifest.Load(manifest.DefaultPath())
	if err != nil {
		return nil, err
	}
	sh := shell.New()
	pr := probe.New()

	opts := make([]selection.Option, 0, len(cat.Optional()))
	for _, f := range cat.Optional() {
		opts = append(opts, selection.Option{ID: f.ID, Label: f.Label, Description: f.Description})
	}
	resolver := selection.NewResolver(opts)
	resolver.Preselected = s.Features

	return &Runner{
		Settings: s,
		Catalog:  cat,
		Probe:    pr,
		Fetcher: &actions.Fetcher{
			Git:   remote.NewGoGit(),
			HTTP:  remote.NewDownloader(os.Stderr),
			Probe: pr,
			Roots: s.Roots(),
			Vars:  s.Vars(),
		},
		NewInstaller: func(family string) (pkgmgr.Installer, error) {
			return pkgmgr.New(family, sh)
		},
		Elevator:      pkgmgr.NewElevator(sh),
		Snapshots:     &snapshot.Manager{Key: s.BackupKey()},
		Manifest:      m,
		ManifestFound: found,
		Audit:         &audit.Trail{},
		Resolver:      resolver,
		Mode:          mode,
		Prompt:        prompt,
		Exec:          sh,
		GOOS:          platform.Current(),
		LoginShell:    os.Getenv("SHELL"),
		Progress:      true,
		Out:           os.Stdout,
		Err:           os.Stderr,
	}, nil
}

// Trace returns the states the last run went through, in order.
func (r *Runner) Trace() []State { return r.trace }

func (r *Runner) enter(s State) {
	r.state = s
	r.trace = append(r.trace, s)
	logger := logging.GetLogger("runner")
	logger.Debug().Str("state", s.String()).Msg("enter state")
}

func (r *Runner) begin(command string) {
	r.command = command
	r.summary = &Summary{}
	r.trace = nil
	r.enter(StateStart)
}

func (r *Runner) heading(title string) {
	fmt.Fprintf(r.Out, "\n==> %s\n", color.Bold(title))
}

// record appends an audit entry for the current state.
func (r *Runner) record(feature, detail, outcome string, err error) {
	e := audit.Entry{
		Command: r.command,
		Step:    r.state.String(),
		Feature: feature,
		Detail:  detail,
		Outcome: outcome,
	}
	if err != nil {
		e.Error = err.Error()
	}
	r.Audit.Log(e)
}

func (r *Runner) lookPath(name string) (string, error) {
	if r.Probe != nil && r.Probe.LookPath != nil {
		return r.Probe.LookPath(name)
	}
	return exec.LookPath(name)
}

// Install runs the full install flow. The returned Summary is non-nil even
// on error so warnings gathered before the failure can be shown.
func (r *Runner) Install(ctx context.Context) (*Summary, error) {
	r.begin("install")
	logger := logging.GetLogger("runner")
	defer logging.LogOperationStart(logger, "install")()

	r.enter(StateDependencyCheck)
	if err := r.checkDependencies(); err != nil {
		return r.summary, r.fatal(err)
	}

	r.enter(StateEnvironmentCheck)
	if err := r.checkEnvironment(ctx); err != nil {
		return r.summary, r.fatal(err)
	}

	r.enter(StatePriorInstallCheck)
	proceed, err := r.checkPriorInstall(ctx)
	if err != nil {
		return r.summary, r.fatal(err)
	}
	if !proceed {
		r.summary.Stopped = true
		r.enter(StateDone)
		return r.summary, nil
	}
	if err := r.Manifest.Begin(r.ManifestFound, time.Now()); err != nil {
		r.summary.warn("could not start the manifest: %v", err)
	}
	r.ManifestFound = true

	r.enter(StateSelection)
	selected, err := r.Resolver.Resolve(ctx, r.Mode, r.Settings.Features)
	if err != nil {
		return r.summary, r.fatal(err)
	}
	r.record("", fmt.Sprintf("%d optional feature(s) selected", len(selected)), audit.Success, nil)
	features := r.Catalog.Plan(selected)

	healthy := make(map[string]bool, len(features))
	for _, stage := range catalog.Stages {
		r.enter(stageStates[stage])
		staged := catalog.ByStage(features, stage)
		if len(staged) == 0 {
			continue
		}
		r.heading(stageTitles[stage])
		fontsCreated := false
		for _, f := range staged {
			ok, created, err := r.installFeature(ctx, f)
			if err != nil {
				return r.summary, r.fatal(err)
			}
			healthy[f.ID] = ok
			fontsCreated = fontsCreated || created
		}
		if stage == catalog.StageFonts && fontsCreated {
			r.refreshFontCache(ctx)
		}
	}

	r.enter(StateConfigMerge)
	if err := r.mergeConfig(features, healthy); err != nil {
		return r.summary, r.fatal(err)
	}

	r.enter(StateShellDefault)
	r.setDefaultShell(ctx)

	r.enter(StateDone)
	r.record("", "install finished", audit.Success, nil)
	return r.summary, nil
}

func (r *Runner) fatal(err error) error {
	r.record("", "", audit.Failure, err)
	logger := logging.GetLogger("runner")
	ev := logger.Error().Err(err).Str("state", r.state.String())
	if details := errors.DetailsOf(err); len(details) > 0 {
		ev = ev.Fields(details)
	}
	ev.Msg("run aborted")
	return err
}

func (r *Runner) checkDependencies() error {
	var missing []string
	for _, dep := range r.Settings.Dependencies {
		if !r.Probe.Executable(dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return errors.Newf(errors.ErrPrecondition, "missing required dependencies: %v; install them and run autozsh again", missing).
			WithDetail("missing", missing)
	}
	r.record("", "dependencies present", audit.Success, nil)
	return nil
}

func (r *Runner) checkEnvironment(ctx context.Context) error {
	if err := platform.CheckOS(r.GOOS); err != nil {
		return err
	}
	family, err := platform.DetectPackageManager(r.GOOS, r.lookPath)
	if err != nil {
		return err
	}
	inst, err := r.NewInstaller(family)
	if err != nil {
		return err
	}
	if needsElevation(inst) {
		if err := r.Elevator.Ensure(ctx); err != nil {
			return err
		}
	}
	r.Fetcher.Packages = &refreshingInstaller{Installer: inst, warn: r.summary.warn}
	r.record("", r.GOOS+" via "+family, audit.Success, nil)
	return nil
}

func needsElevation(inst pkgmgr.Installer) bool {
	e, ok := inst.(interface{ NeedsElevation() bool })
	return ok && e.NeedsElevation()
}

// refreshingInstaller updates the package index once, right before the
// first install that actually happens. A failed refresh is only a warning.
type refreshingInstaller struct {
	pkgmgr.Installer
	refreshed bool
	warn      func(format string, args ...any)
}

func (i *refreshingInstaller) Install(ctx context.Context, names ...string) error {
	if !i.refreshed {
		i.refreshed = true
		if err := i.Installer.UpdateIndex(ctx); err != nil {
			i.warn("package index refresh failed: %v", err)
		}
	}
	return i.Installer.Install(ctx, names...)
}

// hasPriorInstall reports whether an earlier install is still in place: a
// manifest not yet rolled back, or an existing framework directory.
func (r *Runner) hasPriorInstall() bool {
	if r.ManifestFound && !r.Manifest.RolledBack() {
		return true
	}
	return r.Probe.DirExists(r.Settings.FrameworkDir)
}

// checkPriorInstall reports whether the install should continue.
func (r *Runner) checkPriorInstall(ctx context.Context) (bool, error) {
	fw := r.Settings.FrameworkDir
	if !r.hasPriorInstall() {
		return true, nil
	}
	policy, err := r.Prompt.PriorInstall(ctx, fw)
	if err != nil {
		return false, err
	}
	r.record("", "prior installation: "+string(policy), audit.Success, nil)

	switch policy {
	case config.PriorUpdate:
		return true, nil
	case config.PriorRollback, config.PriorReinstall:
		r.heading("Rollback")
		res, err := r.rollback(ctx)
		r.printRollback(res)
		if err != nil {
			return false, err
		}
		return policy == config.PriorReinstall, nil
	default:
		fmt.Fprintf(r.Out, "An existing installation was found at %s; nothing changed.\n", fw)
		r.summary.warn("existing installation left untouched (use --on-prior-install=update to update it)")
		return false, nil
	}
}

// installFeature ensures every resource of f. ok is false when an optional
// feature had a failure; a foundational failure is returned as an error.
// created reports whether any file or directory was created.
func (r *Runner) installFeature(ctx context.Context, f catalog.Feature) (ok, created bool, err error) {
	fmt.Fprintf(r.Out, "  -> %s\n", f.Label)
	ok = true
	for _, spec := range f.Resources {
		out := r.ensure(ctx, spec)

		for _, p := range out.Paths {
			created = true
			entry := manifest.Entry{Path: p.Path, Kind: manifest.Kind(p.Kind), Feature: f.ID, InstalledAt: time.Now().UTC()}
			if err := r.Manifest.Record(entry); err != nil {
				r.summary.warn("could not record %s in the manifest: %v", p.Path, err)
			}
		}
		if out.Warning != "" {
			r.summary.warn("%s: %s", f.ID, out.Warning)
		}

		if out.OK() {
			outcome := audit.Success
			if out.Status == actions.SkippedExisting {
				outcome = audit.Skipped
			}
			if out.Warning != "" {
				outcome = audit.Warning
			}
			fmt.Fprintf(r.Out, "     %s\n", color.Dim(out.String()))
			r.record(f.ID, out.String(), outcome, nil)
			continue
		}

		r.record(f.ID, out.String(), audit.Failure, out.Err)
		if f.Foundational {
			fmt.Fprintf(r.Out, "     %s\n", color.Red(out.String()))
			return false, created, errors.Wrapf(out.Err, errors.ErrResourceFetch, "required feature %s failed", f.ID)
		}
		fmt.Fprintf(r.Out, "     %s\n", color.Yellow(out.String()))
		r.summary.warn("%s: %s", f.ID, out.Reason)
		ok = false
	}
	return ok, created, nil
}

// ensure runs one resource, with a spinner for clones. Downloads draw
// their own progress bar and package managers print their own output.
func (r *Runner) ensure(ctx context.Context, spec catalog.ResourceSpec) actions.Outcome {
	if r.Progress && spec.Kind == catalog.KindVersionedDirectory {
		sp := remote.StartSpinner(r.Err, spec.Describe())
		defer sp.Stop()
	}
	return r.Fetcher.Ensure(ctx, spec)
}

// refreshFontCache lets fontconfig see newly installed fonts on Linux.
func (r *Runner) refreshFontCache(ctx context.Context) {
	if r.GOOS != "linux" {
		return
	}
	if _, err := r.lookPath("fc-cache"); err != nil {
		r.summary.warn("fc-cache not found; log out and back in for new fonts to appear")
		return
	}
	if err := r.Exec.Run(ctx, "fc-cache", "-f", r.Settings.FontDir); err != nil {
		r.summary.warn("font cache refresh failed: %v", err)
		r.record("", "fc-cache", audit.Warning, err)
		return
	}
	r.record("", "fc-cache", audit.Success, nil)
}

// directives splits features into the directives to apply and the IDs of
// features whose directives are withheld because they are not healthy.
func directives(features []catalog.Feature, healthy map[string]bool) (apply []rcfile.Directive, configured, withheld []string) {
	for _, f := range features {
		if !healthy[f.ID] {
			if len(f.Directives) > 0 {
				withheld = append(withheld, f.ID)
			}
			continue
		}
		apply = append(apply, f.Directives...)
		if len(f.Directives) > 0 {
			configured = append(configured, f.ID)
		}
	}
	return apply, configured, withheld
}

func (r *Runner) mergeConfig(features []catalog.Feature, healthy map[string]bool) error {
	rc := r.Settings.RCFile
	r.heading("Config " + rc)

	apply, configured, withheld := directives(features, healthy)
	r.summary.Configured = configured
	r.summary.Withheld = withheld
	for _, id := range withheld {
		r.summary.warn("%s: configuration not applied because its installation failed", id)
	}

	preview, err := rcfile.Preview(rc, apply)
	if err != nil {
		return err
	}
	if !preview.Changed() {
		r.summary.Changes = preview.Changes
		fmt.Fprintf(r.Out, "     %s\n", color.Dim("already up to date"))
		r.record("", rc+" up to date", audit.Skipped, nil)
		return nil
	}

	// one backup per run, right before the first mutation
	if !preview.Created {
		rec, err := r.Snapshots.Snapshot(rc)
		if err != nil {
			return err
		}
		r.summary.Backup = rec
	}

	res, err := rcfile.Apply(rc, apply)
	if err != nil {
		return err
	}
	r.summary.Changes = res.Changes
	if res.Created && !r.Manifest.ConfigCreated {
		if err := r.Manifest.MarkConfigCreated(rc); err != nil {
			r.summary.warn("could not record that %s was created: %v", rc, err)
		}
	}
	for _, c := range res.Changes {
		if c.Action != rcfile.NoOp {
			fmt.Fprintf(r.Out, "     %s %s\n", color.Dim(c.Action.String()), c.Directive.Describe())
		}
	}
	r.record("", fmt.Sprintf("%s updated (%d directives)", rc, len(res.Changes)), audit.Success, nil)
	return nil
}

// setDefaultShell switches the login shell to zsh. Every failure is a
// warning: the install is usable without it.
func (r *Runner) setDefaultShell(ctx context.Context) {
	if filepath.Base(r.LoginShell) == "zsh" {
		r.record("", "login shell already zsh", audit.Skipped, nil)
		return
	}
	zsh, err := r.lookPath("zsh")
	if err != nil {
		r.summary.warn("zsh not found on PATH; login shell not changed")
		return
	}
	r.heading("Login shell")
	if err := r.Exec.Run(ctx, "chsh", "-s", zsh); err != nil {
		r.summary.warn("could not change the login shell (run `chsh -s %s` yourself): %v", zsh, err)
		r.record("", "chsh", audit.Warning, err)
		return
	}
	fmt.Fprintf(r.Out, "     %s\n", color.Dim("login shell set to "+zsh))
	r.record("", "login shell set to "+zsh, audit.Success, nil)
}
