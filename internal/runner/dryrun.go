package runner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/atomikpanda/autozsh/internal/audit"
	"github.com/atomikpanda/autozsh/internal/catalog"
	"github.com/atomikpanda/autozsh/internal/color"
	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/platform"
	"github.com/atomikpanda/autozsh/internal/rcfile"
	"github.com/atomikpanda/autozsh/internal/selection"
)

// DryRun reports what an install would do without changing anything. It
// runs the dependency and environment checks, probes every feature and
// previews the rc file merge. Failed checks are collected and returned as
// one precondition error after the report is printed.
func (r *Runner) DryRun(ctx context.Context) (*Summary, error) {
	r.begin("dry-run")
	r.enter(StateDryRunReport)

	var problems []string
	ok := func(label string) { fmt.Fprintf(r.Out, "  %s %s\n", color.Green("ok"), label) }
	bad := func(label string) {
		fmt.Fprintf(r.Out, "  %s %s\n", color.Red("!!"), label)
		problems = append(problems, label)
	}

	r.heading("Dependencies")
	for _, dep := range r.Settings.Dependencies {
		if r.Probe.Executable(dep) {
			ok(dep)
		} else {
			bad(dep + " is missing")
		}
	}

	r.heading("Environment")
	if err := platform.CheckOS(r.GOOS); err != nil {
		bad(err.Error())
	} else {
		ok("platform " + r.GOOS)
		family, err := platform.DetectPackageManager(r.GOOS, r.lookPath)
		if err != nil {
			bad(err.Error())
		} else if inst, err := r.NewInstaller(family); err != nil {
			bad(err.Error())
		} else {
			ok("package manager " + family)
			r.Fetcher.Packages = inst
			if needsElevation(inst) {
				if _, err := r.lookPath("sudo"); err != nil {
					bad("not root and sudo is not installed")
				} else {
					ok("sudo available (will prompt on install)")
				}
			}
		}
	}
	if r.hasPriorInstall() {
		fmt.Fprintf(r.Out, "  %s existing installation at %s (on install: %s)\n",
			color.Yellow("--"), r.Settings.FrameworkDir, r.Settings.OnPriorInstall)
	}

	selected, err := r.dryRunSelection(ctx)
	if err != nil {
		return r.summary, r.fatal(err)
	}
	features := r.Catalog.Plan(selected)
	r.reportFeatures(ctx, selected)

	r.heading("Config " + r.Settings.RCFile)
	healthy := make(map[string]bool, len(features))
	for _, f := range features {
		healthy[f.ID] = true
	}
	apply, _, _ := directives(features, healthy)
	r.reportBlocks(apply)
	preview, err := rcfile.Preview(r.Settings.RCFile, apply)
	if err != nil {
		bad(err.Error())
	} else {
		r.summary.Changes = preview.Changes
		changed := false
		for _, c := range preview.Changes {
			if c.Action != rcfile.NoOp {
				changed = true
				fmt.Fprintf(r.Out, "  would %s: %s\n", verbs[c.Action], c.Directive.Describe())
			}
		}
		switch {
		case !changed:
			fmt.Fprintln(r.Out, "  already up to date")
		case preview.Created:
			fmt.Fprintln(r.Out, "  (file would be created)")
		default:
			fmt.Fprintln(r.Out, "  (a timestamped backup would be taken first)")
		}
	}

	r.summary.Stopped = true
	if len(problems) > 0 {
		err := errors.Newf(errors.ErrPrecondition, "dry run found %d problem(s): %s", len(problems), strings.Join(problems, "; "))
		r.record("", "", audit.Failure, err)
		return r.summary, err
	}
	r.record("", "dry run clean", audit.Success, nil)
	return r.summary, nil
}

// reportBlocks lists the block markers the rc file already carries; those
// blocks are left alone by the merge.
func (r *Runner) reportBlocks(apply []rcfile.Directive) {
	rc := r.Settings.RCFile
	if !r.Probe.FileExists(rc) {
		fmt.Fprintf(r.Out, "  %s does not exist yet\n", rc)
		return
	}
	for _, d := range apply {
		if d.Kind != rcfile.KindBlock {
			continue
		}
		if r.Probe.FileContainsLine(rc, regexp.QuoteMeta(d.Key)) {
			fmt.Fprintf(r.Out, "  %s block %q already present\n", color.Green("ok"), d.Key)
		}
	}
}

var verbs = map[rcfile.Action]string{rcfile.Replaced: "replace", rcfile.Appended: "append"}

// dryRunSelection honours explicit feature lists but never prompts.
func (r *Runner) dryRunSelection(ctx context.Context) ([]string, error) {
	if r.Mode != selection.ModeExplicit {
		return nil, nil
	}
	return r.Resolver.Resolve(ctx, selection.ModeExplicit, r.Settings.Features)
}

// reportFeatures probes every catalog feature, marking which ones the
// current selection would install.
func (r *Runner) reportFeatures(ctx context.Context, selected []string) {
	for _, stage := range catalog.Stages {
		staged := catalog.ByStage(r.Catalog.All(), stage)
		if len(staged) == 0 {
			continue
		}
		r.heading(stageTitles[stage])
		for _, f := range staged {
			tag := "required"
			if f.Optional {
				tag = "optional, not selected"
				for _, id := range selected {
					if id == f.ID {
						tag = "optional, selected"
					}
				}
			}
			fmt.Fprintf(r.Out, "  %s %s\n", f.Label, color.Dim("("+tag+")"))
			for _, spec := range f.Resources {
				if err := r.Fetcher.Run(ctx, spec, true, r.Out); err != nil {
					fmt.Fprintf(r.Out, "    %s: %s\n", spec.Describe(), color.Red(err.Error()))
				}
			}
		}
	}
}
