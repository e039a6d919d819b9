package runner

import (
	"context"
	"fmt"

	"github.com/atomikpanda/autozsh/internal/audit"
	"github.com/atomikpanda/autozsh/internal/color"
	"github.com/atomikpanda/autozsh/internal/logging"
	"github.com/atomikpanda/autozsh/internal/platform"
	"github.com/atomikpanda/autozsh/internal/snapshot"
)

// Rollback restores the rc file and removes what earlier runs installed.
func (r *Runner) Rollback(ctx context.Context) (*Summary, error) {
	r.begin("rollback")
	defer logging.LogOperationStart(logging.GetLogger("runner"), "rollback")()

	r.enter(StateRollback)
	r.heading("Rollback")
	res, err := r.rollback(ctx)
	r.printRollback(res)
	if err != nil {
		return r.summary, r.fatal(err)
	}
	r.summary.Stopped = true
	return r.summary, nil
}

func (r *Runner) rollback(ctx context.Context) (snapshot.RollbackResult, error) {
	s := r.Settings
	opts := snapshot.RollbackOptions{
		RCFile:         s.RCFile,
		Roots:          s.Roots(),
		FrameworkDir:   s.FrameworkDir,
		PurgeFramework: r.Purge,
		Confirm:        r.Prompt.Confirm,
	}
	if r.ManifestFound {
		opts.Manifest = r.Manifest
	} else {
		vars := s.Vars()
		opts.Fallback = r.Catalog.ManagedTargets(func(t string) string {
			return platform.ExpandPathWith(t, vars)
		})
	}

	res, err := r.Snapshots.Rollback(ctx, opts)
	r.summary.Rollback = &res
	r.summary.Warnings = append(r.summary.Warnings, res.Warnings...)

	outcome := audit.Success
	switch {
	case err != nil:
		outcome = audit.Failure
	case len(res.Warnings) > 0:
		outcome = audit.Warning
	}
	r.record("", fmt.Sprintf("restored=%t removed=%d refused=%d purged=%t",
		res.Restored != nil || res.RemovedConfig, len(res.Removed), len(res.Refused), res.Purged), outcome, err)
	return res, err
}

func (r *Runner) printRollback(res snapshot.RollbackResult) {
	line := func(verb, path string) {
		fmt.Fprintf(r.Out, "  -> %s %s\n", color.Dim(verb), path)
	}
	if res.Restored != nil {
		line("restored", fmt.Sprintf("%s from %s", res.Restored.Source, res.Restored.Path))
	}
	if res.RemovedConfig {
		line("removed", r.Settings.RCFile)
	}
	for _, p := range res.Removed {
		line("removed", p)
	}
	for _, p := range res.Kept {
		line("kept", p+" (use --purge to delete it)")
	}
	if res.Purged {
		line("purged", r.Settings.FrameworkDir)
	}
}
