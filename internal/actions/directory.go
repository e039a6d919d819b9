package actions

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
	"github.com/atomikpanda/autozsh/internal/probe"
	"github.com/atomikpanda/autozsh/internal/remote"
)

// VersionedDirectoryAction keeps a git checkout at Target.
//
//   - Target is a checkout: fast-forward it. A failed update is a warning;
//     the existing content is left as it was.
//   - Target exists but is not a checkout: never touched, warning.
//   - Target absent: shallow clone. A failed clone is Failed; the caller
//     decides whether that is fatal.
type VersionedDirectoryAction struct {
	URL    string
	Target string // already expanded and checked for containment
	Git    remote.Git
	Probe  *probe.Probe
	Out    io.Writer
}

func (a *VersionedDirectoryAction) Describe() string {
	return fmt.Sprintf("git %s -> %s", a.URL, a.Target)
}

func (a *VersionedDirectoryAction) Run(ctx context.Context, dryRun bool) error {
	return runVia(ctx, a, dryRun, a.Out)
}

func (a *VersionedDirectoryAction) Plan(ctx context.Context) string {
	switch {
	case a.Probe.VersionControlled(a.Target):
		return "present, would fast-forward"
	case exists(a.Target):
		return "exists but is not a git checkout, would skip"
	default:
		return "absent, would clone"
	}
}

func (a *VersionedDirectoryAction) Ensure(ctx context.Context) Outcome {
	logger := logging.GetLogger("actions")

	if a.Probe.VersionControlled(a.Target) {
		updated, err := a.Git.PullFastForwardOnly(ctx, a.Target)
		if err != nil {
			logger.Warn().Err(err).Str("target", a.Target).Msg("update failed, keeping existing checkout")
			return Outcome{
				Status:  SkippedExisting,
				Target:  a.Target,
				Reason:  "update failed",
				Warning: fmt.Sprintf("could not update %s: %v", a.Target, err),
			}
		}
		if updated {
			return Outcome{Status: Updated, Target: a.Target, Reason: "fast-forwarded"}
		}
		return Outcome{Status: SkippedExisting, Target: a.Target, Reason: "up to date"}
	}

	if exists(a.Target) {
		return Outcome{
			Status:  SkippedExisting,
			Target:  a.Target,
			Reason:  "not a git checkout",
			Warning: fmt.Sprintf("%s exists and is not a git checkout; left untouched", a.Target),
		}
	}

	if err := os.MkdirAll(filepath.Dir(a.Target), 0o755); err != nil {
		return failed(a.Target, errors.Wrapf(err, errors.ErrResourceFetch, "create parent of %s", a.Target))
	}
	if err := a.Git.Clone(ctx, a.URL, a.Target); err != nil {
		// the target was absent before, so anything there now is ours
		os.RemoveAll(a.Target)
		return failed(a.Target, errors.Wrap(err, errors.ErrResourceFetch, "clone failed"))
	}
	logger.Info().Str("url", a.URL).Str("target", a.Target).Msg("cloned")
	return Outcome{
		Status: Created,
		Target: a.Target,
		Reason: "cloned",
		Paths:  []CreatedPath{{Path: a.Target, Kind: PathDirectory}},
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
