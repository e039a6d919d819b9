package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
	"github.com/atomikpanda/autozsh/internal/manifest"
	"github.com/atomikpanda/autozsh/internal/platform"
)

// RollbackOptions configures Rollback.
type RollbackOptions struct {
	RCFile string
	// Manifest lists created paths. Nil means no manifest has ever been
	// written and Fallback is used instead.
	Manifest *manifest.Manifest
	Fallback []string
	// Roots bound every removal.
	Roots []string
	// FrameworkDir is only removed by the purge step.
	FrameworkDir   string
	PurgeFramework bool
	// Now stamps the manifest. Nil means time.Now.
	Now func() time.Time
	// Confirm asks a yes/no question. Nil answers no.
	Confirm func(ctx context.Context, prompt string) (bool, error)
}

// RollbackResult reports what Rollback did.
type RollbackResult struct {
	Restored        *Record
	RemovedConfig   bool
	Removed         []string
	Missing         []string
	Refused         []string
	Kept            []string
	Purged          bool
	ManifestCleared bool
	Warnings        []string
}

func (r *RollbackResult) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	logger := logging.GetLogger("snapshot")
	logger.Warn().Msg(msg)
}

// Rollback undoes an installation:
//
//  1. the rc file is removed if autozsh created it, otherwise the latest
//     backup taken since the manifest's install cycle began is restored
//     (no backup is a warning); a manifest already rolled back skips this;
//  2. every managed path is removed, newest first; paths outside Roots are
//     refused and never deleted;
//  3. the framework directory is purged only when PurgeFramework is set
//     and Confirm agrees to a separate prompt;
//  4. the manifest is emptied and stamped as rolled back when nothing was
//     refused. The file is kept so later runs know nothing remains.
//
// Running it again when nothing remains only produces warnings. The
// returned error is non-nil only when the rc file could not be restored;
// the remaining steps still run.
func (m *Manager) Rollback(ctx context.Context, opts RollbackOptions) (RollbackResult, error) {
	logger := logging.GetLogger("snapshot")
	var res RollbackResult
	var restoreErr error

	switch {
	case opts.Manifest != nil && opts.Manifest.RolledBack():
		res.warn("already rolled back at %s; nothing installed since", opts.Manifest.RolledBackAt.Local().Format(time.DateTime))
	case opts.Manifest != nil && opts.Manifest.ConfigCreated:
		if err := os.Remove(opts.RCFile); err == nil {
			res.RemovedConfig = true
			logger.Info().Str("path", opts.RCFile).Msg("removed rc file created by autozsh")
		} else if !os.IsNotExist(err) {
			restoreErr = errors.Wrapf(err, errors.ErrRollback, "remove %s", opts.RCFile)
		}
	default:
		var since time.Time
		if opts.Manifest != nil {
			since = opts.Manifest.Since
		}
		latest, err := m.LatestSince(opts.RCFile, since)
		switch {
		case err != nil:
			restoreErr = err
		case latest == nil && !since.IsZero():
			res.warn("no backup of %s taken since %s; leaving it as it is", opts.RCFile, since.Local().Format(time.DateTime))
		case latest == nil:
			res.warn("no backup of %s found; leaving it as it is", opts.RCFile)
		default:
			if _, err := m.Restore(*latest); err != nil {
				restoreErr = err
			} else {
				res.Restored = latest
			}
		}
	}

	for _, p := range managedPaths(opts) {
		if opts.FrameworkDir != "" && filepath.Clean(p) == filepath.Clean(opts.FrameworkDir) {
			res.Kept = append(res.Kept, p)
			continue
		}
		if err := platform.Contained(p, opts.Roots...); err != nil {
			res.Refused = append(res.Refused, p)
			res.warn("refusing to remove %s: outside the managed roots", p)
			continue
		}
		if _, err := os.Lstat(p); os.IsNotExist(err) {
			res.Missing = append(res.Missing, p)
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			res.Refused = append(res.Refused, p)
			res.warn("could not remove %s: %v", p, err)
			continue
		}
		res.Removed = append(res.Removed, p)
		logger.Info().Str("path", p).Msg("removed")
	}

	if opts.PurgeFramework && opts.FrameworkDir != "" {
		if err := m.purge(ctx, opts, &res); err != nil {
			return res, err
		}
	}

	if opts.Manifest != nil && !opts.Manifest.RolledBack() && len(res.Refused) == 0 && restoreErr == nil {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		if err := opts.Manifest.MarkRolledBack(now()); err != nil {
			res.warn("%v", err)
		} else {
			res.ManifestCleared = true
		}
	}
	if len(res.Removed) == 0 && res.Restored == nil && !res.RemovedConfig && !res.Purged {
		res.warn("nothing to roll back")
	}
	return res, restoreErr
}

func (m *Manager) purge(ctx context.Context, opts RollbackOptions, res *RollbackResult) error {
	dir := opts.FrameworkDir
	if err := platform.Contained(dir, opts.Roots...); err != nil {
		res.Refused = append(res.Refused, dir)
		res.warn("refusing to purge %s: outside the managed roots", dir)
		return nil
	}
	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		res.Missing = append(res.Missing, dir)
		return nil
	}
	if opts.Confirm == nil {
		res.warn("not purging %s: no confirmation", dir)
		return nil
	}
	ok, err := opts.Confirm(ctx, fmt.Sprintf("Permanently delete the entire framework directory %s, including anything you added to it?", dir))
	if err != nil {
		return err
	}
	if !ok {
		res.warn("kept %s", dir)
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		res.Refused = append(res.Refused, dir)
		res.warn("could not purge %s: %v", dir, err)
		return nil
	}
	res.Purged = true
	res.Kept = removeString(res.Kept, dir)
	logger := logging.GetLogger("snapshot")
	logger.Info().Str("path", dir).Msg("framework purged")
	return nil
}

// managedPaths returns what step 2 removes: manifest entries newest first
// (the rc file itself is handled by step 1), or the fallback list.
func managedPaths(opts RollbackOptions) []string {
	if opts.Manifest == nil {
		return opts.Fallback
	}
	var out []string
	for _, e := range opts.Manifest.NewestFirst() {
		if e.Kind == manifest.KindConfig {
			continue
		}
		out = append(out, e.Path)
	}
	return out
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
