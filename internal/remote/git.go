// Package remote fetches resources from the network: git repositories via
// go-git and plain files over HTTP.
package remote

import (
	"context"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"

	"github.com/atomikpanda/autozsh/internal/logging"
)

// Git is the version-control capability used for frameworks, themes and
// plugins.
type Git interface {
	Clone(ctx context.Context, url, dest string) error
	// PullFastForwardOnly updates dest from its origin. updated is false when
	// the checkout was already current.
	PullFastForwardOnly(ctx context.Context, dest string) (updated bool, err error)
}

// GoGit implements Git in-process with go-git.
type GoGit struct {
	// Depth limits clone history; 0 clones everything.
	Depth int
	// Progress receives the remote's sideband output. Nil discards it.
	Progress io.Writer
}

// NewGoGit returns a Git that makes shallow clones.
func NewGoGit() *GoGit {
	return &GoGit{Depth: 1}
}

func (g *GoGit) Clone(ctx context.Context, url, dest string) error {
	logger := logging.GetLogger("remote.git")
	logger.Debug().Str("url", url).Str("dest", dest).Int("depth", g.Depth).Msg("cloning")

	_, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:          url,
		Depth:        g.Depth,
		SingleBranch: true,
		Progress:     g.Progress,
	})
	if err != nil {
		return fmt.Errorf("clone %s: %w", url, err)
	}
	return nil
}

func (g *GoGit) PullFastForwardOnly(ctx context.Context, dest string) (bool, error) {
	logger := logging.GetLogger("remote.git")

	repo, err := git.PlainOpen(dest)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", dest, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("worktree %s: %w", dest, err)
	}
	// go-git only merges fast-forwards; a diverged branch yields
	// ErrNonFastForwardUpdate and leaves the worktree alone.
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName: "origin",
		Progress:   g.Progress,
	})
	switch {
	case err == git.NoErrAlreadyUpToDate:
		logger.Debug().Str("dest", dest).Msg("already up to date")
		return false, nil
	case err != nil:
		return false, fmt.Errorf("pull %s: %w", dest, err)
	}
	logger.Info().Str("dest", dest).Msg("fast-forwarded")
	return true, nil
}
