package actions

import (
	"context"
	"fmt"
	"io"

	"github.com/atomikpanda/autozsh/internal/errors"
	"github.com/atomikpanda/autozsh/internal/logging"
	"github.com/atomikpanda/autozsh/internal/remote"
)

// DownloadAction fetches a single file over HTTP unless something already
// exists at Target.
type DownloadAction struct {
	URL    string
	Target string
	HTTP   remote.HTTP
	Out    io.Writer
}

func (a *DownloadAction) Describe() string {
	return fmt.Sprintf("download %s -> %s", a.URL, a.Target)
}

func (a *DownloadAction) Run(ctx context.Context, dryRun bool) error {
	return runVia(ctx, a, dryRun, a.Out)
}

func (a *DownloadAction) Plan(ctx context.Context) string {
	if exists(a.Target) {
		return "present"
	}
	return "absent, would download"
}

func (a *DownloadAction) Ensure(ctx context.Context) Outcome {
	if exists(a.Target) {
		return Outcome{Status: SkippedExisting, Target: a.Target, Reason: "already present"}
	}
	if err := a.HTTP.Download(ctx, a.URL, a.Target); err != nil {
		return failed(a.Target, errors.Wrap(err, errors.ErrResourceFetch, "download failed"))
	}
	logger := logging.GetLogger("actions")
	logger.Info().Str("url", a.URL).Str("target", a.Target).Msg("downloaded")
	return Outcome{
		Status: Created,
		Target: a.Target,
		Reason: "downloaded",
		Paths:  []CreatedPath{{Path: a.Target, Kind: PathFile}},
	}
}
