package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"github.com/atomikpanda/autozsh/internal/logging"
)

// HTTP is the plain-file download capability used for fonts.
type HTTP interface {
	Download(ctx context.Context, url, dest string) error
}

// Downloader implements HTTP with net/http. Bytes are staged in a temp file
// next to dest and renamed into place, so dest is either complete or absent.
type Downloader struct {
	Client *http.Client
	// Progress receives a byte progress bar. Nil disables it.
	Progress io.Writer
}

// NewDownloader returns a Downloader using http.DefaultClient.
func NewDownloader(progress io.Writer) *Downloader {
	return &Downloader{Client: http.DefaultClient, Progress: progress}
}

func (d *Downloader) Download(ctx context.Context, url, dest string) error {
	logger := logging.GetLogger("remote.http")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "autozsh/1")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: HTTP %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	var w io.Writer = tmp
	if d.Progress != nil {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(d.Progress),
			progressbar.OptionSetDescription(filepath.Base(dest)),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		w = io.MultiWriter(tmp, bar)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("install %s: %w", dest, err)
	}
	logger.Debug().Str("url", url).Str("dest", dest).Int64("bytes", n).Msg("downloaded")
	return nil
}
