package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/johndauphine/plasticc-ingest/internal/logging"
	"github.com/johndauphine/plasticc-ingest/internal/progress"
)

// SizeMismatchError is returned when a completed download does not have the
// size the manifest promised.
type SizeMismatchError struct {
	Path     string
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%s: downloaded %d bytes, expected %d", e.Path, e.Actual, e.Expected)
}

// Fetcher makes sure local copies of remote files are complete.
type Fetcher struct {
	client *Client

	// Progress is where download bars are drawn; nil disables them.
	Progress io.Writer
}

// NewFetcher creates a Fetcher using client.
func NewFetcher(client *Client) *Fetcher {
	return &Fetcher{client: client}
}

// EnsureDownloaded leaves dest untouched when it already has expectedSize
// bytes. A file of any other size is deleted and downloaded again; a
// missing file is downloaded. Completeness is judged on whole files only.
func (f *Fetcher) EnsureDownloaded(ctx context.Context, url, dest string, expectedSize int64) error {
	info, err := os.Stat(dest)
	switch {
	case err == nil && info.Size() == expectedSize:
		logging.Debug("%s already downloaded (%d bytes)", filepath.Base(dest), expectedSize)
		return nil
	case err == nil:
		logging.Warn("%s has %d bytes, expected %d; downloading again",
			filepath.Base(dest), info.Size(), expectedSize)
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("removing incomplete %s: %w", dest, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking %s: %w", dest, err)
	}

	return f.download(ctx, url, dest, expectedSize)
}

func (f *Fetcher) download(ctx context.Context, url, dest string, expectedSize int64) error {
	name := filepath.Base(dest)
	logging.Info("Downloading %s (%d bytes)", name, expectedSize)

	body, err := f.client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	defer body.Close()

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("creating %s: %w", part, err)
	}

	var w io.Writer = out
	var bar *progress.Tracker
	if f.Progress != nil {
		bar = progress.NewBytes(name, expectedSize, f.Progress)
		w = io.MultiWriter(out, bar)
	}

	n, copyErr := io.Copy(w, body)
	closeErr := out.Close()

	if copyErr != nil || closeErr != nil {
		if bar != nil {
			bar.Abort()
		}
		os.Remove(part)
		if copyErr != nil {
			return fmt.Errorf("downloading %s: %w", name, copyErr)
		}
		return fmt.Errorf("writing %s: %w", part, closeErr)
	}
	if bar != nil {
		bar.Finish()
	}

	if n != expectedSize {
		os.Remove(part)
		return &SizeMismatchError{Path: dest, Expected: expectedSize, Actual: n}
	}

	if err := os.Rename(part, dest); err != nil {
		return fmt.Errorf("moving %s into place: %w", name, err)
	}
	logging.Debug("Downloaded %s", name)
	return nil
}
