// Package downloader places model files into the model store. A download is
// staged in a hidden directory and renamed into the store only after the
// transfer completes with a non-empty file, so a partial download can never
// be mistaken for a servable model.
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/localserve/localserve/internal/fetch"
	"github.com/localserve/localserve/internal/inventory"
)

const partialDirName = ".partial"

const progressInterval = 10 * time.Second

// New returns a new downloader over the given model store directory.
func New(modelDir string, f fetch.Fetcher, logger logr.Logger) *D {
	return &D{
		modelDir: modelDir,
		fetcher:  f,
		logger:   logger.WithName("downloader"),
	}
}

// D is a downloader.
type D struct {
	modelDir string
	fetcher  fetch.Fetcher
	logger   logr.Logger
}

// Downloaded reports whether a completed model file with the given name is
// present in the store. Staged partial files do not count.
func (d *D) Downloaded(filename string) bool {
	fi, err := os.Stat(filepath.Join(d.modelDir, filename))
	return err == nil && !fi.IsDir() && fi.Size() > 0
}

// Download fetches the model at srcURL into the store under filename. If the
// model is already present the download is skipped. An interrupted transfer
// leaves its partial file staged; the next attempt resumes or restarts it.
func (d *D) Download(ctx context.Context, filename, srcURL string) error {
	if !strings.HasSuffix(filename, inventory.ModelFileExt) {
		return fmt.Errorf("destination %q is not a %s file", filename, inventory.ModelFileExt)
	}
	if d.Downloaded(filename) {
		d.logger.Info("Model already downloaded, skipping", "model", filename)
		return nil
	}

	stagingDir := filepath.Join(d.modelDir, partialDirName)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	partialPath := filepath.Join(stagingDir, filename)
	f, err := os.OpenFile(partialPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open staging file: %w", err)
	}

	d.logger.Info("Downloading model", "model", filename, "src", srcURL)
	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		defer func() {
			_ = f.Close()
		}()
		return d.fetcher.Fetch(gctx, f, srcURL)
	})
	g.Go(func() error {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if fi, err := os.Stat(partialPath); err == nil {
					d.logger.Info("Download in progress", "model", filename, "bytes", fi.Size())
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("download %q: %w", filename, err)
	}

	fi, err := os.Stat(partialPath)
	if err != nil {
		return fmt.Errorf("stat downloaded file: %w", err)
	}
	if fi.Size() == 0 {
		_ = os.Remove(partialPath)
		return fmt.Errorf("download %q produced an empty file", filename)
	}

	if err := os.Rename(partialPath, filepath.Join(d.modelDir, filename)); err != nil {
		return fmt.Errorf("move model into store: %w", err)
	}
	d.logger.Info("Downloaded model", "model", filename, "bytes", fi.Size())
	return nil
}
