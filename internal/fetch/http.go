package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-logr/logr"
)

// NewHTTPFetcher returns a fetcher for http and https sources. Downloads
// resume from the current size of the destination file when the server
// supports range requests.
func NewHTTPFetcher(logger logr.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		client: http.DefaultClient,
		logger: logger.WithName("http"),
	}
}

// HTTPFetcher downloads files over HTTP.
type HTTPFetcher struct {
	client *http.Client
	logger logr.Logger
}

// Fetch downloads src into f. Cancelling the context aborts the transfer.
func (h *HTTPFetcher) Fetch(ctx context.Context, f *os.File, src string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("request creation error: %w", err)
	}

	var offset int64
	if fi, err := f.Stat(); err == nil && fi.Size() > 0 {
		offset = fi.Size()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %q: %w", src, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		// The server ignored the range request; start over.
		if offset > 0 {
			h.logger.V(1).Info("Server does not support resume, restarting download", "src", src)
			if err := f.Truncate(0); err != nil {
				return err
			}
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
	case http.StatusPartialContent:
		h.logger.V(1).Info("Resuming download", "src", src, "offset", offset)
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return err
		}
	default:
		return fmt.Errorf("fetch %q: unexpected status %d", src, resp.StatusCode)
	}

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return fmt.Errorf("fetch %q: %w", src, err)
	}
	h.logger.V(1).Info("Fetched", "src", src, "bytes", n)
	return nil
}
