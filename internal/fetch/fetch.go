// Package fetch retrieves remote files for model downloads and self-update
// checks. The source is selected by URL scheme: https/http use a plain HTTP
// fetcher, s3 uses the AWS download manager.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"

	"github.com/go-logr/logr"
)

// Fetcher writes the content of a remote source into an open file.
type Fetcher interface {
	Fetch(ctx context.Context, f *os.File, src string) error
}

// ForURL returns the fetcher for a source URL.
func ForURL(rawURL string, logger logr.Logger) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse source URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return NewHTTPFetcher(logger), nil
	case "s3":
		return NewS3Fetcher(logger), nil
	default:
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
}

// NewAuto returns a fetcher that dispatches on the URL scheme of each
// source it is asked to fetch.
func NewAuto(logger logr.Logger) *Auto {
	return &Auto{logger: logger}
}

// Auto selects the concrete fetcher per source URL.
type Auto struct {
	logger logr.Logger
}

// Fetch downloads src into f with the fetcher matching src's scheme.
func (a *Auto) Fetch(ctx context.Context, f *os.File, src string) error {
	fetcher, err := ForURL(src, a.logger)
	if err != nil {
		return err
	}
	return fetcher.Fetch(ctx, f, src)
}

// Filename extracts the destination filename from a source URL.
func Filename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse source URL: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("source URL %q has no filename", rawURL)
	}
	return name, nil
}
