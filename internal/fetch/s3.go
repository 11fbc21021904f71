package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
)

// NewS3Fetcher returns a fetcher for s3://bucket/key sources. Credentials
// come from the default AWS credential chain.
func NewS3Fetcher(logger logr.Logger) *S3Fetcher {
	return &S3Fetcher{
		logger:        logger.WithName("s3"),
		newDownloader: newManagerDownloader,
	}
}

// S3Fetcher downloads objects from S3 with the download manager, which
// fetches the object in parts.
type S3Fetcher struct {
	logger logr.Logger

	// newDownloader is swapped in tests.
	newDownloader func(ctx context.Context) (objectDownloader, error)
}

// objectDownloader is the part of manager.Downloader the fetcher uses.
type objectDownloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

func newManagerDownloader(ctx context.Context) (objectDownloader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	const partMiBs int64 = 128
	return manager.NewDownloader(s3.NewFromConfig(cfg), func(d *manager.Downloader) {
		d.PartSize = partMiBs * 1024 * 1024
	}), nil
}

// Fetch downloads the object at src into f. The download manager writes at
// absolute offsets and never shortens the file, so any stale bytes staged by
// an earlier attempt are dropped first.
func (s *S3Fetcher) Fetch(ctx context.Context, f *os.File, src string) error {
	bucket, key, err := splitS3URL(src)
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("truncate destination: %w", err)
	}

	downloader, err := s.newDownloader(ctx)
	if err != nil {
		return err
	}
	n, err := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}
	s.logger.V(1).Info("Fetched", "bucket", bucket, "key", key, "bytes", n)
	return nil
}

func splitS3URL(src string) (bucket, key string, err error) {
	u, err := url.Parse(src)
	if err != nil {
		return "", "", fmt.Errorf("parse S3 URL: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid S3 URL %q", src)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("S3 URL %q has no key", src)
	}
	return u.Host, key, nil
}
