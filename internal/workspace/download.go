package workspace

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/Norgate-AV/pcs/internal/logger"
)

// Resolver resolves the dependencies declared in a workspace manifest
type Resolver interface {
	Resolve(ctx context.Context, dir string) error
}

// Downloader fetches a remote artifact into dst
type Downloader interface {
	Download(ctx context.Context, url, dst string) error
}

// RetryableDownloader downloads artifacts over HTTP, retrying transient failures
type RetryableDownloader struct {
	client *retryablehttp.Client
}

// NewRetryableDownloader creates a downloader that logs retries to log
func NewRetryableDownloader(log *zap.Logger) *RetryableDownloader {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = leveledLogger{logger.OrNop(log).Sugar()}

	return &RetryableDownloader{client: client}
}

// Download writes the response body of a GET for url to dst, verbatim
func (d *RetryableDownloader) Download(ctx context.Context, url, dst string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}

	return os.Rename(tmp.Name(), dst)
}

// leveledLogger routes retryablehttp logging through zap
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
func (l leveledLogger) Info(msg string, kv ...any)  { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l leveledLogger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
