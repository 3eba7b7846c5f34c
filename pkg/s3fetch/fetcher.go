package s3fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eunmann/lasacres/internal/logctx"
	"github.com/eunmann/lasacres/pkg/logging"
)

// FetchConfig configures a fetch of every survey file under an S3 prefix.
type FetchConfig struct {
	// URI is the s3://bucket/prefix to scan.
	URI string
	// DownloadDir is the local directory to download files to. Empty means a
	// fresh temporary directory.
	DownloadDir string
	// Concurrency is the number of parallel file downloads (default: 4).
	Concurrency int
	// KeepFiles if true, Cleanup leaves the downloaded files in place.
	KeepFiles  bool
	Downloader DownloaderConfig
}

// FetchResult lists the downloaded objects and their local copies, index
// aligned and sorted by key.
type FetchResult struct {
	Objects    []Object
	LocalFiles []string
	Bytes      int64
	Elapsed    time.Duration
}

// Fetcher downloads survey files from S3.
type Fetcher struct {
	client *Client
	cfg    FetchConfig
}

// NewFetcher creates a new survey fetcher.
func NewFetcher(client *Client, cfg FetchConfig) *Fetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Fetcher{client: client, cfg: cfg}
}

// Dir returns the local download directory, once Fetch has chosen it.
func (f *Fetcher) Dir() string {
	return f.cfg.DownloadDir
}

// Fetch lists the prefix and downloads every survey file. Any failed
// download fails the fetch.
func (f *Fetcher) Fetch(ctx context.Context) (*FetchResult, error) {
	start := time.Now()
	log := logctx.FromContext(ctx).With().Str("phase", "fetch").Logger()

	bucket, key, err := ParseS3URI(f.cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("parse URI: %w", err)
	}

	objects, err := f.client.ListSurveyFiles(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	if f.cfg.DownloadDir == "" {
		dir, err := os.MkdirTemp("", "lasacres-s3-*")
		if err != nil {
			return nil, fmt.Errorf("create download dir: %w", err)
		}
		f.cfg.DownloadDir = dir
	} else if err := os.MkdirAll(f.cfg.DownloadDir, 0755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	log.Info().Str("uri", f.cfg.URI).Int("objects", len(objects)).Str("dir", f.cfg.DownloadDir).Msg("downloading survey files")

	dl := f.client.Downloader(f.cfg.Downloader)
	local := make([]string, len(objects))
	var total atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, obj := range objects {
		g.Go(func() error {
			dest := filepath.Join(f.cfg.DownloadDir, sanitizeFilename(obj.Key))
			res, err := dl.DownloadToFile(gctx, obj.Bucket, obj.Key, dest)
			if err != nil {
				return err
			}
			local[i] = dest
			total.Add(res.BytesDownloaded)
			logging.FileCompleted(log, "fetch", res.Duration).
				Str("key", obj.Key).
				Bytes("size_bytes", res.BytesDownloaded).
				Throughput(res.BytesDownloaded).
				LogDebug("object downloaded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("download survey files: %w", err)
	}

	res := &FetchResult{Objects: objects, LocalFiles: local, Bytes: total.Load(), Elapsed: time.Since(start)}
	logging.PhaseComplete(log, "fetch", res.Elapsed).
		Int("objects", len(objects)).
		Bytes("bytes", res.Bytes).
		Throughput(res.Bytes).
		Log("fetch complete")
	return res, nil
}

// Cleanup removes downloaded files.
func (f *Fetcher) Cleanup() error {
	if f.cfg.KeepFiles || f.cfg.DownloadDir == "" {
		return nil
	}
	return os.RemoveAll(f.cfg.DownloadDir)
}

// sanitizeFilename converts an S3 key to a safe local filename.
func sanitizeFilename(key string) string {
	// filepath.Base extracts the final path component, removing all directory separators
	return filepath.Base(key)
}
