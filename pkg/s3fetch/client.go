// Package s3fetch lists and downloads survey files stored under an S3 prefix
// so they can be scanned like a local directory.
package s3fetch

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SurveyExt is the object suffix selected by listings, matched
// case-insensitively.
const SurveyExt = ".las"

// API is the subset of the S3 client used here.
type API interface {
	s3.ListObjectsV2APIClient
	manager.DownloadAPIClient
}

// Object is one listed survey file.
type Object struct {
	Bucket string
	Key    string
	Size   int64
}

// URI returns the object's s3:// location.
func (o Object) URI() string {
	return scheme + o.Bucket + "/" + o.Key
}

// Client provides S3 operations for fetching survey files.
type Client struct {
	api API
}

// NewClient creates a new S3 client using default AWS configuration.
func NewClient(ctx context.Context) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewClientWithConfig(cfg), nil
}

// NewClientWithConfig creates a new S3 client with a custom AWS config.
func NewClientWithConfig(cfg aws.Config) *Client {
	return &Client{api: s3.NewFromConfig(cfg)}
}

// NewClientWithAPI wraps an existing API implementation.
func NewClientWithAPI(api API) *Client {
	return &Client{api: api}
}

// ListSurveyFiles returns the survey objects directly under prefix, sorted by
// key. Like local discovery it does not descend into sub-prefixes.
func (c *Client) ListSurveyFiles(ctx context.Context, bucket, prefix string) ([]Object, error) {
	prefix = dirPrefix(prefix)
	p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var out []Object
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.EqualFold(path.Ext(key), SurveyExt) {
				continue
			}
			out = append(out, Object{Bucket: bucket, Key: key, Size: aws.ToInt64(obj.Size)})
		}
	}
	slices.SortFunc(out, func(a, b Object) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// Downloader returns a download manager bound to this client.
func (c *Client) Downloader(cfg DownloaderConfig) *Downloader {
	return NewDownloader(c.api, cfg)
}
