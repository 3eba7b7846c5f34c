package s3fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory bucket honoring prefix, delimiter, pagination and
// byte ranges.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
	failKey  string
	gets     int
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	var keys []string
	for k := range f.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if delim != "" && strings.Contains(strings.TrimPrefix(k, prefix), delim) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := len(keys)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k])))})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	f.gets++
	f.mu.Unlock()

	key := aws.ToString(in.Key)
	if key == f.failKey {
		return nil, errors.New("access denied")
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %q", key)
	}

	start, end := int64(0), int64(len(data))-1
	if r := aws.ToString(in.Range); r != "" {
		if _, err := fmt.Sscanf(r, "bytes=%d-%d", &start, &end); err != nil {
			return nil, err
		}
		end = min(end, int64(len(data))-1)
	}
	body := data[start : end+1]
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ContentRange:  aws.String(fmt.Sprintf("bytes %d-%d/%d", start, end, len(data))),
	}, nil
}

func newFake() *fakeS3 {
	return &fakeS3{
		pageSize: 2,
		objects: map[string][]byte{
			"survey/b_tile.LAS":         bytes.Repeat([]byte("b"), 3000),
			"survey/a_tile.las":         bytes.Repeat([]byte("a"), 5000),
			"survey/c_tile.las":         []byte("c"),
			"survey/readme.txt":         []byte("not a tile"),
			"survey/nested/d_tile.las":  []byte("d"),
			"other/e_tile.las":          []byte("e"),
			"survey-archive/f_tile.las": []byte("f"),
		},
	}
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{uri: "s3://my-bucket/path/to/tiles", wantBucket: "my-bucket", wantKey: "path/to/tiles"},
		{uri: "s3://bucket/key", wantBucket: "bucket", wantKey: "key"},
		{uri: "s3://bucket-only/", wantBucket: "bucket-only", wantKey: ""},
		{uri: "s3://bucket", wantBucket: "bucket", wantKey: ""},
		{uri: "https://bucket/key", wantErr: true},
		{uri: "/local/path", wantErr: true},
		{uri: "s3://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if bucket != tt.wantBucket {
				t.Errorf("bucket = %q, want %q", bucket, tt.wantBucket)
			}
			if key != tt.wantKey {
				t.Errorf("key = %q, want %q", key, tt.wantKey)
			}
		})
	}
}

func TestIsS3URIAndDirPrefix(t *testing.T) {
	if !IsS3URI("s3://b/p") || IsS3URI("./tiles") {
		t.Error("IsS3URI misclassified input")
	}
	for in, want := range map[string]string{"": "", "survey": "survey/", "survey/": "survey/"} {
		if got := dirPrefix(in); got != want {
			t.Errorf("dirPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"simple.las", "simple.las"},
		{"path/to/tile.las", "tile.las"},
		{"survey/2024/01/tile_001.LAS", "tile_001.LAS"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := sanitizeFilename(tt.input); got != tt.want {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDownloaderConfig_Defaults(t *testing.T) {
	def := DefaultDownloaderConfig()
	if def.Concurrency < 4 || def.Concurrency > 16 {
		t.Errorf("Concurrency = %d, want within [4, 16]", def.Concurrency)
	}
	if def.PartSize != 16*1024*1024 {
		t.Errorf("PartSize = %d, want 16MB", def.PartSize)
	}

	tests := []struct {
		name     string
		cfg      DownloaderConfig
		wantConc int
		wantPart int64
	}{
		{"all zero", DownloaderConfig{}, def.Concurrency, def.PartSize},
		{"custom concurrency", DownloaderConfig{Concurrency: 8}, 8, def.PartSize},
		{"custom part size", DownloaderConfig{PartSize: 32 * 1024 * 1024}, def.Concurrency, 32 * 1024 * 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewDownloader(&fakeS3{}, tt.cfg).Config()
			if got.Concurrency != tt.wantConc {
				t.Errorf("Concurrency = %d, want %d", got.Concurrency, tt.wantConc)
			}
			if got.PartSize != tt.wantPart {
				t.Errorf("PartSize = %d, want %d", got.PartSize, tt.wantPart)
			}
		})
	}
}

func TestListSurveyFiles(t *testing.T) {
	c := NewClientWithAPI(newFake())
	objs, err := c.ListSurveyFiles(context.Background(), "bucket", "survey")
	if err != nil {
		t.Fatalf("ListSurveyFiles() error: %v", err)
	}

	var keys []string
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	want := []string{"survey/a_tile.las", "survey/b_tile.LAS", "survey/c_tile.las"}
	if !slices.Equal(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
	if objs[0].Size != 5000 || objs[0].URI() != "s3://bucket/survey/a_tile.las" {
		t.Errorf("objs[0] = %+v", objs[0])
	}
}

func TestDownloadToFile(t *testing.T) {
	fake := newFake()
	dl := NewDownloader(fake, DownloaderConfig{Concurrency: 2, PartSize: 1024})
	dest := filepath.Join(t.TempDir(), "a_tile.las")

	res, err := dl.DownloadToFile(context.Background(), "bucket", "survey/a_tile.las", dest)
	if err != nil {
		t.Fatalf("DownloadToFile() error: %v", err)
	}
	if res.BytesDownloaded != 5000 {
		t.Errorf("BytesDownloaded = %d, want 5000", res.BytesDownloaded)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, fake.objects["survey/a_tile.las"]) {
		t.Error("downloaded content differs")
	}
	if fake.gets < 5 {
		t.Errorf("gets = %d, want ranged parts", fake.gets)
	}
}

func TestDownloadToFile_ErrorRemovesFile(t *testing.T) {
	fake := newFake()
	fake.failKey = "survey/a_tile.las"
	dest := filepath.Join(t.TempDir(), "a_tile.las")

	if _, err := NewDownloader(fake, DownloaderConfig{}).DownloadToFile(context.Background(), "bucket", fake.failKey, dest); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("partial file left behind")
	}
}

func TestFetch(t *testing.T) {
	fake := newFake()
	dir := filepath.Join(t.TempDir(), "dl")
	f := NewFetcher(NewClientWithAPI(fake), FetchConfig{
		URI:         "s3://bucket/survey/",
		DownloadDir: dir,
		Concurrency: 2,
		Downloader:  DownloaderConfig{PartSize: 1024},
	})

	res, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(res.LocalFiles) != 3 || res.Bytes != 8001 {
		t.Fatalf("LocalFiles=%v Bytes=%d", res.LocalFiles, res.Bytes)
	}
	for i, obj := range res.Objects {
		got, err := os.ReadFile(res.LocalFiles[i])
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, fake.objects[obj.Key]) {
			t.Errorf("%s: content mismatch", obj.Key)
		}
	}

	if err := f.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Cleanup left the download dir")
	}
}

func TestFetch_TempDirAndKeepFiles(t *testing.T) {
	f := NewFetcher(NewClientWithAPI(newFake()), FetchConfig{URI: "s3://bucket/other", KeepFiles: true})
	res, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(f.Dir()) })

	if f.Dir() == "" || len(res.LocalFiles) != 1 {
		t.Fatalf("Dir=%q LocalFiles=%v", f.Dir(), res.LocalFiles)
	}
	if err := f.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(res.LocalFiles[0]); err != nil {
		t.Errorf("KeepFiles removed downloads: %v", err)
	}
}

func TestFetch_Errors(t *testing.T) {
	if _, err := NewFetcher(NewClientWithAPI(newFake()), FetchConfig{URI: "/not/s3"}).Fetch(context.Background()); err == nil {
		t.Error("expected URI error")
	}

	fake := newFake()
	fake.failKey = "survey/b_tile.LAS"
	f := NewFetcher(NewClientWithAPI(fake), FetchConfig{URI: "s3://bucket/survey", DownloadDir: t.TempDir()})
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Error("expected download error")
	}
}
