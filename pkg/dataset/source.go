package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"
)

// DefaultLocation is the published monthly arrivals dataset.
const DefaultLocation = "https://storage.data.gov.my/demography/arrivals_soe.parquet"

// Source yields the raw bytes of a dataset. The caller closes the reader.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

// SourceOptions configures the transports behind NewSource.
type SourceOptions struct {
	HTTPTimeout time.Duration
	S3          S3Config
}

// NewSource picks a source implementation from the location scheme:
// http(s):// URLs, s3://bucket/key objects, or local paths.
func NewSource(location string, opts SourceOptions) (Source, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: empty dataset location", ErrDataUnavailable)
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// No scheme (or a Windows drive letter): treat as a local path.
		return &FileSource{Path: location}, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		timeout := opts.HTTPTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		return &HTTPSource{URL: location, Client: &http.Client{Timeout: timeout}}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("%w: s3 location %q needs bucket and key", ErrDataUnavailable, location)
		}
		return &S3Source{Bucket: u.Host, Key: key, Config: opts.S3}, nil
	case "file":
		return &FileSource{Path: u.Path}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrDataUnavailable, u.Scheme)
	}
}

// formatOf guesses the file format from the location's extension.
func formatOf(location string) string {
	p := location
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".csv":
		return FormatCSV
	case ".json", ".ndjson":
		return FormatJSON
	default:
		return FormatParquet
	}
}

// HTTPSource fetches a dataset over HTTP(S).
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) Name() string { return s.URL }

// Open issues a GET request. Any status other than 200 is an error.
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", s.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: unexpected status %s", s.URL, resp.Status)
	}
	return resp.Body, nil
}

// FileSource reads a dataset from the local filesystem.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return s.Path }

func (s *FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.Path, err)
	}
	return f, nil
}
