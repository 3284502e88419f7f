package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"medbill/internal/config"
	"medbill/internal/domain"
	"medbill/internal/port"
)

// Fetcher resolves document URLs to bytes. HTTP and HTTPS sources are
// downloaded directly; s3://bucket/key sources go through object storage.
type Fetcher struct {
	client  *http.Client
	storage port.ObjectStorage
	maxSize int64
}

// NewFetcher builds a Fetcher. storage may be nil, in which case s3://
// sources are rejected.
func NewFetcher(cfg *config.FetchConfig, storage port.ObjectStorage) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		storage: storage,
		maxSize: int64(cfg.MaxSizeMB) << 20,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*port.FetchedDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", domain.ErrDownloadFailed, err)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, rawURL, u)
	case "s3":
		return f.fetchS3(ctx, u)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", domain.ErrDownloadFailed, u.Scheme)
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string, u *url.URL) (*port.FetchedDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrDownloadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrDownloadFailed, err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: document exceeds %d bytes", domain.ErrDownloadFailed, f.maxSize)
	}
	if len(data) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	return &port.FetchedDocument{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		SourceName:  path.Base(u.Path),
	}, nil
}

func (f *Fetcher) fetchS3(ctx context.Context, u *url.URL) (*port.FetchedDocument, error) {
	if f.storage == nil {
		return nil, fmt.Errorf("%w: s3 storage not configured", domain.ErrDownloadFailed)
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("%w: malformed s3 url %q", domain.ErrDownloadFailed, u.String())
	}

	data, err := f.storage.Download(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	if len(data) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	return &port.FetchedDocument{
		Data:       data,
		SourceName: path.Base(key),
	}, nil
}
