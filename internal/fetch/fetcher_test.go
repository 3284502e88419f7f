package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbill/internal/config"
	"medbill/internal/domain"
	"medbill/internal/fetch"
	"medbill/internal/port"
)

func testFetchConfig() *config.FetchConfig {
	return &config.FetchConfig{TimeoutSecs: 5, MaxSizeMB: 1}
}

func TestFetch_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer server.Close()

	f := fetch.NewFetcher(testFetchConfig(), nil)
	doc, err := f.Fetch(context.Background(), server.URL+"/bills/invoice.pdf")
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.7 fake"), doc.Data)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, "invoice.pdf", doc.SourceName)
}

func TestFetch_HTTPStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := fetch.NewFetcher(testFetchConfig(), nil)
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDownloadFailed)
}

func TestFetch_TooLarge(t *testing.T) {
	big := make([]byte, 2<<20)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(big)
	}))
	defer server.Close()

	f := fetch.NewFetcher(testFetchConfig(), nil)
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDownloadFailed)
}

func TestFetch_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	f := fetch.NewFetcher(testFetchConfig(), nil)
	_, err := f.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	f := fetch.NewFetcher(testFetchConfig(), nil)
	_, err := f.Fetch(context.Background(), "ftp://example.com/bill.pdf")
	assert.ErrorIs(t, err, domain.ErrDownloadFailed)
}

type fakeStorage struct {
	data map[string][]byte
}

func (s *fakeStorage) Download(_ context.Context, bucket, key string) ([]byte, error) {
	return s.data[bucket+"/"+key], nil
}

func (s *fakeStorage) Upload(context.Context, port.UploadInput) error { return nil }

func TestFetch_S3(t *testing.T) {
	storage := &fakeStorage{data: map[string][]byte{
		"bills/2026/invoice.pdf": []byte("%PDF-1.7 from s3"),
	}}

	f := fetch.NewFetcher(testFetchConfig(), storage)
	doc, err := f.Fetch(context.Background(), "s3://bills/2026/invoice.pdf")
	require.NoError(t, err)

	assert.Equal(t, []byte("%PDF-1.7 from s3"), doc.Data)
	assert.Equal(t, "invoice.pdf", doc.SourceName)
}

func TestFetch_S3WithoutStorage(t *testing.T) {
	f := fetch.NewFetcher(testFetchConfig(), nil)
	_, err := f.Fetch(context.Background(), "s3://bills/invoice.pdf")
	assert.ErrorIs(t, err, domain.ErrDownloadFailed)
}

func TestFetch_S3MalformedURL(t *testing.T) {
	f := fetch.NewFetcher(testFetchConfig(), &fakeStorage{})
	_, err := f.Fetch(context.Background(), "s3://bucketonly")
	assert.ErrorIs(t, err, domain.ErrDownloadFailed)
}
