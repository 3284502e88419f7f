package port

import (
	"context"
	"io"
)

// UploadInput encapsulates the parameters needed to upload an object.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
}

// ObjectStorage abstracts cloud object storage operations.
type ObjectStorage interface {
	Download(ctx context.Context, bucket, key string) ([]byte, error)
	Upload(ctx context.Context, input UploadInput) error
}

// FetchedDocument is the raw document plus transport hints used for
// format detection.
type FetchedDocument struct {
	Data        []byte
	ContentType string
	SourceName  string
}

// DocumentFetcher resolves a document URL (http, https or s3) to bytes.
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}
