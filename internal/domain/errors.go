package domain

import "errors"

var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUnsupportedFormat  = errors.New("unsupported document format")
	ErrDocumentUnreadable = errors.New("document could not be opened")
	ErrDownloadFailed     = errors.New("document download failed")
	ErrEmptyDocument      = errors.New("document has no pages")
)
