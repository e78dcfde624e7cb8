package port

import "context"

// StoredBlob describes a file accepted by the blob store
type StoredBlob struct {
	URL         string
	StorageID   string
	ContentType string
	Size        int64
}

// BlobStore durably stores uploaded files and publishes them under a URL
type BlobStore interface {
	Save(ctx context.Context, filename, contentType string, content []byte) (*StoredBlob, error)
	Delete(ctx context.Context, storageID string) error
}

// Fetcher retrieves bytes from a URL in a single attempt
type Fetcher interface {
	Fetch(ctx context.Context, url string) (content []byte, contentType string, err error)
}
