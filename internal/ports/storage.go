package ports

import (
	"context"
	"io"
)

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	// En localfs es el mismo object_key; en gdrive es el fileId real.
	ObjectKey string
	Size      int64
	// URL is the durable public or signed URL stored on the video record.
	URL string
}

// StorageProvider: implementaciones (localfs, gdrive, cloudinary).
type StorageProvider interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error)
	DeleteObject(ctx context.Context, objectKey string) error
}
