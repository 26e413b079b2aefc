package core

import (
	"context"
	"errors"
	"io"
	"time"
)

const STORAGE_SERVICE = "storage"

var (
	// ErrNoSuchUpload is returned when the store does not know a multipart upload handle.
	ErrNoSuchUpload = errors.New("multipart upload not found")
	// ErrPartRejected is returned when the store refuses the part list on completion.
	ErrPartRejected = errors.New("multipart parts rejected")
	ErrNoSuchKey    = errors.New("object not found")
	// ErrKeyRejected is returned when the store refuses an object key, e.g. for length.
	ErrKeyRejected = errors.New("object key rejected")
)

type UploadedPart struct {
	PartNumber int32
	ETag       string
	Size       int64
}

type CompletedPart struct {
	PartNumber int32
	ETag       string
}

// PendingMultipartUpload is an upload the store still holds open.
type PendingMultipartUpload struct {
	Key       string
	UploadID  string
	Initiated time.Time
}

// ObjectStore is the minimal multipart capable object storage used by uploads.
type ObjectStore interface {
	InitiateMultipartUpload(ctx context.Context, key string, contentType string) (string, error)
	UploadPart(ctx context.Context, key string, uploadID string, partNumber int32, data []byte) (string, error)
	ListUploadedParts(ctx context.Context, key string, uploadID string) ([]UploadedPart, error)
	CompleteMultipartUpload(ctx context.Context, key string, uploadID string, parts []CompletedPart) error
	AbortMultipartUpload(ctx context.Context, key string, uploadID string) error
	// GetObjectRange reads the inclusive byte range [start, end].
	GetObjectRange(ctx context.Context, key string, start int64, end int64) (io.ReadCloser, error)
	PutObject(ctx context.Context, key string, contentType string, data io.Reader, size int64) error
}

type MultipartLister interface {
	ListMultipartUploads(ctx context.Context, prefix string) ([]PendingMultipartUpload, error)
}

// ObjectStater reports the stored size of an object, ErrNoSuchKey when absent.
type ObjectStater interface {
	StatObject(ctx context.Context, key string) (int64, error)
}

type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

type StorageService interface {
	ObjectStore
	MultipartLister
	ObjectStater
	ObjectDeleter

	Service
}
