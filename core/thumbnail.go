package core

import "context"

const THUMBNAIL_SERVICE = "thumbnail"

type ThumbnailResult struct {
	Key    string
	Width  int
	Height int
	Size   int64
}

type ThumbnailService interface {
	// DeriveFromBytes builds a thumbnail from an in-memory image. It returns nil for other file types.
	DeriveFromBytes(ctx context.Context, objectKey string, raw []byte, fileType FileType) (*ThumbnailResult, error)
	// DeriveFromObjectPartial builds a thumbnail for a stored video from a bounded prefix
	// of the object. It returns nil for other file types.
	DeriveFromObjectPartial(ctx context.Context, objectKey string, fileType FileType) (*ThumbnailResult, error)

	Service
}
