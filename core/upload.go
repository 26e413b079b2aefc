package core

import (
	"context"
	"io"
	"strings"
	"time"

	"go.notebook.dev/notebook/db/models"
)

const UPLOAD_SERVICE = "upload"

type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeDocument FileType = "document"
	FileTypeOther    FileType = "other"
)

// FileTypeFromMime classifies a MIME type into the coarse groups the UI filters on.
func FileTypeFromMime(mimeType string) FileType {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return FileTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return FileTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return FileTypeAudio
	case strings.HasPrefix(mimeType, "text/"),
		mimeType == "application/pdf",
		mimeType == "application/rtf",
		mimeType == "application/msword",
		strings.HasPrefix(mimeType, "application/vnd.openxmlformats-officedocument."),
		strings.HasPrefix(mimeType, "application/vnd.oasis.opendocument."),
		strings.HasPrefix(mimeType, "application/vnd.ms-"):
		return FileTypeDocument
	}

	return FileTypeOther
}

func (t FileType) Valid() bool {
	switch t {
	case FileTypeImage, FileTypeVideo, FileTypeAudio, FileTypeDocument, FileTypeOther:
		return true
	}
	return false
}

type UploadSessionState int

const (
	UploadSessionActive UploadSessionState = iota
	UploadSessionFinalizing
	UploadSessionClosed
)

// SessionPart is what the store acknowledged for one part number.
type SessionPart struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"checksum"`
	Size       int64  `json:"size"`
}

type SessionParams struct {
	OwnerID         uint
	Filename        string
	DeclaredSize    int64
	FileType        FileType
	MimeType        string
	DestinationPath string
	ObjectKey       string
	UploadHandle    string
	ChunkSize       int64
	TotalChunks     int32
	Parts           []SessionPart
}

// UploadSession tracks one in-progress multipart upload. Access to the mutable
// fields goes through the methods, which serialize on the session's own lock.
type UploadSession interface {
	ID() string
	OwnerID() uint
	Filename() string
	DeclaredSize() int64
	FileType() FileType
	MimeType() string
	DestinationPath() string
	ObjectKey() string
	UploadHandle() string
	ChunkSize() int64
	TotalChunks() int32
	CreatedAt() time.Time
	LastActivity() time.Time

	// BeginPart registers an in-flight part. It fails when the session is finalizing.
	BeginPart() error
	// EndPart records the acknowledged part (when part is non nil) and releases the in-flight slot.
	EndPart(part *SessionPart)
	// BeginFinalize moves the session to finalizing and waits for in-flight parts to drain.
	BeginFinalize() error
	// ResetFinalize returns a finalizing session to active after a failed completion.
	ResetFinalize()
	// Close marks the session finished. Later calls report it as not found.
	Close()
	// Parts returns a copy of the recorded parts sorted by part number.
	Parts() []SessionPart
}

type UploadSessionRegistry interface {
	Create(params SessionParams) (UploadSession, error)
	// Replace creates a session for a resumed upload, superseding any session
	// that still holds the same object key and upload handle.
	Replace(params SessionParams) (UploadSession, error)
	Get(id string) (UploadSession, error)
	Delete(id string)
	Idle(olderThan time.Duration) []UploadSession
	// Lookup finds the session that owns a store side multipart upload.
	Lookup(objectKey string, uploadHandle string) (UploadSession, bool)
}

type InitUploadRequest struct {
	OwnerID         uint
	Filename        string
	DeclaredSize    int64
	FileType        FileType
	MimeType        string
	DestinationPath string
	// Set to resume a multipart upload a client started before.
	UploadHandle string
	ObjectKey    string
}

type InitUploadResponse struct {
	SessionID            string        `json:"sessionId"`
	ChunkSize            int64         `json:"chunkSize"`
	TotalChunks          int32         `json:"totalChunks"`
	AlreadyUploadedParts []SessionPart `json:"alreadyUploadedParts"`
	ObjectKey            string        `json:"objectKey"`
	UploadHandle         string        `json:"uploadHandle"`
}

type UploadPartResponse struct {
	PartNumber int32  `json:"partNumber"`
	Checksum   string `json:"checksum"`
}

type UploadStatusResponse struct {
	SessionID    string        `json:"sessionId"`
	Filename     string        `json:"filename"`
	DeclaredSize int64         `json:"declaredSize"`
	ChunkSize    int64         `json:"chunkSize"`
	TotalChunks  int32         `json:"totalChunks"`
	Parts        []SessionPart `json:"parts"`
	ObjectKey    string        `json:"objectKey"`
	UploadHandle string        `json:"uploadHandle"`
	LastActivity time.Time     `json:"lastActivity"`
}

type DirectUploadRequest struct {
	OwnerID         uint
	Filename        string
	Size            int64
	MimeType        string
	DestinationPath string
	Data            io.ReadSeeker
}

type UploadService interface {
	Init(ctx context.Context, req InitUploadRequest) (*InitUploadResponse, error)
	UploadPart(ctx context.Context, ownerID uint, sessionID string, partNumber int32, data []byte) (*UploadPartResponse, error)
	Complete(ctx context.Context, ownerID uint, sessionID string) (*models.File, error)
	Abort(ctx context.Context, ownerID uint, sessionID string) error
	Status(ctx context.Context, ownerID uint, sessionID string) (*UploadStatusResponse, error)
	Put(ctx context.Context, req DirectUploadRequest) (*models.File, error)

	// ExpireIdle aborts sessions without activity for longer than maxIdle.
	ExpireIdle(ctx context.Context, maxIdle time.Duration) int
	// SweepOrphans aborts store side multipart uploads older than maxAge that no session owns.
	SweepOrphans(ctx context.Context, maxAge time.Duration) (int, error)

	Service
}
