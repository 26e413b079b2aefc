package event

import (
	"go.notebook.dev/notebook/core"
	"go.notebook.dev/notebook/db/models"
)

const (
	EVENT_UPLOAD_COMPLETED = "upload.completed"
	EVENT_UPLOAD_ABORTED   = "upload.aborted"
	EVENT_UPLOAD_EXPIRED   = "upload.expired"
	EVENT_THUMBNAIL_FAILED = "thumbnail.failed"
	EVENT_FILE_DELETED     = "file.deleted"
)

func init() {
	core.RegisterEvent(EVENT_UPLOAD_COMPLETED, &UploadCompletedEvent{})
	core.RegisterEvent(EVENT_UPLOAD_ABORTED, &UploadAbortedEvent{})
	core.RegisterEvent(EVENT_UPLOAD_EXPIRED, &UploadExpiredEvent{})
	core.RegisterEvent(EVENT_THUMBNAIL_FAILED, &ThumbnailFailedEvent{})
	core.RegisterEvent(EVENT_FILE_DELETED, &FileDeletedEvent{})
}

type UploadCompletedEvent struct {
	core.Event
}

func (e *UploadCompletedEvent) SetFile(file *models.File) {
	e.Set("file", file)
}

func (e UploadCompletedEvent) File() *models.File {
	return e.Get("file").(*models.File)
}

func FireUploadCompletedEvent(ctx core.Context, file *models.File) error {
	return Fire[*UploadCompletedEvent](ctx, EVENT_UPLOAD_COMPLETED, func(evt *UploadCompletedEvent) error {
		evt.SetFile(file)
		return nil
	})
}

type UploadAbortedEvent struct {
	core.Event
}

func (e *UploadAbortedEvent) SetSession(sessionID string, objectKey string) {
	e.Set("session", sessionID)
	e.Set("key", objectKey)
}

func (e UploadAbortedEvent) SessionID() string {
	return e.Get("session").(string)
}

func (e UploadAbortedEvent) ObjectKey() string {
	return e.Get("key").(string)
}

func FireUploadAbortedEvent(ctx core.Context, sessionID string, objectKey string) error {
	return Fire[*UploadAbortedEvent](ctx, EVENT_UPLOAD_ABORTED, func(evt *UploadAbortedEvent) error {
		evt.SetSession(sessionID, objectKey)
		return nil
	})
}

// UploadExpiredEvent is fired when the idle sweep gives up on a session.
type UploadExpiredEvent struct {
	core.Event
}

func (e *UploadExpiredEvent) SetSession(sessionID string, ownerID uint) {
	e.Set("session", sessionID)
	e.Set("owner", ownerID)
}

func (e UploadExpiredEvent) SessionID() string {
	return e.Get("session").(string)
}

func (e UploadExpiredEvent) OwnerID() uint {
	return e.Get("owner").(uint)
}

func FireUploadExpiredEvent(ctx core.Context, sessionID string, ownerID uint) error {
	return Fire[*UploadExpiredEvent](ctx, EVENT_UPLOAD_EXPIRED, func(evt *UploadExpiredEvent) error {
		evt.SetSession(sessionID, ownerID)
		return nil
	})
}

type ThumbnailFailedEvent struct {
	core.Event
}

func (e *ThumbnailFailedEvent) SetFailure(objectKey string, err error) {
	e.Set("key", objectKey)
	e.Set("error", err)
}

func (e ThumbnailFailedEvent) ObjectKey() string {
	return e.Get("key").(string)
}

func (e ThumbnailFailedEvent) Err() error {
	err, _ := e.Get("error").(error)
	return err
}

func FireThumbnailFailedEvent(ctx core.Context, objectKey string, err error) error {
	return Fire[*ThumbnailFailedEvent](ctx, EVENT_THUMBNAIL_FAILED, func(evt *ThumbnailFailedEvent) error {
		evt.SetFailure(objectKey, err)
		return nil
	})
}

type FileDeletedEvent struct {
	core.Event
}

func (e *FileDeletedEvent) SetFile(file *models.File) {
	e.Set("file", file)
}

func (e FileDeletedEvent) File() *models.File {
	return e.Get("file").(*models.File)
}

func FireFileDeletedEvent(ctx core.Context, file *models.File) error {
	return Fire[*FileDeletedEvent](ctx, EVENT_FILE_DELETED, func(evt *FileDeletedEvent) error {
		evt.SetFile(file)
		return nil
	})
}
