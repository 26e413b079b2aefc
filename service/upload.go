package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/docker/go-units"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	gookit "github.com/gookit/event"
	"github.com/samber/lo"
	"go.notebook.dev/notebook/config"
	"go.notebook.dev/notebook/core"
	"go.notebook.dev/notebook/db/models"
	"go.notebook.dev/notebook/event"
	"go.notebook.dev/notebook/service/internal/upload"
	"go.uber.org/zap"
)

var _ core.UploadService = (*UploadServiceDefault)(nil)
var _ core.Cronable = (*UploadServiceDefault)(nil)

const (
	userKeyPrefix     = "users/"
	maxFilenameLength = 255
	// S3 caps object keys at 1024 bytes, the files table caps paths at 512.
	maxObjectKeyLength = 1024
	maxPathLength      = 512
)

func init() {
	core.RegisterService(core.ServiceInfo{
		ID: core.UPLOAD_SERVICE,
		Factory: func() (core.Service, []core.ContextBuilderOption, error) {
			return NewUploadService()
		},
		Depends: []string{core.STORAGE_SERVICE, core.THUMBNAIL_SERVICE, core.FILE_SERVICE, core.CRON_SERVICE},
	})
}

// UploadServiceDefault drives chunked uploads from init to completion and the single shot direct path.
type UploadServiceDefault struct {
	ctx        core.Context
	cfg        config.UploadConfig
	sweeps     config.CronConfig
	logger     *core.Logger
	store      core.ObjectStore
	registry   core.UploadSessionRegistry
	thumbnails core.ThumbnailService
	files      core.FileService
	now        func() time.Time
}

func NewUploadService() (*UploadServiceDefault, []core.ContextBuilderOption, error) {
	svc := &UploadServiceDefault{
		registry: upload.NewRegistry(),
		now:      time.Now,
	}

	opts := core.ContextOptions(
		core.ContextWithStartupFunc(func(ctx core.Context) error {
			svc.ctx = ctx
			svc.cfg = ctx.Config().Config().Core.Upload
			svc.sweeps = ctx.Config().Config().Core.Cron
			svc.logger = ctx.Logger()
			svc.store = core.GetService[core.StorageService](ctx, core.STORAGE_SERVICE)
			svc.thumbnails = core.GetService[core.ThumbnailService](ctx, core.THUMBNAIL_SERVICE)
			svc.files = core.GetService[core.FileService](ctx, core.FILE_SERVICE)

			ctx.Event().On(event.EVENT_BOOT_COMPLETE, gookit.ListenerFunc(svc.onBootComplete))

			return svc.RegisterTasks(core.GetService[core.CronService](ctx, core.CRON_SERVICE))
		}),
	)

	return svc, opts, nil
}

func newUploadService(ctx core.Context, cfg config.UploadConfig, store core.ObjectStore, registry core.UploadSessionRegistry, thumbnails core.ThumbnailService, files core.FileService) *UploadServiceDefault {
	return &UploadServiceDefault{
		ctx:        ctx,
		cfg:        cfg,
		logger:     ctx.Logger(),
		store:      store,
		registry:   registry,
		thumbnails: thumbnails,
		files:      files,
		sweeps: config.CronConfig{
			IdleSweep:   15 * time.Minute,
			OrphanSweep: time.Hour,
		},
		now: time.Now,
	}
}

// onBootComplete clears multipart uploads a previous process left open. Their
// sessions died with it, so only the age cutoff applies.
func (u *UploadServiceDefault) onBootComplete(gookit.Event) error {
	go func() {
		n, err := u.SweepOrphans(u.ctx, u.cfg.OrphanMaxAge)
		if err != nil {
			u.logger.Warn("startup orphan sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			u.logger.Info("aborted orphaned uploads from a previous run", zap.Int("count", n))
		}
	}()

	return nil
}

func (u *UploadServiceDefault) RegisterTasks(cron core.CronService) error {
	err := cron.RegisterTask("upload.expire_idle", gocron.DurationJob(u.sweeps.IdleSweep), func(ctx core.Context) error {
		u.ExpireIdle(ctx, u.cfg.SessionIdleTimeout)
		return nil
	})
	if err != nil {
		return err
	}

	return cron.RegisterTask("upload.sweep_orphans", gocron.DurationJob(u.sweeps.OrphanSweep), func(ctx core.Context) error {
		_, err := u.SweepOrphans(ctx, u.cfg.OrphanMaxAge)
		return err
	})
}

func (u *UploadServiceDefault) Init(ctx context.Context, req core.InitUploadRequest) (*core.InitUploadResponse, error) {
	if err := u.validateInit(req); err != nil {
		return nil, err
	}

	chunkSize := u.cfg.ChunkSize
	totalChunks := totalChunksFor(req.DeclaredSize, chunkSize)
	if totalChunks > core.S3_MULTIPART_MAX_PARTS {
		return nil, core.NewUploadError(core.ErrKeyInvalidInput, nil, fmt.Sprintf("file needs %d parts, the store accepts at most %d", totalChunks, core.S3_MULTIPART_MAX_PARTS))
	}

	destination := cleanDestination(req.DestinationPath)
	if err := checkPathLength(destination); err != nil {
		return nil, err
	}
	mimeType := resolveMimeType(req.MimeType, req.Filename)
	fileType := req.FileType
	if fileType == "" {
		fileType = core.FileTypeFromMime(mimeType)
	}

	objectKey, uploadHandle, parts, err := u.resumeUpload(ctx, req, int32(totalChunks), chunkSize)
	if err != nil {
		return nil, err
	}

	fresh := uploadHandle == ""
	if fresh {
		uniqueName, err := uniqueFilename(req.Filename, u.now())
		if err != nil {
			return nil, core.NewUploadError(core.ErrKeyInvalidInput, err)
		}

		objectKey = objectKeyFor(req.OwnerID, destination, uniqueName)
		if err := checkKeyLength(objectKey); err != nil {
			return nil, err
		}
		uploadHandle, err = u.store.InitiateMultipartUpload(ctx, objectKey, mimeType)
		if err != nil {
			return nil, storeWriteError(err)
		}
	}

	register := u.registry.Create
	if !fresh {
		// A session still holding this upload belongs to a client that lost its state.
		register = u.registry.Replace
	}

	session, err := register(core.SessionParams{
		OwnerID:         req.OwnerID,
		Filename:        req.Filename,
		DeclaredSize:    req.DeclaredSize,
		FileType:        fileType,
		MimeType:        mimeType,
		DestinationPath: destination,
		ObjectKey:       objectKey,
		UploadHandle:    uploadHandle,
		ChunkSize:       chunkSize,
		TotalChunks:     int32(totalChunks),
		Parts:           parts,
	})
	if err != nil {
		if fresh {
			if abortErr := u.store.AbortMultipartUpload(ctx, objectKey, uploadHandle); abortErr != nil {
				u.logger.Warn("failed to abort unused multipart upload", zap.String("key", objectKey), zap.Error(abortErr))
			}
		}
		return nil, err
	}

	u.logger.Info("upload session started",
		zap.String("session", session.ID()),
		zap.String("key", objectKey),
		zap.Bool("resumed", !fresh),
		zap.Int("parts_present", len(parts)),
		zap.String("size", units.HumanSize(float64(req.DeclaredSize))),
	)

	return &core.InitUploadResponse{
		SessionID:            session.ID(),
		ChunkSize:            chunkSize,
		TotalChunks:          int32(totalChunks),
		AlreadyUploadedParts: session.Parts(),
		ObjectKey:            objectKey,
		UploadHandle:         uploadHandle,
	}, nil
}

// resumeUpload reattaches to a multipart upload the client started earlier. An
// empty handle in the result means a new upload has to be initiated.
func (u *UploadServiceDefault) resumeUpload(ctx context.Context, req core.InitUploadRequest, totalChunks int32, chunkSize int64) (string, string, []core.SessionPart, error) {
	if req.UploadHandle == "" || req.ObjectKey == "" {
		return "", "", nil, nil
	}

	if !strings.HasPrefix(req.ObjectKey, ownerKeyPrefix(req.OwnerID)) || strings.Contains(req.ObjectKey, "..") {
		return "", "", nil, core.NewUploadError(core.ErrKeyInvalidInput, nil, "The object key does not belong to this user.")
	}

	listed, err := u.store.ListUploadedParts(ctx, req.ObjectKey, req.UploadHandle)
	if err != nil {
		if errors.Is(err, core.ErrNoSuchUpload) {
			u.logger.Info("prior multipart upload is gone, starting over", zap.String("key", req.ObjectKey))
			return "", "", nil, nil
		}
		return "", "", nil, core.NewUploadError(core.ErrKeyStorageUnavailable, err)
	}

	parts := lo.FilterMap(listed, func(p core.UploadedPart, _ int) (core.SessionPart, bool) {
		if p.PartNumber < 1 || p.PartNumber > totalChunks || p.Size > chunkSize {
			return core.SessionPart{}, false
		}
		return core.SessionPart{PartNumber: p.PartNumber, ETag: p.ETag, Size: p.Size}, true
	})

	return req.ObjectKey, req.UploadHandle, parts, nil
}

func (u *UploadServiceDefault) UploadPart(ctx context.Context, ownerID uint, sessionID string, partNumber int32, data []byte) (*core.UploadPartResponse, error) {
	session, err := u.session(ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	if partNumber < 1 || partNumber > session.TotalChunks() {
		return nil, core.NewUploadError(core.ErrKeyInvalidInput, nil, fmt.Sprintf("Part number must be between 1 and %d.", session.TotalChunks()))
	}

	if len(data) == 0 || int64(len(data)) > session.ChunkSize() {
		return nil, core.NewUploadError(core.ErrKeyInvalidInput, nil, fmt.Sprintf("Part size must be between 1 and %d bytes.", session.ChunkSize()))
	}

	if err := session.BeginPart(); err != nil {
		return nil, err
	}

	etag, err := u.store.UploadPart(ctx, session.ObjectKey(), session.UploadHandle(), partNumber, data)
	if err != nil {
		session.EndPart(nil)
		u.logger.Warn("part upload failed", zap.String("session", sessionID), zap.Int32("part", partNumber), zap.Error(err))
		return nil, core.NewUploadError(core.ErrKeyStorageUnavailable, err)
	}

	session.EndPart(&core.SessionPart{
		PartNumber: partNumber,
		ETag:       etag,
		Size:       int64(len(data)),
	})

	return &core.UploadPartResponse{
		PartNumber: partNumber,
		Checksum:   etag,
	}, nil
}

func (u *UploadServiceDefault) Complete(ctx context.Context, ownerID uint, sessionID string) (*models.File, error) {
	session, err := u.session(ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	if err := session.BeginFinalize(); err != nil {
		return nil, err
	}

	parts := session.Parts()
	if len(parts) == 0 {
		session.ResetFinalize()
		return nil, core.NewUploadError(core.ErrKeyIncompleteUpload, nil)
	}

	uploaded := lo.SumBy(parts, func(p core.SessionPart) int64 { return p.Size })
	if uploaded != session.DeclaredSize() {
		session.ResetFinalize()
		return nil, core.NewUploadError(core.ErrKeyStorageIntegrity, nil,
			fmt.Sprintf("Uploaded parts hold %d bytes, the file was declared with %d bytes.", uploaded, session.DeclaredSize()))
	}

	completed := lo.Map(parts, func(p core.SessionPart, _ int) core.CompletedPart {
		return core.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag}
	})

	if err := u.store.CompleteMultipartUpload(ctx, session.ObjectKey(), session.UploadHandle(), completed); err != nil {
		if !errors.Is(err, core.ErrNoSuchUpload) {
			session.ResetFinalize()
			if errors.Is(err, core.ErrPartRejected) {
				return nil, core.NewUploadError(core.ErrKeyStorageIntegrity, err)
			}
			return nil, core.NewUploadError(core.ErrKeyStorageUnavailable, err)
		}

		// A previous attempt may have completed the upload and lost the response.
		if err := u.confirmCompleted(ctx, session, uploaded); err != nil {
			return nil, err
		}
	}

	file := &models.File{
		OwnerID:      session.OwnerID(),
		StorageKey:   session.ObjectKey(),
		OriginalName: session.Filename(),
		FileType:     string(session.FileType()),
		Size:         uploaded,
		MimeType:     session.MimeType(),
		Path:         displayPath(session.DestinationPath()),
		CreatedAt:    u.now(),
	}

	if session.FileType() == core.FileTypeVideo {
		file.ThumbnailKey = u.thumbnailFromObject(ctx, session.ObjectKey(), session.FileType())
	}

	// The store side upload is finished, so the session cannot be retried past this point.
	u.dropSession(session)

	if err := u.files.Create(ctx, file); err != nil {
		u.logger.Error("failed to record completed upload", zap.String("key", file.StorageKey), zap.Error(err))
		u.discardObject(ctx, file)
		return nil, core.NewUploadError(core.ErrKeyDatabaseFailed, err)
	}

	u.logger.Info("upload completed",
		zap.String("session", sessionID),
		zap.String("key", file.StorageKey),
		zap.Int("parts", len(parts)),
		zap.String("size", units.HumanSize(float64(file.Size))),
	)

	u.fire(func(ctx core.Context) error { return event.FireUploadCompletedEvent(ctx, file) })

	return file, nil
}

// confirmCompleted checks whether the object of a vanished multipart upload was
// assembled with the expected size. The session is dropped when it was not,
// since the handle can never be completed again.
func (u *UploadServiceDefault) confirmCompleted(ctx context.Context, session core.UploadSession, size int64) error {
	stater, ok := u.store.(core.ObjectStater)
	if !ok {
		u.dropSession(session)
		return core.NewUploadError(core.ErrKeySessionNotFound, core.ErrNoSuchUpload)
	}

	stored, err := stater.StatObject(ctx, session.ObjectKey())
	switch {
	case errors.Is(err, core.ErrNoSuchKey):
		u.dropSession(session)
		return core.NewUploadError(core.ErrKeySessionNotFound, core.ErrNoSuchUpload)
	case err != nil:
		session.ResetFinalize()
		return core.NewUploadError(core.ErrKeyStorageUnavailable, err)
	case stored != size:
		u.dropSession(session)
		return core.NewUploadError(core.ErrKeyStorageIntegrity, nil,
			fmt.Sprintf("The stored object holds %d bytes, the file was declared with %d bytes.", stored, size))
	}

	u.logger.Info("multipart upload already completed, recording it", zap.String("session", session.ID()), zap.String("key", session.ObjectKey()))

	return nil
}

func (u *UploadServiceDefault) dropSession(session core.UploadSession) {
	session.Close()
	u.registry.Delete(session.ID())
}

func (u *UploadServiceDefault) Abort(ctx context.Context, ownerID uint, sessionID string) error {
	session, err := u.session(ownerID, sessionID)
	if err != nil {
		if core.IsUploadErrorType(err, core.ErrKeySessionNotFound) {
			return nil
		}
		return err
	}

	if err := u.abortSession(ctx, session); err != nil {
		return err
	}

	u.fire(func(ctx core.Context) error {
		return event.FireUploadAbortedEvent(ctx, session.ID(), session.ObjectKey())
	})

	return nil
}

func (u *UploadServiceDefault) abortSession(ctx context.Context, session core.UploadSession) error {
	if err := session.BeginFinalize(); err != nil {
		if core.IsUploadErrorType(err, core.ErrKeySessionNotFound) {
			return nil
		}
		return err
	}

	err := u.store.AbortMultipartUpload(ctx, session.ObjectKey(), session.UploadHandle())
	if err != nil && !errors.Is(err, core.ErrNoSuchUpload) {
		session.ResetFinalize()
		return core.NewUploadError(core.ErrKeyStorageUnavailable, err)
	}

	u.dropSession(session)

	u.logger.Info("upload aborted", zap.String("session", session.ID()), zap.String("key", session.ObjectKey()))

	return nil
}

func (u *UploadServiceDefault) Status(ctx context.Context, ownerID uint, sessionID string) (*core.UploadStatusResponse, error) {
	session, err := u.session(ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	return &core.UploadStatusResponse{
		SessionID:    session.ID(),
		Filename:     session.Filename(),
		DeclaredSize: session.DeclaredSize(),
		ChunkSize:    session.ChunkSize(),
		TotalChunks:  session.TotalChunks(),
		Parts:        session.Parts(),
		ObjectKey:    session.ObjectKey(),
		UploadHandle: session.UploadHandle(),
		LastActivity: session.LastActivity(),
	}, nil
}

func (u *UploadServiceDefault) Put(ctx context.Context, req core.DirectUploadRequest) (*models.File, error) {
	if req.OwnerID == 0 || req.Data == nil {
		return nil, core.NewUploadError(core.ErrKeyInvalidInput, nil)
	}
	if err := validateFilename(req.Filename); err != nil {
		return nil, core.NewUploadError(core.ErrKeyInvalidInput, err)
	}
	if req.Size > u.cfg.DirectLimit {
		return nil, core.NewUploadError(core.ErrKeyUploadTooLarge, nil)
	}

	raw, err := io.ReadAll(io.LimitReader(req.Data, u.cfg.DirectLimit+1))
	if err != nil {
		return nil, core.NewUploadError(core.ErrKeyInvalidInput, err)
	}
	if int64(len(raw)) > u.cfg.DirectLimit {
		return nil, core.NewUploadError(core.ErrKeyUploadTooLarge, nil)
	}
	if len(raw) == 0 {
		return nil, core.NewUploadError(core.ErrKeyInvalidInput, nil, "The file is empty.")
	}

	mimeType := req.MimeType
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(raw).String()
	}
	fileType := core.FileTypeFromMime(mimeType)

	uniqueName, err := uniqueFilename(req.Filename, u.now())
	if err != nil {
		return nil, core.NewUploadError(core.ErrKeyInvalidInput, err)
	}

	destination := cleanDestination(req.DestinationPath)
	if err := checkPathLength(destination); err != nil {
		return nil, err
	}
	objectKey := objectKeyFor(req.OwnerID, destination, uniqueName)
	if err := checkKeyLength(objectKey); err != nil {
		return nil, err
	}

	if err := u.store.PutObject(ctx, objectKey, mimeType, bytes.NewReader(raw), int64(len(raw))); err != nil {
		return nil, storeWriteError(err)
	}

	file := &models.File{
		OwnerID:      req.OwnerID,
		StorageKey:   objectKey,
		OriginalName: req.Filename,
		FileType:     string(fileType),
		Size:         int64(len(raw)),
		MimeType:     mimeType,
		Path:         displayPath(destination),
		CreatedAt:    u.now(),
	}

	switch fileType {
	case core.FileTypeImage:
		file.ThumbnailKey = u.thumbnailFromBytes(ctx, objectKey, raw, fileType)
	case core.FileTypeVideo:
		file.ThumbnailKey = u.thumbnailFromObject(ctx, objectKey, fileType)
	}

	if err := u.files.Create(ctx, file); err != nil {
		u.logger.Error("failed to record direct upload", zap.String("key", objectKey), zap.Error(err))
		u.discardObject(ctx, file)
		return nil, core.NewUploadError(core.ErrKeyDatabaseFailed, err)
	}

	u.fire(func(ctx core.Context) error { return event.FireUploadCompletedEvent(ctx, file) })

	return file, nil
}

func (u *UploadServiceDefault) ExpireIdle(ctx context.Context, maxIdle time.Duration) int {
	expired := 0

	for _, session := range u.registry.Idle(maxIdle) {
		if err := u.abortSession(ctx, session); err != nil {
			u.logger.Warn("failed to expire idle upload", zap.String("session", session.ID()), zap.Error(err))
			continue
		}

		expired++
		u.fire(func(ctx core.Context) error {
			return event.FireUploadExpiredEvent(ctx, session.ID(), session.OwnerID())
		})
	}

	if expired > 0 {
		u.logger.Info("expired idle upload sessions", zap.Int("count", expired))
	}

	return expired
}

func (u *UploadServiceDefault) SweepOrphans(ctx context.Context, maxAge time.Duration) (int, error) {
	lister, ok := u.store.(core.MultipartLister)
	if !ok {
		return 0, nil
	}

	pending, err := lister.ListMultipartUploads(ctx, userKeyPrefix)
	if err != nil {
		return 0, err
	}

	cutoff := u.now().Add(-maxAge)
	swept := 0
	for _, p := range pending {
		if !p.Initiated.Before(cutoff) {
			continue
		}
		if _, live := u.registry.Lookup(p.Key, p.UploadID); live {
			continue
		}

		if err := u.store.AbortMultipartUpload(ctx, p.Key, p.UploadID); err != nil && !errors.Is(err, core.ErrNoSuchUpload) {
			u.logger.Warn("failed to abort orphaned multipart upload", zap.String("key", p.Key), zap.Error(err))
			continue
		}
		swept++
	}

	if swept > 0 {
		u.logger.Info("aborted orphaned multipart uploads", zap.Int("count", swept))
	}

	return swept, nil
}

// session fetches a session and hides sessions of other users behind SessionNotFound.
func (u *UploadServiceDefault) session(ownerID uint, sessionID string) (core.UploadSession, error) {
	if sessionID == "" {
		return nil, core.NewUploadError(core.ErrKeyInvalidInput, nil, "A session id is required.")
	}

	session, err := u.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if session.OwnerID() != ownerID {
		return nil, core.NewUploadError(core.ErrKeySessionNotFound, nil)
	}

	return session, nil
}

func (u *UploadServiceDefault) thumbnailFromObject(ctx context.Context, objectKey string, fileType core.FileType) *string {
	result, err := u.thumbnails.DeriveFromObjectPartial(ctx, objectKey, fileType)
	return u.thumbnailResult(objectKey, result, err)
}

func (u *UploadServiceDefault) thumbnailFromBytes(ctx context.Context, objectKey string, raw []byte, fileType core.FileType) *string {
	result, err := u.thumbnails.DeriveFromBytes(ctx, objectKey, raw, fileType)
	return u.thumbnailResult(objectKey, result, err)
}

func (u *UploadServiceDefault) thumbnailResult(objectKey string, result *core.ThumbnailResult, err error) *string {
	if err != nil {
		u.logger.Warn("thumbnail generation failed", zap.String("key", objectKey), zap.Error(err))
		u.fire(func(ctx core.Context) error { return event.FireThumbnailFailedEvent(ctx, objectKey, err) })
		return nil
	}

	if result == nil {
		return nil
	}

	return &result.Key
}

// discardObject removes the stored object and thumbnail of a file that never got a record.
func (u *UploadServiceDefault) discardObject(ctx context.Context, file *models.File) {
	deleter, ok := u.store.(core.ObjectDeleter)
	if !ok {
		return
	}

	keys := []string{file.StorageKey}
	if file.ThumbnailKey != nil {
		keys = append(keys, *file.ThumbnailKey)
	}

	for _, key := range keys {
		if err := deleter.DeleteObject(ctx, key); err != nil {
			u.logger.Warn("failed to remove unrecorded object", zap.String("key", key), zap.Error(err))
		}
	}
}

func (u *UploadServiceDefault) fire(f func(ctx core.Context) error) {
	if err := f(u.ctx); err != nil {
		u.logger.Error("failed to fire event", zap.Error(err))
	}
}

func (u *UploadServiceDefault) validateInit(req core.InitUploadRequest) error {
	if req.OwnerID == 0 {
		return core.NewUploadError(core.ErrKeyInvalidInput, nil, "An owner is required.")
	}
	if err := validateFilename(req.Filename); err != nil {
		return core.NewUploadError(core.ErrKeyInvalidInput, err)
	}
	if req.DeclaredSize <= 0 {
		return core.NewUploadError(core.ErrKeyInvalidInput, nil, "The declared size must be positive.")
	}
	if req.DeclaredSize > u.cfg.MaxSize {
		return core.NewUploadError(core.ErrKeyInvalidInput, nil, fmt.Sprintf("The file exceeds the upload limit of %s.", units.BytesSize(float64(u.cfg.MaxSize))))
	}
	if req.FileType != "" && !req.FileType.Valid() {
		return core.NewUploadError(core.ErrKeyInvalidInput, nil, "Unknown file type.")
	}
	if err := validateDestination(req.DestinationPath); err != nil {
		return core.NewUploadError(core.ErrKeyInvalidInput, err)
	}

	return nil
}

func totalChunksFor(size int64, chunkSize int64) int64 {
	if size <= 0 {
		return 1
	}

	return (size + chunkSize - 1) / chunkSize
}

func validateFilename(name string) error {
	switch {
	case name == "":
		return errors.New("filename is required")
	case len(name) > maxFilenameLength:
		return errors.New("filename is too long")
	case strings.ContainsAny(name, `/\`):
		return errors.New("filename must not contain path separators")
	case strings.Contains(name, ".."):
		return errors.New("filename must not contain '..'")
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return errors.New("filename must not contain control characters")
	case strings.TrimSuffix(name, path.Ext(name)) == "":
		return errors.New("filename needs a name before the extension")
	}

	return nil
}

func validateDestination(dest string) error {
	if strings.IndexFunc(dest, unicode.IsControl) >= 0 {
		return errors.New("destination path must not contain control characters")
	}
	if strings.Contains(dest, `\`) {
		return errors.New("destination path must use forward slashes")
	}

	return nil
}

// cleanDestination normalises a logical directory to a relative slash path without dot segments.
func cleanDestination(dest string) string {
	return strings.TrimPrefix(path.Clean("/"+dest), "/")
}

func displayPath(destination string) string {
	return "/" + destination
}

func uniqueFilename(name string, now time.Time) (string, error) {
	if err := validateFilename(name); err != nil {
		return "", err
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	return fmt.Sprintf("%s_%d_%s%s", stem, now.UnixNano(), suffix, ext), nil
}

func ownerKeyPrefix(ownerID uint) string {
	return fmt.Sprintf("%s%d/files/", userKeyPrefix, ownerID)
}

func checkPathLength(destination string) error {
	if len(displayPath(destination)) > maxPathLength {
		return core.NewUploadError(core.ErrKeyInvalidInput, nil,
			fmt.Sprintf("The destination path is longer than %d bytes.", maxPathLength))
	}
	return nil
}

func checkKeyLength(objectKey string) error {
	if len(objectKey) > maxObjectKeyLength {
		return core.NewUploadError(core.ErrKeyInvalidInput, nil,
			fmt.Sprintf("The storage key would be longer than %d bytes.", maxObjectKeyLength))
	}
	return nil
}

// storeWriteError maps a failed object write, a key the store refuses is the caller's fault.
func storeWriteError(err error) error {
	if errors.Is(err, core.ErrKeyRejected) {
		return core.NewUploadError(core.ErrKeyInvalidInput, err)
	}
	return core.NewUploadError(core.ErrKeyStorageUnavailable, err)
}

func objectKeyFor(ownerID uint, destination string, filename string) string {
	if destination == "" {
		return ownerKeyPrefix(ownerID) + filename
	}

	return ownerKeyPrefix(ownerID) + destination + "/" + filename
}

// media types that the stdlib table only knows when the host ships a mime.types file
var mediaTypesByExt = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".heic": "image/heic",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

func resolveMimeType(declared string, filename string) string {
	if declared != "" {
		return declared
	}

	ext := strings.ToLower(path.Ext(filename))
	if byExt, ok := mediaTypesByExt[ext]; ok {
		return byExt
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}

	return "application/octet-stream"
}
