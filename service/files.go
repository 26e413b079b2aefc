package service

import (
	"context"
	"errors"
	"path"

	"go.notebook.dev/notebook/core"
	"go.notebook.dev/notebook/db"
	"go.notebook.dev/notebook/db/models"
	"go.notebook.dev/notebook/event"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var _ core.FileService = (*FileServiceDefault)(nil)

func init() {
	core.RegisterService(core.ServiceInfo{
		ID: core.FILE_SERVICE,
		Factory: func() (core.Service, []core.ContextBuilderOption, error) {
			return NewFileService()
		},
		Depends: []string{core.STORAGE_SERVICE},
	})
}

// FileServiceDefault owns the file records produced by finished uploads.
type FileServiceDefault struct {
	ctx     core.Context
	db      *gorm.DB
	logger  *core.Logger
	deleter core.ObjectDeleter
}

func NewFileService() (*FileServiceDefault, []core.ContextBuilderOption, error) {
	files := &FileServiceDefault{}

	opts := core.ContextOptions(
		core.ContextWithStartupFunc(func(ctx core.Context) error {
			files.ctx = ctx
			files.db = ctx.DB()
			files.logger = ctx.Logger()
			files.deleter = core.GetService[core.StorageService](ctx, core.STORAGE_SERVICE)
			return nil
		}),
	)

	return files, opts, nil
}

func newFileService(ctx core.Context, deleter core.ObjectDeleter) *FileServiceDefault {
	return &FileServiceDefault{
		ctx:     ctx,
		db:      ctx.DB(),
		logger:  ctx.Logger(),
		deleter: deleter,
	}
}

func (f *FileServiceDefault) Create(ctx context.Context, file *models.File) error {
	return db.RetryOnLock(f.db.WithContext(ctx), func(db *gorm.DB) *gorm.DB {
		return db.Create(file)
	})
}

func (f *FileServiceDefault) Get(ctx context.Context, ownerID uint, id uint) (*models.File, error) {
	var file models.File

	err := db.RetryOnLock(f.db.WithContext(ctx), func(db *gorm.DB) *gorm.DB {
		return db.Where("id = ? AND owner_id = ?", id, ownerID).First(&file)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.NewUploadError(core.ErrKeyFileNotFound, nil)
		}
		return nil, core.NewUploadError(core.ErrKeyDatabaseFailed, err)
	}

	return &file, nil
}

// List returns the owner's files in one directory, or every file when dir is empty.
func (f *FileServiceDefault) List(ctx context.Context, ownerID uint, dir string) ([]models.File, error) {
	var files []models.File

	err := db.RetryOnLock(f.db.WithContext(ctx), func(db *gorm.DB) *gorm.DB {
		query := db.Where("owner_id = ?", ownerID)
		if dir != "" {
			query = query.Where("path = ?", path.Clean("/"+dir))
		}
		return query.Order("created_at desc").Order("id desc").Find(&files)
	})
	if err != nil {
		return nil, core.NewUploadError(core.ErrKeyDatabaseFailed, err)
	}

	return files, nil
}

func (f *FileServiceDefault) Delete(ctx context.Context, ownerID uint, id uint) (*models.File, error) {
	file, err := f.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	err = db.RetryOnLock(f.db.WithContext(ctx), func(db *gorm.DB) *gorm.DB {
		return db.Delete(file)
	})
	if err != nil {
		return nil, core.NewUploadError(core.ErrKeyDatabaseFailed, err)
	}

	keys := []string{file.StorageKey}
	if file.ThumbnailKey != nil {
		keys = append(keys, *file.ThumbnailKey)
	}
	for _, key := range keys {
		if err := f.deleter.DeleteObject(ctx, key); err != nil {
			f.logger.Warn("failed to delete stored object", zap.String("key", key), zap.Error(err))
		}
	}

	if err := event.FireFileDeletedEvent(f.ctx, file); err != nil {
		f.logger.Error("failed to fire event", zap.Error(err))
	}

	return file, nil
}
