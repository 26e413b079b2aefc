package core

import (
	"context"

	"go.notebook.dev/notebook/db/models"
)

const FILE_SERVICE = "file"

type FileService interface {
	Create(ctx context.Context, file *models.File) error
	Get(ctx context.Context, ownerID uint, id uint) (*models.File, error)
	List(ctx context.Context, ownerID uint, path string) ([]models.File, error)
	Delete(ctx context.Context, ownerID uint, id uint) (*models.File, error)

	Service
}
