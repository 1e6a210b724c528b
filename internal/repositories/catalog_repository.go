// internal/repositories/catalog_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docmarket/backend/internal/apperrors"
	"github.com/docmarket/backend/internal/models"
	"github.com/docmarket/backend/internal/services"
)

type CatalogRepository struct {
	db *gorm.DB
}

var _ services.CatalogStore = (*CatalogRepository)(nil)

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to fetch document: %w", err)
	}
	return &doc, nil
}

func (r *CatalogRepository) GetPackage(ctx context.Context, id uuid.UUID) (*models.DocumentPackage, error) {
	var pkg models.DocumentPackage
	if err := r.db.WithContext(ctx).First(&pkg, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to fetch package: %w", err)
	}
	return &pkg, nil
}
