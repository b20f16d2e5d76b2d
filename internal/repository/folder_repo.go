package repository

import (
	"context"

	"gorm.io/gorm"

	"vaultgate/internal/domain"
)

// FolderRepository provides DB access for vault folders.
type FolderRepository struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, f *domain.Folder) error {
	return r.db.WithContext(ctx).Create(f).Error
}

func (r *FolderRepository) CreateBatch(ctx context.Context, folders []domain.Folder) error {
	if len(folders) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(folders, 100).Error
}

func (r *FolderRepository) GetByID(ctx context.Context, userID, id string) (*domain.Folder, error) {
	var f domain.Folder
	err := r.db.WithContext(ctx).
		First(&f, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FolderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Folder, error) {
	var folders []domain.Folder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&folders).Error
	return folders, err
}

func (r *FolderRepository) Update(ctx context.Context, f *domain.Folder) error {
	return r.db.WithContext(ctx).Save(f).Error
}

func (r *FolderRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Folder{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
