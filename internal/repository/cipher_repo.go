package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"vaultgate/internal/domain"
)

// CipherRepository provides DB access for vault items.
type CipherRepository struct {
	db *gorm.DB
}

func NewCipherRepository(db *gorm.DB) *CipherRepository {
	return &CipherRepository{db: db}
}

func (r *CipherRepository) Create(ctx context.Context, c *domain.Cipher) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CipherRepository) CreateBatch(ctx context.Context, ciphers []domain.Cipher) error {
	if len(ciphers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(ciphers, 100).Error
}

func (r *CipherRepository) GetByID(ctx context.Context, userID, id string) (*domain.Cipher, error) {
	var c domain.Cipher
	err := r.db.WithContext(ctx).
		First(&c, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CipherRepository) ListByUser(ctx context.Context, userID string) ([]domain.Cipher, error) {
	var ciphers []domain.Cipher
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&ciphers).Error
	return ciphers, err
}

func (r *CipherRepository) Update(ctx context.Context, c *domain.Cipher) error {
	return r.db.WithContext(ctx).Save(c).Error
}

// SoftDelete moves the cipher to trash.
func (r *CipherRepository) SoftDelete(ctx context.Context, userID, id string, now time.Time) error {
	return r.updateOwned(ctx, userID, id, map[string]any{"deleted_at": now, "updated_at": now})
}

func (r *CipherRepository) Restore(ctx context.Context, userID, id string, now time.Time) error {
	return r.updateOwned(ctx, userID, id, map[string]any{"deleted_at": nil, "updated_at": now})
}

func (r *CipherRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Cipher{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MoveToFolder reassigns ciphers in bulk; folderID nil clears the folder.
func (r *CipherRepository) MoveToFolder(ctx context.Context, userID string, cipherIDs []string, folderID *string, now time.Time) error {
	if len(cipherIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.Cipher{}).
		Where("user_id = ? AND id IN ?", userID, cipherIDs).
		Updates(map[string]any{"folder_id": folderID, "updated_at": now}).Error
}

// ClearFolderRefs detaches every cipher from a folder being deleted.
func (r *CipherRepository) ClearFolderRefs(ctx context.Context, userID, folderID string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Cipher{}).
		Where("user_id = ? AND folder_id = ?", userID, folderID).
		Updates(map[string]any{"folder_id": nil, "updated_at": now}).Error
}

func (r *CipherRepository) updateOwned(ctx context.Context, userID, id string, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&domain.Cipher{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
