package repository

import (
	"context"

	"gorm.io/gorm"

	"vaultgate/internal/domain"
)

// AttachmentRepository provides DB access for attachment metadata.
type AttachmentRepository struct {
	db *gorm.DB
}

func NewAttachmentRepository(db *gorm.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, a *domain.Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AttachmentRepository) Update(ctx context.Context, a *domain.Attachment) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *AttachmentRepository) GetByID(ctx context.Context, cipherID, id string) (*domain.Attachment, error) {
	var a domain.Attachment
	err := r.db.WithContext(ctx).
		First(&a, "id = ? AND cipher_id = ?", id, cipherID).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttachmentRepository) ListByCipher(ctx context.Context, cipherID string) ([]domain.Attachment, error) {
	var attachments []domain.Attachment
	err := r.db.WithContext(ctx).
		Where("cipher_id = ?", cipherID).
		Find(&attachments).Error
	return attachments, err
}

func (r *AttachmentRepository) ListByCiphers(ctx context.Context, cipherIDs []string) ([]domain.Attachment, error) {
	if len(cipherIDs) == 0 {
		return nil, nil
	}
	var attachments []domain.Attachment
	err := r.db.WithContext(ctx).
		Where("cipher_id IN ?", cipherIDs).
		Find(&attachments).Error
	return attachments, err
}

func (r *AttachmentRepository) Delete(ctx context.Context, cipherID, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND cipher_id = ?", id, cipherID).
		Delete(&domain.Attachment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
