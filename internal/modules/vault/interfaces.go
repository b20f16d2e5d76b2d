package vault

import (
	"context"
	"time"

	"vaultgate/internal/domain"
	"vaultgate/internal/pkg/token"
)

// CipherRepositoryInterface — only the methods the vault service uses.
type CipherRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Cipher) error
	CreateBatch(ctx context.Context, ciphers []domain.Cipher) error
	GetByID(ctx context.Context, userID, id string) (*domain.Cipher, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Cipher, error)
	Update(ctx context.Context, c *domain.Cipher) error
	SoftDelete(ctx context.Context, userID, id string, now time.Time) error
	Restore(ctx context.Context, userID, id string, now time.Time) error
	Delete(ctx context.Context, userID, id string) error
	MoveToFolder(ctx context.Context, userID string, cipherIDs []string, folderID *string, now time.Time) error
	ClearFolderRefs(ctx context.Context, userID, folderID string, now time.Time) error
}

type FolderRepositoryInterface interface {
	Create(ctx context.Context, f *domain.Folder) error
	CreateBatch(ctx context.Context, folders []domain.Folder) error
	GetByID(ctx context.Context, userID, id string) (*domain.Folder, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Folder, error)
	Update(ctx context.Context, f *domain.Folder) error
	Delete(ctx context.Context, userID, id string) error
}

type AttachmentRepositoryInterface interface {
	Create(ctx context.Context, a *domain.Attachment) error
	Update(ctx context.Context, a *domain.Attachment) error
	GetByID(ctx context.Context, cipherID, id string) (*domain.Attachment, error)
	ListByCipher(ctx context.Context, cipherID string) ([]domain.Attachment, error)
	ListByCiphers(ctx context.Context, cipherIDs []string) ([]domain.Attachment, error)
	Delete(ctx context.Context, cipherID, id string) error
}

type RevisionRepositoryInterface interface {
	Touch(ctx context.Context, userID string, now time.Time) error
	Get(ctx context.Context, userID string) (time.Time, error)
}

type UsedTokenRepositoryInterface interface {
	MarkUsed(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
}

type fileTokenService interface {
	GenerateFileToken(cipherID, attachmentID string) (string, string, error)
	ValidateFileToken(tokenStr string) (*token.FileClaims, error)
}

// Notifier pushes "something changed, re-sync" hints to live clients.
type Notifier interface {
	NotifySyncNeeded(userID string)
}
