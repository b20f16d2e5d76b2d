package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"vaultgate/internal/domain"
)

// UserRepository provides DB access for the vault's single account.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// CreateFirst inserts the user only when the table is still empty. The guard
// is part of the insert statement itself, so two racing registrations cannot
// both observe an empty table and both commit; the loser affects zero rows
// and sees gorm.ErrDuplicatedKey.
func (r *UserRepository) CreateFirst(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	res := r.db.WithContext(ctx).Exec(
		`INSERT INTO users
		   (id, email, name, master_password_hash, "key", private_key, public_key,
		    kdf_type, kdf_iterations, kdf_memory, kdf_parallelism, security_stamp,
		    created_at, updated_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE NOT EXISTS (SELECT 1 FROM users)`,
		u.ID, u.Email, u.Name, u.MasterPasswordHash, u.Key, u.PrivateKey, u.PublicKey,
		u.KdfType, u.KdfIterations, u.KdfMemory, u.KdfParallelism, u.SecurityStamp,
		u.CreatedAt, u.UpdatedAt,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrDuplicatedKey
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	if err := r.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&count).Error
	return count, err
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
