package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vaultgate/internal/domain"
)

// RevisionRepository tracks the last vault mutation timestamp per user.
type RevisionRepository struct {
	db *gorm.DB
}

func NewRevisionRepository(db *gorm.DB) *RevisionRepository {
	return &RevisionRepository{db: db}
}

// Touch bumps the revision date. Called after every vault mutation so sync
// clients can cheap-poll for changes.
func (r *RevisionRepository) Touch(ctx context.Context, userID string, now time.Time) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"revision_date"}),
	}).Create(&domain.UserRevision{UserID: userID, RevisionDate: now}).Error
}

// Get returns the last revision date, or the zero time when the user has
// never mutated the vault.
func (r *RevisionRepository) Get(ctx context.Context, userID string) (time.Time, error) {
	var rev domain.UserRevision
	err := r.db.WithContext(ctx).First(&rev, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return rev.RevisionDate, nil
}
