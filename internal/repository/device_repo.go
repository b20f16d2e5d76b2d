package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vaultgate/internal/domain"
)

// DeviceRepository tracks the devices that have logged in successfully.
type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Upsert records the device on login, refreshing its name and type.
func (r *DeviceRepository) Upsert(ctx context.Context, d *domain.Device) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "device_identifier"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "type", "updated_at"}),
	}).Create(d).Error
}

func (r *DeviceRepository) Exists(ctx context.Context, deviceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Device{}).
		Where("device_identifier = ?", deviceID).
		Count(&count).Error
	return count > 0, err
}

func (r *DeviceRepository) ListByUser(ctx context.Context, userID string) ([]domain.Device, error) {
	var devices []domain.Device
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&devices).Error
	return devices, err
}
