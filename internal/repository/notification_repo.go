package repository

import (
	"context"

	"gorm.io/gorm"

	"wallet-topup-backend/internal/models"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Exists(ctx context.Context, emailID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.EmailNotification{}).
		Where("email_id = ?", emailID).
		Count(&count).Error
	return count > 0, err
}

func (r *NotificationRepository) Save(ctx context.Context, rec *models.EmailNotification) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

// ListForReview returns mismatched and unmatched notifications, newest
// first, for the manual review endpoint.
func (r *NotificationRepository) ListForReview(ctx context.Context, limit int) ([]models.EmailNotification, error) {
	var recs []models.EmailNotification
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.NotificationMismatch, models.NotificationUnmatched}).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
