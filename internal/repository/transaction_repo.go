package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wallet-topup-backend/internal/models"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Expose DB if needed
func (r *TransactionRepository) DB() *gorm.DB {
	return r.db
}

func (r *TransactionRepository) FindByReference(ctx context.Context, ref string) (*models.DepositTransaction, error) {
	var txn models.DepositTransaction
	err := r.db.WithContext(ctx).First(&txn, "reference_id = ?", ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *TransactionRepository) FindExpiredBefore(ctx context.Context, now time.Time) ([]models.DepositTransaction, error) {
	var txns []models.DepositTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.StatusPending, now).
		Find(&txns).Error
	return txns, err
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.DepositTransaction, error) {
	var txn models.DepositTransaction
	err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *TransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.DepositTransaction, error) {
	var txns []models.DepositTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&txns).Error
	return txns, err
}

func (r *TransactionRepository) Save(ctx context.Context, txn *models.DepositTransaction) error {
	return r.db.WithContext(ctx).Save(txn).Error
}

// CompleteAndCredit flips the transaction to completed and credits the
// owner's wallet in a single database transaction. The status update is
// guarded on the current status still being pending, so a concurrent expiry
// sweep and a notification can both race on the same row and only one wins.
func (r *TransactionRepository) CompleteAndCredit(ctx context.Context, txn *models.DepositTransaction) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DepositTransaction{}).
			Where("id = ? AND status = ?", txn.ID, models.StatusPending).
			Updates(map[string]interface{}{
				"status":       models.StatusCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.ErrStaleStatus
		}

		return tx.Model(&models.User{}).
			Where("id = ?", txn.UserID).
			Update("wallet_balance", gorm.Expr("wallet_balance + ?", txn.Amount)).
			Error
	})
	if err != nil {
		return err
	}

	txn.Status = models.StatusCompleted
	txn.CompletedAt = &now
	return nil
}

// ExpireIfPending is the sweep-side counterpart of CompleteAndCredit's
// status guard.
func (r *TransactionRepository) ExpireIfPending(ctx context.Context, txn *models.DepositTransaction) error {
	res := r.db.WithContext(ctx).Model(&models.DepositTransaction{}).
		Where("id = ? AND status = ?", txn.ID, models.StatusPending).
		Update("status", models.StatusExpired)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrStaleStatus
	}
	txn.Status = models.StatusExpired
	return nil
}
