package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deposit transaction statuses. Pending is the only non-terminal state:
// a transaction moves Pending -> Completed or Pending -> Expired exactly once.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

var (
	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrStaleStatus is returned when a status-guarded update finds the
	// transaction no longer in the expected prior status.
	ErrStaleStatus = errors.New("transaction status changed concurrently")
)

type DepositTransaction struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID       `gorm:"type:uuid;index"`
	Amount      decimal.Decimal `gorm:"type:numeric(19,2)"`
	Status      string          `gorm:"index"`
	ReferenceID string          `gorm:"uniqueIndex"`
	QRPayload   string          `gorm:"type:text"`
	Description string
	CreatedAt   time.Time
	ExpiresAt   time.Time `gorm:"index"`
	CompletedAt *time.Time
}
