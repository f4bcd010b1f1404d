package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username      string    `gorm:"uniqueIndex"`
	Email         string
	WalletBalance decimal.Decimal `gorm:"type:numeric(19,2)"`
	CreatedAt     time.Time
}
