package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Notification statuses record the reconciliation outcome for audit.
// A row exists for every email id ever seen; Processed flips to true only
// when the notification completed a deposit.
const (
	NotificationMatched   = "matched"
	NotificationDuplicate = "duplicate"
	NotificationUnmatched = "unmatched"
	NotificationMismatch  = "mismatch"
	NotificationMalformed = "malformed"
)

type EmailNotification struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	EmailID         string    `gorm:"uniqueIndex"`
	Sender          string
	Subject         string
	Body            string `gorm:"type:text"`
	BankAccount     string
	Amount          decimal.Decimal `gorm:"type:numeric(19,2)"`
	ReferenceCode   string          `gorm:"index"`
	TransactionDate time.Time
	Status          string `gorm:"index"`
	Processed       bool
	ProcessedAt     *time.Time
	TransactionID   *uuid.UUID `gorm:"type:uuid"`
	ParsedDetails   datatypes.JSON
	CreatedAt       time.Time
}
