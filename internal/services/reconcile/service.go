package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"wallet-topup-backend/internal/models"
	"wallet-topup-backend/internal/services/mailparse"
	"wallet-topup-backend/internal/services/vietqr"
)

// Outcome classifies what reconciling one notification did.
type Outcome string

const (
	OutcomeMatched          Outcome = "matched"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeMismatch         Outcome = "mismatch"
	OutcomeMalformed        Outcome = "malformed"
)

// Message is one raw notification from the mail source.
type Message struct {
	ID      string // mail-source message id, the idempotency key
	Sender  string
	Subject string
	Body    string
}

// MailSource lists unseen bank notification emails. Implementations own all
// mail-protocol detail; the engine only consumes (id, body) pairs.
type MailSource interface {
	ListUnseen(ctx context.Context, filter string, max int) ([]Message, error)
}

type TransactionStore interface {
	FindByReference(ctx context.Context, ref string) (*models.DepositTransaction, error)
	FindExpiredBefore(ctx context.Context, now time.Time) ([]models.DepositTransaction, error)
	Save(ctx context.Context, txn *models.DepositTransaction) error
	// CompleteAndCredit sets the transaction Completed and credits the
	// owner's wallet in one atomic write, guarded on status == pending.
	// Returns models.ErrStaleStatus if the guard fails.
	CompleteAndCredit(ctx context.Context, txn *models.DepositTransaction) error
	// ExpireIfPending sets the transaction Expired, guarded the same way.
	ExpireIfPending(ctx context.Context, txn *models.DepositTransaction) error
}

type NotificationStore interface {
	Exists(ctx context.Context, emailID string) (bool, error)
	Save(ctx context.Context, rec *models.EmailNotification) error
}

type Config struct {
	AccountNumber string // receiving account; notifications for other accounts never match
	MailFilter    string
	MailBatchSize int
	DepositTTL    time.Duration
}

type Service struct {
	qr            *vietqr.Generator
	transactions  TransactionStore
	notifications NotificationStore
	mail          MailSource
	cfg           Config
	log           *zap.Logger
}

func NewService(
	qr *vietqr.Generator,
	transactions TransactionStore,
	notifications NotificationStore,
	mail MailSource,
	cfg Config,
	log *zap.Logger,
) *Service {
	return &Service{
		qr:            qr,
		transactions:  transactions,
		notifications: notifications,
		mail:          mail,
		cfg:           cfg,
		log:           log,
	}
}

// CreateDeposit opens a pending deposit for the user: generates the
// reference, encodes the QR payload and saves the transaction with its
// expiry window.
func (s *Service) CreateDeposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*models.DepositTransaction, error) {
	ref := vietqr.GenerateReferenceID()
	payload, err := s.qr.BuildPayload(amount, ref)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	txn := &models.DepositTransaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Status:      models.StatusPending,
		ReferenceID: ref,
		QRPayload:   payload,
		Description: "Deposit via VietQR",
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.DepositTTL),
	}
	if err := s.transactions.Save(ctx, txn); err != nil {
		return nil, fmt.Errorf("save deposit transaction: %w", err)
	}

	s.log.Info("deposit created",
		zap.String("reference", ref),
		zap.String("user_id", userID.String()),
		zap.String("amount", amount.String()))
	return txn, nil
}

// ProcessMessage runs one notification through parse and reconcile. Every
// outcome persists an EmailNotification keyed by the message id, so the same
// email is never evaluated twice. Returned errors are infrastructure faults
// only; domain failures are encoded in the outcome.
func (s *Service) ProcessMessage(ctx context.Context, msg Message) (Outcome, error) {
	seen, err := s.notifications.Exists(ctx, msg.ID)
	if err != nil {
		return "", fmt.Errorf("check notification %s: %w", msg.ID, err)
	}
	if seen {
		return OutcomeAlreadyProcessed, nil
	}

	rec := &models.EmailNotification{
		ID:        uuid.New(),
		EmailID:   msg.ID,
		Sender:    msg.Sender,
		Subject:   msg.Subject,
		Body:      msg.Body,
		CreatedAt: time.Now(),
	}

	parsed, err := mailparse.Parse(msg.Body)
	if err != nil {
		rec.Status = models.NotificationMalformed
		if err := s.notifications.Save(ctx, rec); err != nil {
			return "", fmt.Errorf("save malformed notification %s: %w", msg.ID, err)
		}
		return OutcomeMalformed, nil
	}

	rec.BankAccount = parsed.Account
	rec.Amount = parsed.Amount
	rec.ReferenceCode = parsed.Reference
	rec.TransactionDate = parsed.TransactionDate
	rec.ParsedDetails, _ = json.Marshal(map[string]interface{}{
		"account":   parsed.Account,
		"amount":    parsed.Amount.String(),
		"content":   parsed.Content,
		"reference": parsed.Reference,
	})

	outcome, txn, err := s.reconcile(ctx, parsed)
	if err != nil {
		// Infrastructure fault: leave the email id unconsumed so the next
		// tick retries it.
		return "", err
	}
	switch outcome {
	case OutcomeMatched:
		rec.Status = models.NotificationMatched
		rec.Processed = true
		now := time.Now()
		rec.ProcessedAt = &now
		rec.TransactionID = &txn.ID
	case OutcomeAlreadyProcessed:
		rec.Status = models.NotificationDuplicate
		if txn != nil {
			rec.TransactionID = &txn.ID
		}
	case OutcomeMismatch:
		rec.Status = models.NotificationMismatch
		rec.TransactionID = &txn.ID
		s.log.Warn("amount mismatch, flagged for manual review",
			zap.String("reference", parsed.Reference),
			zap.String("expected", txn.Amount.String()),
			zap.String("got", parsed.Amount.String()))
	default:
		rec.Status = models.NotificationUnmatched
	}

	if err := s.notifications.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("save notification %s: %w", msg.ID, err)
	}
	return outcome, nil
}

// reconcile matches parsed fields against a pending deposit and performs the
// status transition. It never writes the notification record itself.
func (s *Service) reconcile(ctx context.Context, parsed *mailparse.Notification) (Outcome, *models.DepositTransaction, error) {
	if parsed.Reference == "" {
		return OutcomeNotFound, nil, nil
	}
	if s.cfg.AccountNumber != "" && parsed.Account != s.cfg.AccountNumber {
		return OutcomeNotFound, nil, nil
	}

	// Look up by the cleaned reference first; fall back to the raw captured
	// form if it differs. Generated references are already clean, so the
	// second pass is a defensive net for odd notification content.
	cleanRef := vietqr.CleanReference(parsed.Reference)
	txn, err := s.transactions.FindByReference(ctx, cleanRef)
	if errors.Is(err, models.ErrNotFound) && cleanRef != parsed.Reference {
		txn, err = s.transactions.FindByReference(ctx, parsed.Reference)
	}
	if errors.Is(err, models.ErrNotFound) {
		return OutcomeNotFound, nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("find transaction by reference %s: %w", cleanRef, err)
	}

	if txn.Status != models.StatusPending {
		return OutcomeAlreadyProcessed, txn, nil
	}
	if !txn.Amount.Equal(parsed.Amount) {
		return OutcomeMismatch, txn, nil
	}

	if err := s.transactions.CompleteAndCredit(ctx, txn); err != nil {
		if errors.Is(err, models.ErrStaleStatus) {
			// Lost the race against another writer (e.g. the expiry sweep).
			return OutcomeAlreadyProcessed, txn, nil
		}
		return "", nil, fmt.Errorf("complete transaction %s: %w", txn.ReferenceID, err)
	}

	s.log.Info("deposit confirmed",
		zap.String("reference", txn.ReferenceID),
		zap.String("user_id", txn.UserID.String()),
		zap.String("amount", txn.Amount.String()))
	return OutcomeMatched, txn, nil
}

// IngestOnce fetches one bounded batch of notifications and processes them
// in source order. A failing notification is logged and skipped; it never
// aborts the rest of the batch.
func (s *Service) IngestOnce(ctx context.Context) error {
	msgs, err := s.mail.ListUnseen(ctx, s.cfg.MailFilter, s.cfg.MailBatchSize)
	if err != nil {
		return fmt.Errorf("list unseen mail: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	for _, msg := range msgs {
		outcome, err := s.ProcessMessage(ctx, msg)
		if err != nil {
			s.log.Error("process notification failed", zap.String("email_id", msg.ID), zap.Error(err))
			continue
		}
		if outcome != OutcomeAlreadyProcessed {
			s.log.Info("notification processed",
				zap.String("email_id", msg.ID),
				zap.String("outcome", string(outcome)))
		}
	}
	return nil
}

// ExpireOnce transitions every overdue pending deposit to expired and
// returns how many it expired.
func (s *Service) ExpireOnce(ctx context.Context) (int, error) {
	txns, err := s.transactions.FindExpiredBefore(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("find expired transactions: %w", err)
	}

	expired := 0
	for i := range txns {
		txn := &txns[i]
		if err := s.transactions.ExpireIfPending(ctx, txn); err != nil {
			if errors.Is(err, models.ErrStaleStatus) {
				continue // completed in the meantime, leave it alone
			}
			s.log.Error("expire transaction failed", zap.String("reference", txn.ReferenceID), zap.Error(err))
			continue
		}
		expired++
		s.log.Info("deposit expired", zap.String("reference", txn.ReferenceID))
	}
	return expired, nil
}
