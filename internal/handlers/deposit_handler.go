package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wallet-topup-backend/internal/models"
	"wallet-topup-backend/internal/repository"
	"wallet-topup-backend/internal/services/reconcile"
	"wallet-topup-backend/internal/services/vietqr"
)

type DepositHandler struct {
	service       *reconcile.Service
	transactions  *repository.TransactionRepository
	notifications *repository.NotificationRepository
	users         *repository.UserRepository
	accountNumber string
	accountName   string
	bankCode      string
}

func NewDepositHandler(
	service *reconcile.Service,
	transactions *repository.TransactionRepository,
	notifications *repository.NotificationRepository,
	users *repository.UserRepository,
	bankCode, accountNumber, accountName string,
) *DepositHandler {
	return &DepositHandler{
		service:       service,
		transactions:  transactions,
		notifications: notifications,
		users:         users,
		bankCode:      bankCode,
		accountNumber: accountNumber,
		accountName:   accountName,
	}
}

func (h *DepositHandler) CreateDeposit(c *gin.Context) {
	var payload struct {
		UserID string `json:"user_id"`
		Amount string `json:"amount"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive decimal"})
		return
	}

	if _, err := h.users.GetByID(c.Request.Context(), userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	txn, err := h.service.CreateDeposit(c.Request.Context(), userID, amount)
	if err != nil {
		if errors.Is(err, vietqr.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction":    txn,
		"qr_data":        txn.QRPayload,
		"reference_id":   txn.ReferenceID,
		"account_number": h.accountNumber,
		"account_name":   h.accountName,
		"bank_code":      h.bankCode,
		"expires_at":     txn.ExpiresAt,
	})
}

func (h *DepositHandler) GetDeposit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	txn, err := h.transactions.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

func (h *DepositHandler) ListUserTransactions(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	txns, err := h.transactions.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// AdminCredit adjusts a wallet directly, outside the deposit flow.
func (h *DepositHandler) AdminCredit(c *gin.Context) {
	var payload struct {
		UserID string `json:"user_id"`
		Amount string `json:"amount"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}
	amount, err := decimal.NewFromString(payload.Amount)
	if err != nil || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive decimal"})
		return
	}

	if err := h.users.Credit(c.Request.Context(), userID, amount); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "wallet credited"})
}

// ListReviewQueue returns notifications that need manual attention.
func (h *DepositHandler) ListReviewQueue(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	recs, err := h.notifications.ListForReview(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": recs})
}
