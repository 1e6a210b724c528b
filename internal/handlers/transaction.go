// internal/handlers/transaction.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docmarket/backend/internal/apperrors"
	"github.com/docmarket/backend/internal/models"
	"github.com/docmarket/backend/internal/services"
	"github.com/docmarket/backend/internal/utils"
)

type TransactionHandler struct {
	transactionService *services.TransactionService
}

type PurchaseRequest struct {
	ItemType string `json:"item_type" validate:"required,oneof=document package"`
	ItemID   string `json:"item_id" validate:"required"`
}

func NewTransactionHandler(transactionService *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

// POST /purchases
func (h *TransactionHandler) Purchase(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid item ID", nil)
		return
	}

	var txn *models.Transaction
	if req.ItemType == "document" {
		txn, err = h.transactionService.PurchaseDocument(userID, itemID)
	} else {
		txn, err = h.transactionService.PurchasePackage(userID, itemID)
	}
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrItemNotFound):
			utils.NotFoundResponse(c, "Item")
		case errors.Is(err, apperrors.ErrAlreadyPurchased):
			utils.ConflictResponse(c, err.Error())
		case errors.Is(err, apperrors.ErrInsufficientBalance):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			logrus.WithError(err).Error("Purchase failed")
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	utils.CreatedResponse(c, txn)
}

// GET /admin/transactions
func (h *TransactionHandler) ListAll(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	paymentStatus := c.Query("payment_status")

	transactions, total, err := h.transactionService.GetAllTransactions(paymentStatus, params)
	if err != nil {
		logrus.WithError(err).Error("Failed to list transactions")
		utils.InternalErrorResponse(c, "")
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /transactions
func (h *TransactionHandler) GetHistory(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	params := utils.GetPaginationParams(c)

	transactions, total, err := h.transactionService.GetUserTransactions(userID, params)
	if err != nil {
		logrus.WithError(err).Error("Failed to fetch transaction history")
		utils.InternalErrorResponse(c, "")
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.PaginatedResponse(c, result)
}
