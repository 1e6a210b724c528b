// internal/handlers/payment.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docmarket/backend/internal/apperrors"
	"github.com/docmarket/backend/internal/services"
	"github.com/docmarket/backend/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// POST /payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
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

	var req services.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	info, err := h.paymentService.CreatePayment(c.Request.Context(), userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrItemNotFound):
			utils.NotFoundResponse(c, "Item")
		case errors.Is(err, apperrors.ErrAlreadyPurchased):
			utils.ConflictResponse(c, err.Error())
		case errors.Is(err, apperrors.ErrGatewayDisabled), errors.Is(err, apperrors.ErrInvalidAmount):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			logrus.WithError(err).Error("Failed to create payment")
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	utils.SuccessResponse(c, info)
}

// POST /payments/webhook
//
// Response policy: 401 when authentication fails (opaque, no hint whether
// anything matched), 400 for unparseable payloads, 200 for every
// authenticated business outcome including rejections (the body carries the
// reason; a non-2xx would only make the gateway redeliver a notification
// that will fail the same way), 500 for internal errors, which are safe to
// retry.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		utils.BadRequestResponse(c, "Unable to read request body", nil)
		return
	}

	authHeader := c.GetHeader("Authorization")
	signature := c.GetHeader("X-Webhook-Signature")

	result, err := h.paymentService.ProcessNotification(c.Request.Context(), rawBody, authHeader, signature)
	if err != nil {
		logrus.WithError(err).Error("Webhook processing failed")
		utils.InternalErrorResponse(c, "")
		return
	}

	switch result.Code {
	case services.WebhookCodeAuthFailed:
		utils.UnauthorizedResponse(c, "Invalid credentials")
	case services.WebhookCodeInvalidPayload:
		utils.BadRequestResponse(c, result.Message, nil)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success": result.Accepted,
			"code":    result.Code,
			"message": result.Message,
		})
	}
}

// GET /payments/:id/status
func (h *PaymentHandler) CheckStatus(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction ID", nil)
		return
	}

	info, err := h.paymentService.CheckStatus(c.Request.Context(), transactionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrTransactionNotFound) {
			utils.NotFoundResponse(c, "Transaction")
			return
		}
		logrus.WithError(err).Error("Failed to check payment status")
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, info)
}

// POST /payments/:id/cancel
func (h *PaymentHandler) CancelPayment(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid transaction ID", nil)
		return
	}

	if err := h.paymentService.Cancel(c.Request.Context(), transactionID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrTransactionNotFound):
			utils.NotFoundResponse(c, "Transaction")
		case errors.Is(err, apperrors.ErrCannotCancelCompleted):
			utils.BadRequestResponse(c, err.Error(), nil)
		default:
			logrus.WithError(err).Error("Failed to cancel payment")
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Payment cancelled successfully",
	})
}
