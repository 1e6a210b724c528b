// internal/repositories/transaction_repository.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/docmarket/backend/internal/apperrors"
	"github.com/docmarket/backend/internal/database"
	"github.com/docmarket/backend/internal/models"
	"github.com/docmarket/backend/internal/services"
)

type TransactionRepository struct {
	db *gorm.DB
}

var _ services.TransactionStore = (*TransactionRepository)(nil)

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).First(&txn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	return &txn, nil
}

func (r *TransactionRepository) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("gateway_reference = ? AND payment_method = ?", reference, models.PaymentMethodGateway).
		Order("created_at DESC").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by reference: %w", err)
	}
	return &txn, nil
}

func (r *TransactionRepository) FindByGatewayTxID(ctx context.Context, gatewayTxID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Where("gateway_transaction_id = ?", gatewayTxID).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find transaction by gateway id: %w", err)
	}
	return &txn, nil
}

func (r *TransactionRepository) FindPendingGateway(ctx context.Context, userID uuid.UUID, kind models.TransactionKind, targetRef *uuid.UUID) (*models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND kind = ? AND payment_method = ? AND status = ? AND payment_status = ?",
			userID, kind, models.PaymentMethodGateway,
			models.TransactionStatusPending, models.PaymentStatusPending)

	if targetRef != nil {
		query = query.Where("target_ref = ?", *targetRef)
	} else {
		query = query.Where("target_ref IS NULL")
	}

	var txn models.Transaction
	if err := query.Order("created_at DESC").First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find pending payment: %w", err)
	}
	return &txn, nil
}

func (r *TransactionRepository) HasCompletedPurchase(ctx context.Context, userID uuid.UUID, kind models.TransactionKind, targetRef uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ? AND kind = ? AND target_ref = ? AND status = ?",
			userID, kind, targetRef, models.TransactionStatusCompleted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count purchases: %w", err)
	}
	return count > 0, nil
}

func (r *TransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) SavePaymentRequest(ctx context.Context, id uuid.UUID, reference, qrURL string, expiresAt time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"gateway_reference": reference,
			"qr_code_url":       qrURL,
			"expires_at":        expiresAt,
			"updated_at":        time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to save payment request: %w", err)
	}
	return nil
}

// CommitCompletion performs the compare-and-set completion: the UPDATE is
// conditioned on payment_status still being pending, so concurrent completion
// paths resolve to exactly one winner that mutates the row and credits the
// balance.
func (r *TransactionRepository) CommitCompletion(ctx context.Context, id uuid.UUID, gatewayTxID string, amount decimal.Decimal, raw models.JSONB) error {
	return database.WithTransaction(r.db.WithContext(ctx), func(tx *gorm.DB) error {
		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND payment_status = ?", id, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"payment_status":         models.PaymentStatusCompleted,
				"status":                 models.TransactionStatusCompleted,
				"gateway_transaction_id": gatewayTxID,
				"raw_notification":       raw,
				"updated_at":             time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete transaction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrTransactionFinalized
		}

		var txn models.Transaction
		if err := tx.First(&txn, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to reload transaction: %w", err)
		}

		// Top-ups credit the received amount in the same database transaction
		// as the status flip; partial application is impossible.
		if txn.Kind == models.TransactionKindTopup {
			res := tx.Model(&models.User{}).
				Where("id = ?", txn.UserID).
				Update("balance", gorm.Expr("balance + ?", amount))
			if res.Error != nil {
				return fmt.Errorf("failed to credit balance: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("balance credit matched no user %s", txn.UserID)
			}
		}

		return nil
	})
}

func (r *TransactionRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND payment_status NOT IN ?", id,
			[]models.PaymentStatus{models.PaymentStatusCompleted, models.PaymentStatusCancelled}).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusCancelled,
			"status":         models.TransactionStatusCancelled,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to cancel transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrTransactionFinalized
	}
	return nil
}
