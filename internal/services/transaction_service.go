// internal/services/transaction_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/docmarket/backend/internal/apperrors"
	"github.com/docmarket/backend/internal/database"
	"github.com/docmarket/backend/internal/models"
	"github.com/docmarket/backend/internal/utils"
)

// TransactionService handles balance-funded purchases and transaction
// history. Gateway payments live in PaymentService.
type TransactionService struct {
	db *gorm.DB
}

func NewTransactionService(db *gorm.DB) *TransactionService {
	return &TransactionService{db: db}
}

// PurchaseDocument buys a document with the user's balance. The deduction
// and the completed transaction commit as one unit.
func (s *TransactionService) PurchaseDocument(userID, documentID uuid.UUID) (*models.Transaction, error) {
	var txn *models.Transaction

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var doc models.Document
		if err := tx.First(&doc, "id = ?", documentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrItemNotFound
			}
			return fmt.Errorf("failed to fetch document: %w", err)
		}

		var count int64
		err := tx.Model(&models.Transaction{}).
			Where("user_id = ? AND kind = ? AND target_ref = ? AND status = ?",
				userID, models.TransactionKindDocument, documentID, models.TransactionStatusCompleted).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to count purchases: %w", err)
		}
		if count > 0 {
			return apperrors.ErrAlreadyPurchased
		}

		// Row lock so two concurrent purchases cannot both pass the balance
		// check.
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("failed to fetch user: %w", err)
		}

		if user.Balance.LessThan(doc.Price) {
			return apperrors.ErrInsufficientBalance
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("balance", gorm.Expr("balance - ?", doc.Price)).Error; err != nil {
			return fmt.Errorf("failed to deduct balance: %w", err)
		}

		txn = &models.Transaction{
			UserID:        userID,
			Kind:          models.TransactionKindDocument,
			TargetRef:     &doc.ID,
			Amount:        doc.Price,
			Status:        models.TransactionStatusCompleted,
			PaymentMethod: models.PaymentMethodBalance,
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

// PurchasePackage buys a document package with the user's balance.
func (s *TransactionService) PurchasePackage(userID, packageID uuid.UUID) (*models.Transaction, error) {
	var txn *models.Transaction

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var pkg models.DocumentPackage
		if err := tx.First(&pkg, "id = ?", packageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrItemNotFound
			}
			return fmt.Errorf("failed to fetch package: %w", err)
		}

		var count int64
		err := tx.Model(&models.Transaction{}).
			Where("user_id = ? AND kind = ? AND target_ref = ? AND status = ?",
				userID, models.TransactionKindPackage, packageID, models.TransactionStatusCompleted).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to count purchases: %w", err)
		}
		if count > 0 {
			return apperrors.ErrAlreadyPurchased
		}

		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&user, "id = ?", userID).Error; err != nil {
			return fmt.Errorf("failed to fetch user: %w", err)
		}

		if user.Balance.LessThan(pkg.Price) {
			return apperrors.ErrInsufficientBalance
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("balance", gorm.Expr("balance - ?", pkg.Price)).Error; err != nil {
			return fmt.Errorf("failed to deduct balance: %w", err)
		}

		txn = &models.Transaction{
			UserID:        userID,
			Kind:          models.TransactionKindPackage,
			TargetRef:     &pkg.ID,
			Amount:        pkg.Price,
			Status:        models.TransactionStatusCompleted,
			PaymentMethod: models.PaymentMethodBalance,
		}
		if err := tx.Create(txn).Error; err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return txn, nil
}

// HasPurchasedDocument reports whether the user owns the document, either
// directly or through a purchased package that bundles it.
func (s *TransactionService) HasPurchasedDocument(userID, documentID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.Model(&models.Transaction{}).
		Where("user_id = ? AND kind = ? AND target_ref = ? AND status = ?",
			userID, models.TransactionKindDocument, documentID, models.TransactionStatusCompleted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count purchases: %w", err)
	}
	if count > 0 {
		return true, nil
	}

	err = s.db.Model(&models.Transaction{}).
		Joins("JOIN package_documents ON package_documents.package_id = transactions.target_ref").
		Where("transactions.user_id = ? AND transactions.kind = ? AND transactions.status = ? AND package_documents.document_id = ?",
			userID, models.TransactionKindPackage, models.TransactionStatusCompleted, documentID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count package purchases: %w", err)
	}

	return count > 0, nil
}

// GetAllTransactions lists transactions across all users, optionally
// filtered by payment status. Used by the admin reconciliation view.
func (s *TransactionService) GetAllTransactions(paymentStatus string, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{})
	if paymentStatus != "" {
		query = query.Where("payment_status = ?", paymentStatus)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status", "payment_status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Preload("User").Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}

// GetUserTransactions returns the user's transaction history, newest first.
func (s *TransactionService) GetUserTransactions(userID uuid.UUID, params utils.PaginationParams) ([]models.Transaction, int64, error) {
	query := s.db.Model(&models.Transaction{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return transactions, total, nil
}
