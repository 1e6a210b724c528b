// internal/services/ports.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/docmarket/backend/internal/models"
)

// TransactionStore is the persistence boundary the payment service mutates
// transactions through. Implementations must make CommitCompletion and
// Cancel atomic compare-and-set operations so concurrent completion paths
// (webhook vs. poller vs. cancellation) resolve to exactly one winner.
type TransactionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Transaction, error)

	// FindByReference returns the most recent gateway transaction carrying
	// the given reference code, regardless of state.
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)

	// FindByGatewayTxID looks a transaction up by the external settlement id,
	// the idempotency key for webhook redelivery.
	FindByGatewayTxID(ctx context.Context, gatewayTxID string) (*models.Transaction, error)

	// FindPendingGateway returns an open gateway payment for the same
	// user/kind/target so repeated create calls reuse it.
	FindPendingGateway(ctx context.Context, userID uuid.UUID, kind models.TransactionKind, targetRef *uuid.UUID) (*models.Transaction, error)

	HasCompletedPurchase(ctx context.Context, userID uuid.UUID, kind models.TransactionKind, targetRef uuid.UUID) (bool, error)

	Create(ctx context.Context, txn *models.Transaction) error

	SavePaymentRequest(ctx context.Context, id uuid.UUID, reference, qrURL string, expiresAt time.Time) error

	// CommitCompletion marks a still-pending transaction completed, records
	// the settlement id and raw payload, and credits the user balance for
	// top-ups, all in one database transaction. Returns
	// apperrors.ErrTransactionFinalized when the row is no longer pending.
	CommitCompletion(ctx context.Context, id uuid.UUID, gatewayTxID string, amount decimal.Decimal, raw models.JSONB) error

	// Cancel moves a not-yet-completed transaction to cancelled. Returns
	// apperrors.ErrTransactionFinalized when a completion won the race.
	Cancel(ctx context.Context, id uuid.UUID) error
}

// CatalogStore resolves purchasable items. Catalog management itself lives
// outside this service; only price lookups are needed here.
type CatalogStore interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error)
	GetPackage(ctx context.Context, id uuid.UUID) (*models.DocumentPackage, error)
}

// GatewayTransaction is one settled entry from the gateway's listing API.
type GatewayTransaction struct {
	ID       string
	Content  string
	AmountIn decimal.Decimal
}

// GatewayLister is the outbound gateway API consumed by the status poller.
type GatewayLister interface {
	ListTransactions(ctx context.Context, limit int) ([]GatewayTransaction, error)
}
