// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction records a purchase or top-up intent and its lifecycle.
// Rows are never physically deleted; completed/failed/cancelled are terminal.
type Transaction struct {
	BaseModel
	UserID        uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	Kind          TransactionKind `json:"kind" gorm:"type:varchar(30);not null;index"`
	TargetRef     *uuid.UUID      `json:"target_ref" gorm:"type:uuid;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Status        TransactionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	PaymentMethod PaymentMethod   `json:"payment_method" gorm:"type:varchar(20)"`

	// Gateway reconciliation fields. GatewayReference is the short code the
	// payer embeds in the transfer memo; it is derived from the transaction id
	// and indexed so inbound notifications match against it directly.
	// GatewayTxID is the external settlement id and is set exactly when
	// PaymentStatus becomes completed.
	PaymentStatus   PaymentStatus `json:"payment_status" gorm:"type:varchar(20);default:'pending';index"`
	GatewayReference string       `json:"gateway_reference" gorm:"size:50;index"`
	GatewayTxID      string       `json:"gateway_transaction_id" gorm:"column:gateway_transaction_id;size:255"`
	RawNotification  JSONB        `json:"raw_notification,omitempty" gorm:"type:jsonb"`
	QRCodeURL        string       `json:"qr_code_url" gorm:"type:text"`
	ExpiresAt        *time.Time   `json:"expires_at"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
