// internal/models/document.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Document struct {
	BaseModel
	Code        string          `json:"code" gorm:"uniqueIndex;size:50;not null"`
	Title       string          `json:"title" gorm:"size:255;not null"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Tags        pq.StringArray  `json:"tags" gorm:"type:text[]"`
	Status      DocumentStatus  `json:"status" gorm:"type:varchar(20);default:'published';index"`
	Downloads   int64           `json:"downloads" gorm:"default:0"`
}

type DocumentPackage struct {
	BaseModel
	Name        string          `json:"name" gorm:"size:255;not null"`
	Description string          `json:"description" gorm:"type:text"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`

	// Relationships
	Documents []PackageDocument `json:"documents,omitempty" gorm:"foreignKey:PackageID"`
}

// Join table between packages and the documents they bundle.
type PackageDocument struct {
	BaseModel
	PackageID  uuid.UUID `json:"package_id" gorm:"type:uuid;not null;index"`
	DocumentID uuid.UUID `json:"document_id" gorm:"type:uuid;not null;index"`

	Document *Document `json:"document,omitempty" gorm:"foreignKey:DocumentID"`
}
