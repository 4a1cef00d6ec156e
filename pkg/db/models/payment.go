package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvillanueva/gymflow-backend/pkg/enums"
)

// Payment records a single monetary event reported by a gateway. Rows are
// append-only in practice and deduplicated by (subscription_id, transaction_id).
type Payment struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	SubscriptionID *uuid.UUID          `gorm:"column:subscription_id;type:uuid;uniqueIndex:idx_payments_dedup"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	FinalAmount    decimal.Decimal     `gorm:"column:final_amount;type:numeric(12,2);not null"`
	Method         enums.PaymentMethod `gorm:"column:payment_method;not null;default:'other'"`
	TransactionID  string              `gorm:"column:transaction_id;not null;uniqueIndex:idx_payments_dedup"`
	Status         enums.PaymentStatus `gorm:"column:status;not null;default:'pending'"`
	Details        json.RawMessage     `gorm:"column:payment_details;type:jsonb"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
