package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvillanueva/gymflow-backend/pkg/enums"
)

// Plan is the read-only pricing context reconciliation consults when deciding
// whether a freshly confirmed subscription lands in trialing or active.
type Plan struct {
	ID             uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string             `gorm:"column:name;not null"`
	Price          decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Currency       string             `gorm:"column:currency;not null;default:'usd'"`
	TrialDays      int                `gorm:"column:trial_days;not null;default:0"`
	DurationType   enums.PlanDuration `gorm:"column:duration_type;not null"`
	StripePriceID  *string            `gorm:"column:stripe_price_id"`
	RazorpayPlanID *string            `gorm:"column:razorpay_plan_id"`
	Active         bool               `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// HasTrial reports whether activation should start a trial window.
func (p *Plan) HasTrial() bool {
	if p == nil {
		return false
	}
	return p.TrialDays > 0 || p.DurationType == enums.PlanDurationTrial
}
