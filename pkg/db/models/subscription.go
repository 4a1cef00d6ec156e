package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mvillanueva/gymflow-backend/pkg/enums"
)

// Subscription persists the gateway-backed membership lifecycle per member.
type Subscription struct {
	ID                    uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	PlanID                uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Gateway               enums.Gateway            `gorm:"column:gateway;not null"`
	GatewayCustomerID     *string                  `gorm:"column:gateway_customer_id"`
	GatewaySubscriptionID *string                  `gorm:"column:gateway_subscription_id;index"`
	Status                enums.SubscriptionStatus `gorm:"column:status;not null;default:'pending'"`
	TrialEndAt            *time.Time               `gorm:"column:trial_end_at"`
	NextBillingAt         *time.Time               `gorm:"column:next_billing_at"`
	StartedAt             *time.Time               `gorm:"column:started_at"`
	CanceledAt            *time.Time               `gorm:"column:canceled_at"`
	Metadata              json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	CreatedAt             time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// IsCanceled treats a populated canceled_at as cancellation even when the
// status column disagrees. That asymmetry is inherited behavior: access grants
// depend on it, so it stays until product says otherwise.
func (s *Subscription) IsCanceled() bool {
	if s == nil {
		return false
	}
	return s.Status == enums.SubscriptionStatusCanceled || s.CanceledAt != nil
}

// IsGatewayManaged reports whether the gateway holds a subscription object we
// can query for this row.
func (s *Subscription) IsGatewayManaged() bool {
	return s != nil && s.GatewaySubscriptionID != nil && *s.GatewaySubscriptionID != ""
}

// HasAccess reports whether the member is entitled to enter at the given
// moment. A canceled subscription keeps access until the billing window it
// already paid for runs out.
func (s *Subscription) HasAccess(now time.Time) bool {
	if s == nil {
		return false
	}
	switch s.Status {
	case enums.SubscriptionStatusTrialing:
		if s.TrialEndAt != nil {
			return s.TrialEndAt.After(now)
		}
		return s.NextBillingAt == nil || s.NextBillingAt.After(now)
	case enums.SubscriptionStatusActive:
		return s.NextBillingAt == nil || s.NextBillingAt.After(now)
	case enums.SubscriptionStatusCanceled:
		return s.NextBillingAt != nil && s.NextBillingAt.After(now)
	default:
		return false
	}
}
