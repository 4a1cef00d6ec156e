package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvillanueva/gymflow-backend/pkg/db/models"
)

// Repository defines persistence operations for plans, subscriptions and
// payments. Lookups that model an optional row return (nil, nil) when the
// row does not exist.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	FindActiveSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)

	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindPaymentByTransactionID(ctx context.Context, subscriptionID uuid.UUID, transactionID string) (*models.Payment, error)
	ListPaymentsBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.Payment, error)
	CountPaymentsBySubscription(ctx context.Context, subscriptionID uuid.UUID) (int64, error)

	FindPlanByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	ListActivePlans(ctx context.Context) ([]models.Plan, error)
}
