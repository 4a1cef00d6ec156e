package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvillanueva/gymflow-backend/internal/billing"
	"github.com/mvillanueva/gymflow-backend/internal/gateway"
	"github.com/mvillanueva/gymflow-backend/internal/payments"
	"github.com/mvillanueva/gymflow-backend/pkg/db/models"
	"github.com/mvillanueva/gymflow-backend/pkg/enums"
	pkgerrors "github.com/mvillanueva/gymflow-backend/pkg/errors"
	"github.com/mvillanueva/gymflow-backend/pkg/logger"
	"github.com/mvillanueva/gymflow-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput carries what checkout needs to open a subscription.
type CreateInput struct {
	UserID        uuid.UUID
	PlanID        uuid.UUID
	Gateway       enums.Gateway
	CustomerEmail string
	CustomerName  string
}

// CreateResult is the checkout response. Exactly one of ClientSecret
// (Stripe) or ShortURL (Razorpay) is populated.
type CreateResult struct {
	Subscription *models.Subscription
	Plan         *models.Plan
	ClientSecret string
	ShortURL     string
}

// VerifyArtifacts identifies the gateway objects a confirm call may point at.
// All fields are optional; verification inspects whatever it is given plus
// the stored gateway subscription.
type VerifyArtifacts struct {
	PaymentIntentID   string
	SetupIntentID     string
	RazorpayPaymentID string
}

// VerifyResult reports the post-verification subscription state.
type VerifyResult struct {
	Subscription *models.Subscription
	Outcome      enums.RefreshOutcome
}

// Service orchestrates the subscription lifecycle against both gateways.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	Verify(ctx context.Context, userID, subscriptionID uuid.UUID, artifacts VerifyArtifacts) (*VerifyResult, error)
	Refresh(ctx context.Context, userID, subscriptionID uuid.UUID) (*VerifyResult, error)
	Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error)
	ListPayments(ctx context.Context, userID, subscriptionID uuid.UUID) ([]models.Payment, error)
	ListPlans(ctx context.Context) ([]models.Plan, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo     billing.Repository
	Tx       txRunner
	Stripe   gateway.StripeClient
	Razorpay gateway.RazorpayClient
	Ledger   *payments.Ledger
	Guard    *VerifyGuard
	Logger   *logger.Logger
	Metrics  *metrics.ReconciliationMetrics
}

type service struct {
	repo     billing.Repository
	tx       txRunner
	stripe   gateway.StripeClient
	razorpay gateway.RazorpayClient
	ledger   *payments.Ledger
	guard    *VerifyGuard
	logger   *logger.Logger
	metrics  *metrics.ReconciliationMetrics
}

// NewService builds the subscription service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if params.Stripe == nil && params.Razorpay == nil {
		return nil, errors.New("at least one gateway client is required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		stripe:   params.Stripe,
		razorpay: params.Razorpay,
		ledger:   params.Ledger,
		guard:    params.Guard,
		logger:   params.Logger,
		metrics:  params.Metrics,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	plan, err := s.repo.FindPlanByID(ctx, input.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if !plan.Active {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "plan is no longer offered")
	}

	existing, err := s.repo.FindActiveSubscriptionByUser(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load current subscription")
	}
	if existing != nil {
		// A pending row is an unfinished checkout, not a live membership:
		// re-choosing the same plan supersedes it. A confirmed subscription
		// on the same plan is a real conflict. Any other plan is an upgrade,
		// and the old subscription closes before the new one opens so the
		// member never pays for two at once.
		if existing.PlanID == plan.ID && existing.Status != enums.SubscriptionStatusPending {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "already subscribed to this plan")
		}
		if _, err := s.cancel(ctx, existing); err != nil {
			return nil, err
		}
	}

	result, err := s.createAtGateway(ctx, input, plan)
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		ID:       uuid.New(),
		UserID:   input.UserID,
		PlanID:   plan.ID,
		Gateway:  input.Gateway,
		Status:   enums.SubscriptionStatusPending,
		Metadata: result.Raw,
	}
	if result.GatewaySubscriptionID != "" {
		sub.GatewaySubscriptionID = &result.GatewaySubscriptionID
	}
	if result.GatewayCustomerID != "" {
		sub.GatewayCustomerID = &result.GatewayCustomerID
	}

	if _, err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription")
	}

	if s.logger != nil {
		lctx := s.logger.WithSubscriptionID(ctx, sub.ID.String())
		lctx = s.logger.WithGateway(lctx, input.Gateway.String())
		s.logger.Info(lctx, "subscription checkout created")
	}

	return &CreateResult{
		Subscription: sub,
		Plan:         plan,
		ClientSecret: result.ClientSecret,
		ShortURL:     result.ShortURL,
	}, nil
}

func (s *service) createAtGateway(ctx context.Context, input CreateInput, plan *models.Plan) (*gateway.CreateSubscriptionResult, error) {
	metadata := map[string]string{
		"user_id": input.UserID.String(),
		"plan_id": plan.ID.String(),
	}

	switch input.Gateway {
	case enums.GatewayStripe:
		if s.stripe == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe is not configured")
		}
		if plan.StripePriceID == nil || *plan.StripePriceID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "plan has no stripe price")
		}
		result, err := s.stripe.CreateSubscription(ctx, &gateway.CreateSubscriptionParams{
			PriceID:       *plan.StripePriceID,
			TrialDays:     plan.TrialDays,
			CustomerEmail: input.CustomerEmail,
			CustomerName:  input.CustomerName,
			Metadata:      metadata,
		})
		if err != nil {
			s.metrics.IncGatewayError(enums.GatewayStripe.String(), "create_subscription")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stripe create subscription")
		}
		return result, nil

	case enums.GatewayRazorpay:
		if s.razorpay == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay is not configured")
		}
		if plan.RazorpayPlanID == nil || *plan.RazorpayPlanID == "" {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "plan has no razorpay plan")
		}
		result, err := s.razorpay.CreateSubscription(ctx, &gateway.CreateSubscriptionParams{
			PlanID:     *plan.RazorpayPlanID,
			TotalCount: billingCycles(plan),
			Metadata:   metadata,
		})
		if err != nil {
			s.metrics.IncGatewayError(enums.GatewayRazorpay.String(), "create_subscription")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "razorpay create subscription")
		}
		return result, nil

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported gateway %q", input.Gateway))
	}
}

// billingCycles caps how many renewals a Razorpay subscription schedules up
// front. Razorpay requires the count at creation; yearly plans get a decade,
// monthly plans a year.
func billingCycles(plan *models.Plan) int {
	if plan.DurationType == enums.PlanDurationYearly {
		return 10
	}
	return 12
}

func (s *service) Cancel(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.ownedSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, sub)
}

// cancel tears the subscription down gateway-first. A gateway failure aborts
// before any local write so the ledger never claims a cancellation the
// gateway will keep charging for.
func (s *service) cancel(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	if sub.IsCanceled() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already canceled")
	}

	if sub.IsGatewayManaged() {
		var err error
		switch sub.Gateway {
		case enums.GatewayStripe:
			if s.stripe != nil {
				err = s.stripe.CancelSubscription(ctx, *sub.GatewaySubscriptionID)
			}
		case enums.GatewayRazorpay:
			if s.razorpay != nil {
				err = s.razorpay.CancelSubscription(ctx, *sub.GatewaySubscriptionID)
			}
		}
		if err != nil {
			s.metrics.IncGatewayError(sub.Gateway.String(), "cancel_subscription")
			if s.logger != nil {
				s.logger.Error(ctx, "gateway cancellation failed", err)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway cancellation failed")
		}
	}

	now := time.Now().UTC()
	sub.Status = enums.SubscriptionStatusCanceled
	sub.CanceledAt = &now
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist cancellation")
	}

	if s.logger != nil {
		lctx := s.logger.WithSubscriptionID(ctx, sub.ID.String())
		s.logger.Info(lctx, "subscription canceled")
	}
	return sub, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	subs, err := s.repo.ListSubscriptionsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list subscriptions")
	}
	return subs, nil
}

func (s *service) ListPayments(ctx context.Context, userID, subscriptionID uuid.UUID) ([]models.Payment, error) {
	if _, err := s.ownedSubscription(ctx, userID, subscriptionID); err != nil {
		return nil, err
	}
	list, err := s.repo.ListPaymentsBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payments")
	}
	return list, nil
}

func (s *service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	plans, err := s.repo.ListActivePlans(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans")
	}
	return plans, nil
}

func (s *service) ownedSubscription(ctx context.Context, userID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindSubscriptionByID(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if sub.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "subscription belongs to another member")
	}
	return sub, nil
}
