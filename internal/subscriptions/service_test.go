package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mvillanueva/gymflow-backend/internal/billing"
	"github.com/mvillanueva/gymflow-backend/internal/gateway"
	"github.com/mvillanueva/gymflow-backend/internal/payments"
	"github.com/mvillanueva/gymflow-backend/pkg/db/models"
	"github.com/mvillanueva/gymflow-backend/pkg/enums"
	pkgerrors "github.com/mvillanueva/gymflow-backend/pkg/errors"
)

type stubStripe struct {
	createResult *gateway.CreateSubscriptionResult
	createErr    error
	cancelErr    error
	canceled     []string

	subscription    *gateway.StripeSubscription
	subscriptionErr error
	invoice         *gateway.StripeInvoice
	invoiceErr      error
	paymentIntent   *gateway.StripeIntent
	paymentErr      error
	setupIntent     *gateway.StripeIntent
	setupErr        error
}

func (s *stubStripe) CreateSubscription(ctx context.Context, params *gateway.CreateSubscriptionParams) (*gateway.CreateSubscriptionResult, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.createResult, nil
}

func (s *stubStripe) CancelSubscription(ctx context.Context, id string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.canceled = append(s.canceled, id)
	return nil
}

func (s *stubStripe) GetSubscription(ctx context.Context, id string) (*gateway.StripeSubscription, error) {
	if s.subscriptionErr != nil {
		return nil, s.subscriptionErr
	}
	return s.subscription, nil
}

func (s *stubStripe) GetInvoice(ctx context.Context, id string) (*gateway.StripeInvoice, error) {
	if s.invoiceErr != nil {
		return nil, s.invoiceErr
	}
	return s.invoice, nil
}

func (s *stubStripe) GetPaymentIntent(ctx context.Context, id string) (*gateway.StripeIntent, error) {
	if s.paymentErr != nil {
		return nil, s.paymentErr
	}
	return s.paymentIntent, nil
}

func (s *stubStripe) GetSetupIntent(ctx context.Context, id string) (*gateway.StripeIntent, error) {
	if s.setupErr != nil {
		return nil, s.setupErr
	}
	return s.setupIntent, nil
}

type stubRazorpay struct {
	createResult *gateway.CreateSubscriptionResult
	createErr    error
	cancelErr    error
	canceled     []string
	payment      *gateway.RazorpayPayment
	paymentErr   error
}

func (s *stubRazorpay) CreateSubscription(ctx context.Context, params *gateway.CreateSubscriptionParams) (*gateway.CreateSubscriptionResult, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.createResult, nil
}

func (s *stubRazorpay) CancelSubscription(ctx context.Context, id string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.canceled = append(s.canceled, id)
	return nil
}

func (s *stubRazorpay) FetchPayment(ctx context.Context, id string) (*gateway.RazorpayPayment, error) {
	if s.paymentErr != nil {
		return nil, s.paymentErr
	}
	return s.payment, nil
}

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	// One connection keeps every statement on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	statements := []string{`
CREATE TABLE IF NOT EXISTS plans (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'usd',
  trial_days INTEGER NOT NULL DEFAULT 0,
  duration_type TEXT NOT NULL,
  stripe_price_id TEXT,
  razorpay_plan_id TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  plan_id TEXT NOT NULL,
  gateway TEXT NOT NULL,
  gateway_customer_id TEXT,
  gateway_subscription_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  trial_end_at DATETIME,
  next_billing_at DATETIME,
  started_at DATETIME,
  canceled_at DATETIME,
  metadata TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  subscription_id TEXT,
  amount NUMERIC NOT NULL,
  discount_amount NUMERIC NOT NULL DEFAULT 0,
  final_amount NUMERIC NOT NULL,
  payment_method TEXT NOT NULL DEFAULT 'other',
  transaction_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_details TEXT,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_dedup ON payments (subscription_id, transaction_id);`}

	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type serviceFixture struct {
	db       *gorm.DB
	repo     billing.Repository
	stripe   *stubStripe
	razorpay *stubRazorpay
	service  Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db := setupServiceTestDB(t)
	repo := billing.NewRepository(db)
	stripe := &stubStripe{}
	razorpay := &stubRazorpay{}
	ledger := payments.NewLedger(repo, nil, nil)

	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Stripe:   stripe,
		Razorpay: razorpay,
		Ledger:   ledger,
	})
	require.NoError(t, err)

	return &serviceFixture{db: db, repo: repo, stripe: stripe, razorpay: razorpay, service: svc}
}

func (f *serviceFixture) seedPlan(t *testing.T, mutate func(*models.Plan)) *models.Plan {
	t.Helper()
	stripePrice := "price_123"
	razorpayPlan := "plan_raz_123"
	plan := &models.Plan{
		ID:             uuid.New(),
		Name:           "Monthly",
		Price:          decimal.RequireFromString("29.99"),
		Currency:       "usd",
		DurationType:   enums.PlanDurationMonthly,
		StripePriceID:  &stripePrice,
		RazorpayPlanID: &razorpayPlan,
		Active:         true,
	}
	if mutate != nil {
		mutate(plan)
	}
	require.NoError(t, f.db.Create(plan).Error)
	return plan
}

func (f *serviceFixture) seedSubscription(t *testing.T, userID uuid.UUID, plan *models.Plan, mutate func(*models.Subscription)) *models.Subscription {
	t.Helper()
	gatewaySubID := "sub_stripe_1"
	sub := &models.Subscription{
		ID:                    uuid.New(),
		UserID:                userID,
		PlanID:                plan.ID,
		Gateway:               enums.GatewayStripe,
		GatewaySubscriptionID: &gatewaySubID,
		Status:                enums.SubscriptionStatusPending,
	}
	if mutate != nil {
		mutate(sub)
	}
	require.NoError(t, f.db.Create(sub).Error)
	return sub
}

func TestServiceCreateStripeCheckout(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	f.stripe.createResult = &gateway.CreateSubscriptionResult{
		GatewaySubscriptionID: "sub_new_1",
		GatewayCustomerID:     "cus_new_1",
		ClientSecret:          "pi_1_secret_abc",
		Status:                "incomplete",
	}

	result, err := f.service.Create(ctx, CreateInput{
		UserID:  uuid.New(),
		PlanID:  plan.ID,
		Gateway: enums.GatewayStripe,
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret_abc", result.ClientSecret)
	assert.Equal(t, enums.SubscriptionStatusPending, result.Subscription.Status)
	require.NotNil(t, result.Subscription.GatewaySubscriptionID)
	assert.Equal(t, "sub_new_1", *result.Subscription.GatewaySubscriptionID)

	stored, err := f.repo.FindSubscriptionByID(ctx, result.Subscription.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusPending, stored.Status)
}

func TestServiceCreateRazorpayCheckout(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	f.razorpay.createResult = &gateway.CreateSubscriptionResult{
		GatewaySubscriptionID: "sub_raz_1",
		ShortURL:              "https://rzp.io/i/abc",
		Status:                "created",
	}

	result, err := f.service.Create(ctx, CreateInput{
		UserID:  uuid.New(),
		PlanID:  plan.ID,
		Gateway: enums.GatewayRazorpay,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://rzp.io/i/abc", result.ShortURL)
	assert.Empty(t, result.ClientSecret)
}

func TestServiceCreateRejectsSamePlan(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := uuid.New()
	f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.Status = enums.SubscriptionStatusActive
	})

	_, err := f.service.Create(ctx, CreateInput{UserID: userID, PlanID: plan.ID, Gateway: enums.GatewayStripe})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestServiceCreateSupersedesAbandonedCheckout(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := uuid.New()
	abandoned := f.seedSubscription(t, userID, plan, nil)

	f.stripe.createResult = &gateway.CreateSubscriptionResult{
		GatewaySubscriptionID: "sub_new_3",
		ClientSecret:          "pi_3_secret_ghi",
	}

	result, err := f.service.Create(ctx, CreateInput{UserID: userID, PlanID: plan.ID, Gateway: enums.GatewayStripe})
	require.NoError(t, err)
	assert.NotEqual(t, abandoned.ID, result.Subscription.ID)
	assert.Equal(t, []string{"sub_stripe_1"}, f.stripe.canceled)

	reloaded, err := f.repo.FindSubscriptionByID(ctx, abandoned.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsCanceled())
}

func TestServiceCreatePlanChangeCancelsOldSubscription(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	oldPlan := f.seedPlan(t, nil)
	newPlan := f.seedPlan(t, func(p *models.Plan) {
		p.Name = "Yearly"
		p.Price = decimal.RequireFromString("299.00")
		p.DurationType = enums.PlanDurationYearly
	})

	userID := uuid.New()
	old := f.seedSubscription(t, userID, oldPlan, func(s *models.Subscription) {
		s.Status = enums.SubscriptionStatusActive
	})

	f.stripe.createResult = &gateway.CreateSubscriptionResult{
		GatewaySubscriptionID: "sub_new_2",
		ClientSecret:          "pi_2_secret_def",
	}

	result, err := f.service.Create(ctx, CreateInput{UserID: userID, PlanID: newPlan.ID, Gateway: enums.GatewayStripe})
	require.NoError(t, err)
	assert.Equal(t, newPlan.ID, result.Subscription.PlanID)
	assert.Equal(t, []string{"sub_stripe_1"}, f.stripe.canceled)

	reloaded, err := f.repo.FindSubscriptionByID(ctx, old.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsCanceled())
}

func TestServiceCreateUnknownPlan(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Create(context.Background(), CreateInput{
		UserID:  uuid.New(),
		PlanID:  uuid.New(),
		Gateway: enums.GatewayStripe,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestServiceCreateGatewayFailureLeavesNoRow(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	f.stripe.createErr = errors.New("stripe is down")

	userID := uuid.New()
	_, err := f.service.Create(ctx, CreateInput{UserID: userID, PlanID: plan.ID, Gateway: enums.GatewayStripe})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())

	subs, err := f.repo.ListSubscriptionsByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestServiceCancelGatewayFirst(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := uuid.New()
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.Status = enums.SubscriptionStatusActive
	})

	canceled, err := f.service.Cancel(ctx, userID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.CanceledAt)
	assert.Equal(t, []string{"sub_stripe_1"}, f.stripe.canceled)
}

func TestServiceCancelGatewayFailureKeepsLocalState(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := uuid.New()
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.Status = enums.SubscriptionStatusActive
	})

	f.stripe.cancelErr = errors.New("stripe is down")

	_, err := f.service.Cancel(ctx, userID, sub.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDependency, typed.Code())

	reloaded, err := f.repo.FindSubscriptionByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, reloaded.Status)
	assert.Nil(t, reloaded.CanceledAt)
}

func TestServiceCancelAlreadyCanceled(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := uuid.New()
	now := time.Now().UTC()
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.Status = enums.SubscriptionStatusCanceled
		s.CanceledAt = &now
	})

	_, err := f.service.Cancel(ctx, userID, sub.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestServiceCancelOwnership(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	sub := f.seedSubscription(t, uuid.New(), plan, nil)

	_, err := f.service.Cancel(ctx, uuid.New(), sub.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeForbidden, typed.Code())
}

func TestServiceListPlansOnlyActive(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.seedPlan(t, nil)
	f.seedPlan(t, func(p *models.Plan) {
		p.Name = "Legacy"
		p.Active = false
	})

	plans, err := f.service.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Monthly", plans[0].Name)
}
