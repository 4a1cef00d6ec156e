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

	"github.com/mvillanueva/gymflow-backend/internal/gateway"
	"github.com/mvillanueva/gymflow-backend/pkg/db/models"
	"github.com/mvillanueva/gymflow-backend/pkg/enums"
)

func newUser() uuid.UUID {
	return uuid.New()
}

func TestVerifyStripeSubscriptionActivates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, nil)

	periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
	f.stripe.subscription = &gateway.StripeSubscription{
		ID:               "sub_stripe_1",
		Status:           "active",
		CurrentPeriodEnd: periodEnd,
		StartDate:        time.Now().Unix(),
		LatestInvoiceID:  "in_1",
		Invoice: &gateway.StripeInvoice{
			ID:              "in_1",
			Paid:            true,
			AmountPaid:      2999,
			PaymentIntentID: "pi_1",
			Currency:        "usd",
		},
	}

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{})
	require.NoError(t, err)
	assert.Equal(t, enums.RefreshOutcomeUpdated, result.Outcome)
	assert.Equal(t, enums.SubscriptionStatusActive, result.Subscription.Status)
	require.NotNil(t, result.Subscription.NextBillingAt)
	require.NotNil(t, result.Subscription.StartedAt)

	payment, err := f.repo.FindPaymentByTransactionID(ctx, sub.ID, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, enums.PaymentStatusCompleted, payment.Status)
}

func TestVerifyStripePendingWithPaidInvoiceActivates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, nil)

	// Gateway still says incomplete but the invoice settled.
	f.stripe.subscription = &gateway.StripeSubscription{
		ID:     "sub_stripe_1",
		Status: "incomplete",
		Invoice: &gateway.StripeInvoice{
			ID:              "in_2",
			Paid:            true,
			AmountPaid:      2999,
			PaymentIntentID: "pi_2",
		},
	}

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{})
	require.NoError(t, err)
	assert.Equal(t, enums.RefreshOutcomeUpdated, result.Outcome)
	assert.Equal(t, enums.SubscriptionStatusActive, result.Subscription.Status)
}

func TestVerifyTrialPlanLandsInTrialing(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, func(p *models.Plan) { p.TrialDays = 14 })
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, nil)

	trialEnd := time.Now().Add(14 * 24 * time.Hour).Unix()
	f.stripe.subscription = &gateway.StripeSubscription{
		ID:       "sub_stripe_1",
		Status:   "trialing",
		TrialEnd: trialEnd,
	}

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{})
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusTrialing, result.Subscription.Status)
	require.NotNil(t, result.Subscription.TrialEndAt)
}

func TestVerifyUnpaidInvoiceRecordsNothingUntilPaid(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, nil)

	f.stripe.subscription = &gateway.StripeSubscription{
		ID:     "sub_stripe_1",
		Status: "incomplete",
		Invoice: &gateway.StripeInvoice{
			ID:              "in_9",
			Paid:            false,
			PaymentIntentID: "pi_9",
		},
	}

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{})
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusPending, result.Subscription.Status)

	payment, err := f.repo.FindPaymentByTransactionID(ctx, sub.ID, "pi_9")
	require.NoError(t, err)
	assert.Nil(t, payment)

	// The customer completes payment; the dedup key is still free, so the
	// settled charge lands with its real amount.
	f.stripe.subscription.Status = "active"
	f.stripe.subscription.Invoice.Paid = true
	f.stripe.subscription.Invoice.AmountPaid = 2999

	result, err = f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{})
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, result.Subscription.Status)

	payment, err = f.repo.FindPaymentByTransactionID(ctx, sub.ID, "pi_9")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	assert.True(t, payment.Amount.Equal(decimal.RequireFromString("29.99")))
	require.NotNil(t, payment.PaidAt)
}

func TestVerifyGatewayErrorKeepsLocalState(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.Status = enums.SubscriptionStatusActive
	})

	f.stripe.subscriptionErr = errors.New("stripe is down")

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{})
	require.NoError(t, err)
	assert.Equal(t, enums.RefreshOutcomePending, result.Outcome)
	assert.Equal(t, enums.SubscriptionStatusActive, result.Subscription.Status)
}

func TestVerifyLaggingGatewayNeverDowngrades(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.Status = enums.SubscriptionStatusActive
		now := time.Now().UTC()
		s.StartedAt = &now
	})

	f.stripe.subscription = &gateway.StripeSubscription{
		ID:     "sub_stripe_1",
		Status: "incomplete",
	}

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{})
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, result.Subscription.Status)
}

func TestVerifyPaymentIntentActivates(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.GatewaySubscriptionID = nil
	})

	f.stripe.paymentIntent = &gateway.StripeIntent{
		ID:                 "pi_3",
		Kind:               gateway.IntentKindPayment,
		Status:             "succeeded",
		Amount:             2999,
		AmountReceived:     2999,
		PaymentMethodTypes: []string{"card"},
	}

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{PaymentIntentID: "pi_3"})
	require.NoError(t, err)
	assert.Equal(t, enums.RefreshOutcomeUpdated, result.Outcome)
	assert.Equal(t, enums.SubscriptionStatusActive, result.Subscription.Status)
	require.NotNil(t, result.Subscription.StartedAt)

	payment, err := f.repo.FindPaymentByTransactionID(ctx, sub.ID, "pi_3")
	require.NoError(t, err)
	require.NotNil(t, payment)
}

func TestVerifySetupIntentStartsTrial(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, func(p *models.Plan) { p.TrialDays = 7 })
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.GatewaySubscriptionID = nil
	})

	f.stripe.setupIntent = &gateway.StripeIntent{
		ID:     "seti_2",
		Kind:   gateway.IntentKindSetup,
		Status: "succeeded",
	}

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{SetupIntentID: "seti_2"})
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusTrialing, result.Subscription.Status)
	require.NotNil(t, result.Subscription.TrialEndAt)
	assert.True(t, result.Subscription.TrialEndAt.After(time.Now()))
}

func TestVerifyRepeatedIntentDoesNotResetStartDate(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	started := time.Now().Add(-72 * time.Hour).UTC().Truncate(time.Second)
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.GatewaySubscriptionID = nil
		s.Status = enums.SubscriptionStatusActive
		s.StartedAt = &started
	})

	f.stripe.paymentIntent = &gateway.StripeIntent{
		ID:     "pi_4",
		Kind:   gateway.IntentKindPayment,
		Status: "succeeded",
		Amount: 2999,
	}

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{PaymentIntentID: "pi_4"})
	require.NoError(t, err)
	require.NotNil(t, result.Subscription.StartedAt)
	assert.True(t, result.Subscription.StartedAt.Equal(started))
}

func TestVerifyRazorpayCapturedPayment(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.Gateway = enums.GatewayRazorpay
		razSubID := "sub_raz_1"
		s.GatewaySubscriptionID = &razSubID
	})

	f.razorpay.payment = &gateway.RazorpayPayment{
		ID:       "pay_1",
		Status:   "captured",
		Amount:   299900,
		Method:   "upi",
		Currency: "INR",
	}

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{RazorpayPaymentID: "pay_1"})
	require.NoError(t, err)
	assert.Equal(t, enums.RefreshOutcomeUpdated, result.Outcome)
	assert.Equal(t, enums.SubscriptionStatusActive, result.Subscription.Status)

	payment, err := f.repo.FindPaymentByTransactionID(ctx, sub.ID, "pay_1")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, enums.PaymentMethodUPI, payment.Method)
}

func TestVerifyRazorpayFailedPaymentStaysPending(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.Gateway = enums.GatewayRazorpay
	})

	f.razorpay.payment = &gateway.RazorpayPayment{
		ID:     "pay_2",
		Status: "failed",
		Amount: 299900,
	}

	result, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{RazorpayPaymentID: "pay_2"})
	require.NoError(t, err)
	assert.Equal(t, enums.RefreshOutcomePending, result.Outcome)
	assert.Equal(t, enums.SubscriptionStatusPending, result.Subscription.Status)

	// No money moved, so the ledger stays empty.
	payment, err := f.repo.FindPaymentByTransactionID(ctx, sub.ID, "pay_2")
	require.NoError(t, err)
	assert.Nil(t, payment)
}

func TestRefreshStripeRereadsGateway(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, nil)

	f.stripe.subscription = &gateway.StripeSubscription{
		ID:     "sub_stripe_1",
		Status: "active",
	}

	result, err := f.service.Refresh(ctx, userID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RefreshOutcomeUpdated, result.Outcome)
	assert.Equal(t, enums.SubscriptionStatusActive, result.Subscription.Status)
}

func TestRefreshRazorpayUnsupported(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, func(s *models.Subscription) {
		s.Gateway = enums.GatewayRazorpay
	})

	result, err := f.service.Refresh(ctx, userID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.RefreshOutcomeUnsupported, result.Outcome)
	assert.Equal(t, enums.SubscriptionStatusPending, result.Subscription.Status)
}

func TestVerifyIdempotentAcrossCalls(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	plan := f.seedPlan(t, nil)
	userID := newUser()
	sub := f.seedSubscription(t, userID, plan, nil)

	f.stripe.subscription = &gateway.StripeSubscription{
		ID:     "sub_stripe_1",
		Status: "active",
		Invoice: &gateway.StripeInvoice{
			ID:              "in_5",
			Paid:            true,
			AmountPaid:      2999,
			PaymentIntentID: "pi_5",
		},
	}

	for i := 0; i < 3; i++ {
		_, err := f.service.Verify(ctx, userID, sub.ID, VerifyArtifacts{})
		require.NoError(t, err)
	}

	count, err := f.repo.CountPaymentsBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
