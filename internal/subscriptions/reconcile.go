package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mvillanueva/gymflow-backend/pkg/db/models"
	"github.com/mvillanueva/gymflow-backend/pkg/enums"
	pkgerrors "github.com/mvillanueva/gymflow-backend/pkg/errors"
)

// Verify reconciles a subscription against whatever the gateway reports for
// the supplied artifacts. Gateway reads are fail-static: a failed call is
// logged and counted, and the subscription keeps its current state rather
// than flipping on partial information.
func (s *service) Verify(ctx context.Context, userID, subscriptionID uuid.UUID, artifacts VerifyArtifacts) (*VerifyResult, error) {
	sub, err := s.ownedSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	if duplicate := s.guardedDuplicate(ctx, sub.ID, artifacts); duplicate {
		return &VerifyResult{Subscription: sub, Outcome: enums.RefreshOutcomePending}, nil
	}

	return s.reconcile(ctx, sub, artifacts)
}

// Refresh re-reads gateway state without any checkout artifacts. Razorpay
// exposes no payment lookup by subscription, so a Razorpay refresh without a
// stored charge reports unsupported instead of guessing.
func (s *service) Refresh(ctx context.Context, userID, subscriptionID uuid.UUID) (*VerifyResult, error) {
	sub, err := s.ownedSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.Gateway == enums.GatewayRazorpay {
		s.metrics.IncVerification(sub.Gateway.String(), enums.RefreshOutcomeUnsupported.String())
		return &VerifyResult{Subscription: sub, Outcome: enums.RefreshOutcomeUnsupported}, nil
	}

	return s.reconcile(ctx, sub, VerifyArtifacts{})
}

func (s *service) guardedDuplicate(ctx context.Context, subscriptionID uuid.UUID, artifacts VerifyArtifacts) bool {
	if s.guard == nil {
		return false
	}
	artifact := artifacts.PaymentIntentID + artifacts.SetupIntentID + artifacts.RazorpayPaymentID
	duplicate, err := s.guard.CheckAndMark(ctx, subscriptionID.String(), artifact)
	if err != nil {
		// Guard failures never block verification.
		if s.logger != nil {
			s.logger.Warn(ctx, "verify guard unavailable")
		}
		return false
	}
	return duplicate
}

func (s *service) reconcile(ctx context.Context, sub *models.Subscription, artifacts VerifyArtifacts) (*VerifyResult, error) {
	plan, err := s.repo.FindPlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}

	changed := false

	if sub.Gateway == enums.GatewayStripe {
		if sub.IsGatewayManaged() {
			changed = s.reconcileStripeSubscription(ctx, sub, plan) || changed
		}
		changed = s.reconcileStripeIntents(ctx, sub, plan, artifacts) || changed
	}

	if sub.Gateway == enums.GatewayRazorpay {
		changed = s.reconcileRazorpayPayment(ctx, sub, plan, artifacts) || changed
	}

	if changed {
		if err := s.persistSubscription(ctx, sub); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist reconciled subscription")
		}
	}

	outcome := enums.RefreshOutcomePending
	if changed {
		outcome = enums.RefreshOutcomeUpdated
	}
	s.metrics.IncVerification(sub.Gateway.String(), outcome.String())

	if s.logger != nil {
		lctx := s.logger.WithSubscriptionID(ctx, sub.ID.String())
		lctx = s.logger.WithGateway(lctx, sub.Gateway.String())
		lctx = s.logger.WithField(lctx, "outcome", outcome.String())
		s.logger.Info(lctx, "subscription reconciled")
	}

	return &VerifyResult{Subscription: sub, Outcome: outcome}, nil
}

// reconcileStripeSubscription pulls the gateway subscription and folds its
// status and billing anchors into the local row.
func (s *service) reconcileStripeSubscription(ctx context.Context, sub *models.Subscription, plan *models.Plan) bool {
	if s.stripe == nil {
		return false
	}

	remote, err := s.stripe.GetSubscription(ctx, *sub.GatewaySubscriptionID)
	if err != nil {
		s.gatewayReadFailed(ctx, sub, "get_subscription", err)
		return false
	}

	invoice := remote.Invoice
	if invoice == nil && remote.LatestInvoiceID != "" {
		invoice, err = s.stripe.GetInvoice(ctx, remote.LatestInvoiceID)
		if err != nil {
			s.gatewayReadFailed(ctx, sub, "get_invoice", err)
			invoice = nil
		}
	}

	mapped := MapStripeSubscriptionStatus(remote.Status)
	if mapped == enums.SubscriptionStatusPending && invoice != nil && invoice.Paid {
		// The gateway has the money but hasn't flipped the subscription yet.
		mapped = ActivationStatus(plan)
	}

	changed := false
	if mapped != sub.Status && !downgradesConfirmedState(sub.Status, mapped) {
		sub.Status = mapped
		changed = true
	}

	if trialEnd := timeFromEpoch(remote.TrialEnd); trialEnd != nil && !equalTime(sub.TrialEndAt, trialEnd) {
		sub.TrialEndAt = trialEnd
		changed = true
	}
	if periodEnd := timeFromEpoch(remote.CurrentPeriodEnd); periodEnd != nil && !equalTime(sub.NextBillingAt, periodEnd) {
		sub.NextBillingAt = periodEnd
		changed = true
	}
	if sub.StartedAt == nil {
		if started := timeFromEpoch(remote.StartDate); started != nil {
			sub.StartedAt = started
			changed = true
		}
	}

	if invoice != nil {
		if _, err := s.ledger.RecordFromInvoice(ctx, sub, invoice); err != nil {
			s.gatewayReadFailed(ctx, sub, "record_invoice", err)
		}
	} else if sub.Status == enums.SubscriptionStatusActive || sub.Status == enums.SubscriptionStatusTrialing {
		// Paid per the gateway but no charge artifact to reference.
		if _, err := s.ledger.RecordBackfill(ctx, sub, plan); err != nil {
			s.gatewayReadFailed(ctx, sub, "record_backfill", err)
		}
	}

	return changed
}

// reconcileStripeIntents inspects the checkout intents independently of the
// subscription object. A succeeded intent is proof of confirmation even when
// the subscription read failed or lagged.
func (s *service) reconcileStripeIntents(ctx context.Context, sub *models.Subscription, plan *models.Plan, artifacts VerifyArtifacts) bool {
	if s.stripe == nil {
		return false
	}

	changed := false

	if artifacts.PaymentIntentID != "" {
		intent, err := s.stripe.GetPaymentIntent(ctx, artifacts.PaymentIntentID)
		if err != nil {
			s.gatewayReadFailed(ctx, sub, "get_payment_intent", err)
		} else if intent.Status == "succeeded" {
			changed = s.activate(sub, plan) || changed
			if _, err := s.ledger.RecordFromIntent(ctx, sub, intent); err != nil {
				s.gatewayReadFailed(ctx, sub, "record_intent", err)
			}
		}
	}

	if artifacts.SetupIntentID != "" {
		intent, err := s.stripe.GetSetupIntent(ctx, artifacts.SetupIntentID)
		if err != nil {
			s.gatewayReadFailed(ctx, sub, "get_setup_intent", err)
		} else if intent.Status == "succeeded" {
			changed = s.activate(sub, plan) || changed
			if _, err := s.ledger.RecordFromIntent(ctx, sub, intent); err != nil {
				s.gatewayReadFailed(ctx, sub, "record_intent", err)
			}
		}
	}

	return changed
}

func (s *service) reconcileRazorpayPayment(ctx context.Context, sub *models.Subscription, plan *models.Plan, artifacts VerifyArtifacts) bool {
	if s.razorpay == nil || artifacts.RazorpayPaymentID == "" {
		return false
	}

	payment, err := s.razorpay.FetchPayment(ctx, artifacts.RazorpayPaymentID)
	if err != nil {
		s.gatewayReadFailed(ctx, sub, "fetch_payment", err)
		return false
	}

	changed := false
	if IsRazorpayChargeSuccessful(payment.Status) {
		changed = s.activate(sub, plan)
	}
	if _, err := s.ledger.RecordFromRazorpayPayment(ctx, sub, payment); err != nil {
		s.gatewayReadFailed(ctx, sub, "record_payment", err)
	}
	return changed
}

// activate promotes a pending subscription once a charge or mandate is
// confirmed. Already-confirmed subscriptions are left alone so repeated
// verifies cannot reset the trial clock or start date.
func (s *service) activate(sub *models.Subscription, plan *models.Plan) bool {
	target := ActivationStatus(plan)
	changed := false

	if sub.Status != target && !downgradesConfirmedState(sub.Status, target) {
		sub.Status = target
		changed = true
	}
	if sub.StartedAt == nil {
		now := time.Now().UTC()
		sub.StartedAt = &now
		changed = true
	}
	if target == enums.SubscriptionStatusTrialing && sub.TrialEndAt == nil && plan.TrialDays > 0 {
		trialEnd := time.Now().UTC().AddDate(0, 0, plan.TrialDays)
		sub.TrialEndAt = &trialEnd
		changed = true
	}

	return changed
}

// downgradesConfirmedState guards monotonicity: once a subscription reached
// trialing or active, a pending reading from a lagging gateway never pulls
// it back.
func downgradesConfirmedState(current, next enums.SubscriptionStatus) bool {
	if next != enums.SubscriptionStatusPending {
		return false
	}
	return current == enums.SubscriptionStatusTrialing || current == enums.SubscriptionStatusActive
}

func (s *service) persistSubscription(ctx context.Context, sub *models.Subscription) error {
	if s.tx != nil {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).UpdateSubscription(ctx, sub)
		})
	}
	return s.repo.UpdateSubscription(ctx, sub)
}

func (s *service) gatewayReadFailed(ctx context.Context, sub *models.Subscription, operation string, err error) {
	s.metrics.IncGatewayError(sub.Gateway.String(), operation)
	if s.logger != nil {
		lctx := s.logger.WithSubscriptionID(ctx, sub.ID.String())
		lctx = s.logger.WithGateway(lctx, sub.Gateway.String())
		s.logger.Error(lctx, "gateway read failed during reconciliation", err)
	}
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
