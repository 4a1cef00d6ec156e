package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvillanueva/gymflow-backend/internal/billing"
	"github.com/mvillanueva/gymflow-backend/internal/gateway"
	"github.com/mvillanueva/gymflow-backend/pkg/db/models"
	"github.com/mvillanueva/gymflow-backend/pkg/enums"
	pkgerrors "github.com/mvillanueva/gymflow-backend/pkg/errors"
	"github.com/mvillanueva/gymflow-backend/pkg/logger"
	"github.com/mvillanueva/gymflow-backend/pkg/metrics"
)

// Ledger records gateway-reported charges against the local payment table.
// Every record path is idempotent: a transaction id already present for the
// subscription leaves the table untouched.
type Ledger struct {
	repo    billing.Repository
	logger  *logger.Logger
	metrics *metrics.ReconciliationMetrics
}

// NewLedger builds a payment ledger.
func NewLedger(repo billing.Repository, logg *logger.Logger, m *metrics.ReconciliationMetrics) *Ledger {
	return &Ledger{repo: repo, logger: logg, metrics: m}
}

// RecordFromInvoice persists a payment derived from a paid Stripe invoice. The
// dedup key prefers the payment intent id and falls back to the invoice id.
// Unpaid invoices record nothing: rows are append-only, so the dedup key must
// stay free until the charge actually settles.
func (l *Ledger) RecordFromInvoice(ctx context.Context, sub *models.Subscription, inv *gateway.StripeInvoice) (*models.Payment, error) {
	if inv == nil || inv.ID == "" || !inv.Paid {
		return nil, nil
	}

	txnID := inv.PaymentIntentID
	if txnID == "" {
		txnID = inv.ID
	}

	now := time.Now().UTC()
	return l.record(ctx, sub, recordParams{
		transactionID: txnID,
		amount:        minorUnits(inv.AmountPaid),
		method:        enums.PaymentMethodCreditCard,
		status:        enums.PaymentStatusCompleted,
		paidAt:        &now,
		source:        "invoice",
		gateway:       enums.GatewayStripe,
		details: map[string]any{
			"invoice_id":        inv.ID,
			"payment_intent_id": inv.PaymentIntentID,
			"currency":          inv.Currency,
		},
	})
}

// RecordFromIntent persists a payment derived from a succeeded Stripe intent.
// Setup intents carry no amount; they still produce a zero-amount row so the
// confirmation is visible in payment history. Intents in any other state
// record nothing.
func (l *Ledger) RecordFromIntent(ctx context.Context, sub *models.Subscription, intent *gateway.StripeIntent) (*models.Payment, error) {
	if intent == nil || intent.ID == "" || intent.Status != "succeeded" {
		return nil, nil
	}

	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}

	now := time.Now().UTC()
	return l.record(ctx, sub, recordParams{
		transactionID: intent.ID,
		amount:        minorUnits(amount),
		method:        methodFromStripeTypes(intent.PaymentMethodTypes),
		status:        enums.PaymentStatusCompleted,
		paidAt:        &now,
		source:        string(intent.Kind),
		gateway:       enums.GatewayStripe,
		details: map[string]any{
			"intent_id":   intent.ID,
			"intent_kind": string(intent.Kind),
			"currency":    intent.Currency,
		},
	})
}

// RecordFromRazorpayPayment persists a payment reported by Razorpay. Amounts
// arrive in paise. Only captured or authorized payments produce a row; a
// created or failed payment is not a monetary event.
func (l *Ledger) RecordFromRazorpayPayment(ctx context.Context, sub *models.Subscription, payment *gateway.RazorpayPayment) (*models.Payment, error) {
	if payment == nil || payment.ID == "" {
		return nil, nil
	}
	if payment.Status != "captured" && payment.Status != "authorized" {
		return nil, nil
	}

	now := time.Now().UTC()
	return l.record(ctx, sub, recordParams{
		transactionID: payment.ID,
		amount:        minorUnits(payment.Amount),
		method:        normalizeRazorpayMethod(payment.Method),
		status:        enums.PaymentStatusCompleted,
		paidAt:        &now,
		source:        "razorpay_payment",
		gateway:       enums.GatewayRazorpay,
		details: map[string]any{
			"payment_id": payment.ID,
			"order_id":   payment.OrderID,
			"currency":   payment.Currency,
			"status":     payment.Status,
		},
	})
}

// RecordBackfill persists a synthetic payment when the gateway reports the
// subscription paid but exposes no charge artifact to reference. The plan
// price stands in for the charged amount.
func (l *Ledger) RecordBackfill(ctx context.Context, sub *models.Subscription, plan *models.Plan) (*models.Payment, error) {
	if plan == nil {
		return nil, nil
	}

	// Backfill only fills an empty ledger. Any real charge row means the
	// gateway artifact path already ran.
	count, err := l.repo.CountPaymentsBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, nil
	}

	txnID := ""
	if sub.GatewaySubscriptionID != nil {
		txnID = *sub.GatewaySubscriptionID
	}
	if txnID == "" {
		txnID = fmt.Sprintf("sub_%s", sub.ID)
	}

	paidAt := sub.StartedAt
	if paidAt == nil {
		createdAt := sub.CreatedAt
		paidAt = &createdAt
	}

	return l.record(ctx, sub, recordParams{
		transactionID: txnID,
		amount:        plan.Price,
		method:        enums.PaymentMethodCreditCard,
		status:        enums.PaymentStatusCompleted,
		paidAt:        paidAt,
		source:        "backfill",
		gateway:       sub.Gateway,
		details: map[string]any{
			"plan_id":  plan.ID.String(),
			"backfill": true,
		},
	})
}

type recordParams struct {
	transactionID string
	amount        decimal.Decimal
	method        enums.PaymentMethod
	status        enums.PaymentStatus
	paidAt        *time.Time
	source        string
	gateway       enums.Gateway
	details       map[string]any
}

func (l *Ledger) record(ctx context.Context, sub *models.Subscription, params recordParams) (*models.Payment, error) {
	existing, err := l.repo.FindPaymentByTransactionID(ctx, sub.ID, params.transactionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	details, err := json.Marshal(params.details)
	if err != nil {
		details = nil
	}

	payment := &models.Payment{
		ID:             uuid.New(),
		UserID:         sub.UserID,
		SubscriptionID: &sub.ID,
		Amount:         params.amount,
		DiscountAmount: decimal.Zero,
		FinalAmount:    params.amount,
		Method:         params.method,
		TransactionID:  params.transactionID,
		Status:         params.status,
		Details:        details,
		PaidAt:         params.paidAt,
	}

	created, err := l.repo.CreatePayment(ctx, payment)
	if pkgerrors.IsUniqueViolation(err) {
		// A concurrent verify won the insert race. Read their row back.
		return l.repo.FindPaymentByTransactionID(ctx, sub.ID, params.transactionID)
	}
	if err != nil {
		return nil, err
	}

	if l.logger != nil {
		lctx := l.logger.WithFields(ctx, map[string]any{
			"subscription_id": sub.ID.String(),
			"transaction_id":  params.transactionID,
			"source":          params.source,
		})
		l.logger.Info(lctx, "payment recorded")
	}
	l.metrics.IncPaymentRecorded(params.gateway.String(), params.source)

	return created, nil
}

func minorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// methodFromStripeTypes maps Stripe's payment_method_types to the local enum.
// An empty list still yields credit_card; that default predates the typed
// enum and payment history views rely on it.
func methodFromStripeTypes(types []string) enums.PaymentMethod {
	for _, t := range types {
		switch t {
		case "card":
			return enums.PaymentMethodCreditCard
		case "upi":
			return enums.PaymentMethodUPI
		case "us_bank_account", "sepa_debit", "bacs_debit":
			return enums.PaymentMethodBankTransfer
		}
	}
	if len(types) == 0 {
		return enums.PaymentMethodCreditCard
	}
	return enums.PaymentMethodOther
}

func normalizeRazorpayMethod(method string) enums.PaymentMethod {
	switch method {
	case "card":
		return enums.PaymentMethodCreditCard
	case "upi":
		return enums.PaymentMethodUPI
	case "netbanking":
		return enums.PaymentMethodBankTransfer
	case "":
		return enums.PaymentMethodCreditCard
	default:
		return enums.PaymentMethodOther
	}
}
