package gateway

import (
	"context"
	"encoding/json"
)

// IntentKind distinguishes the two Stripe intent flavors a checkout can
// produce: a payment intent when money moves immediately, a setup intent when
// a trial defers the first charge.
type IntentKind string

const (
	IntentKindPayment IntentKind = "payment_intent"
	IntentKindSetup   IntentKind = "setup_intent"
)

// StripeSubscription mirrors the subset of the gateway subscription object the
// reconciliation flows read.
type StripeSubscription struct {
	ID               string
	Status           string
	TrialEnd         int64
	CurrentPeriodEnd int64
	StartDate        int64
	LatestInvoiceID  string
	// Invoice is populated when the gateway expanded the latest invoice
	// inline; otherwise callers resolve LatestInvoiceID themselves.
	Invoice *StripeInvoice
}

// StripeInvoice carries the paid/amount facts used for payment dedup.
type StripeInvoice struct {
	ID              string
	Paid            bool
	AmountPaid      int64
	PaymentIntentID string
	Currency        string
}

// StripeIntent is the common shape of payment and setup intents.
type StripeIntent struct {
	ID                 string
	Kind               IntentKind
	Status             string
	Amount             int64
	AmountReceived     int64
	PaymentMethodTypes []string
	Currency           string
	Created            int64
}

// RazorpayPayment mirrors the gateway payment object. Amount is in paise.
type RazorpayPayment struct {
	ID       string
	Status   string
	Amount   int64
	Method   string
	OrderID  string
	Currency string
}

// CreateSubscriptionParams carries what either gateway needs to open a
// subscription for a member.
type CreateSubscriptionParams struct {
	PriceID       string
	PlanID        string
	TrialDays     int
	TotalCount    int
	CustomerEmail string
	CustomerName  string
	Metadata      map[string]string
}

// CreateSubscriptionResult is the normalized creation response. Raw holds the
// full gateway payload for the subscription metadata snapshot.
type CreateSubscriptionResult struct {
	GatewaySubscriptionID string
	GatewayCustomerID     string
	ClientSecret          string
	ShortURL              string
	Status                string
	Raw                   json.RawMessage
}

// StripeClient exposes the Stripe read/create operations reconciliation needs.
type StripeClient interface {
	CreateSubscription(ctx context.Context, params *CreateSubscriptionParams) (*CreateSubscriptionResult, error)
	CancelSubscription(ctx context.Context, id string) error
	GetSubscription(ctx context.Context, id string) (*StripeSubscription, error)
	GetInvoice(ctx context.Context, id string) (*StripeInvoice, error)
	GetPaymentIntent(ctx context.Context, id string) (*StripeIntent, error)
	GetSetupIntent(ctx context.Context, id string) (*StripeIntent, error)
}

// RazorpayClient exposes the Razorpay operations reconciliation needs.
type RazorpayClient interface {
	CreateSubscription(ctx context.Context, params *CreateSubscriptionParams) (*CreateSubscriptionResult, error)
	CancelSubscription(ctx context.Context, id string) error
	FetchPayment(ctx context.Context, id string) (*RazorpayPayment, error)
}
