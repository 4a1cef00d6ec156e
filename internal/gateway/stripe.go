package gateway

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/invoice"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/setupintent"
	"github.com/stripe/stripe-go/v76/subscription"

	pkgstripe "github.com/mvillanueva/gymflow-backend/pkg/stripe"
)

// NewStripeClient wraps the configured Stripe SDK so the reconciliation
// flows can be tested against a stub.
func NewStripeClient(api *pkgstripe.Client) StripeClient {
	if api == nil {
		return nil
	}
	return &stripeClient{}
}

type stripeClient struct{}

func (c *stripeClient) CreateSubscription(ctx context.Context, params *CreateSubscriptionParams) (*CreateSubscriptionResult, error) {
	custParams := &stripe.CustomerParams{}
	custParams.Context = ctx
	if params.CustomerEmail != "" {
		custParams.Email = stripe.String(params.CustomerEmail)
	}
	if params.CustomerName != "" {
		custParams.Name = stripe.String(params.CustomerName)
	}
	for k, v := range params.Metadata {
		custParams.AddMetadata(k, v)
	}
	cust, err := customer.New(custParams)
	if err != nil {
		return nil, err
	}

	subParams := &stripe.SubscriptionParams{
		Customer: stripe.String(cust.ID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(params.PriceID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	subParams.Context = ctx
	if params.TrialDays > 0 {
		subParams.TrialPeriodDays = stripe.Int64(int64(params.TrialDays))
	}
	for k, v := range params.Metadata {
		subParams.AddMetadata(k, v)
	}
	subParams.AddExpand("latest_invoice.payment_intent")
	subParams.AddExpand("pending_setup_intent")

	sub, err := subscription.New(subParams)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(sub)
	result := &CreateSubscriptionResult{
		GatewaySubscriptionID: sub.ID,
		GatewayCustomerID:     cust.ID,
		Status:                string(sub.Status),
		Raw:                   raw,
	}
	if sub.LatestInvoice != nil && sub.LatestInvoice.PaymentIntent != nil {
		result.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
	} else if sub.PendingSetupIntent != nil {
		result.ClientSecret = sub.PendingSetupIntent.ClientSecret
	}
	return result, nil
}

func (c *stripeClient) CancelSubscription(ctx context.Context, id string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	_, err := subscription.Cancel(id, params)
	return err
}

func (c *stripeClient) GetSubscription(ctx context.Context, id string) (*StripeSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	params.AddExpand("latest_invoice")
	sub, err := subscription.Get(id, params)
	if err != nil {
		return nil, err
	}

	out := &StripeSubscription{
		ID:               sub.ID,
		Status:           string(sub.Status),
		TrialEnd:         sub.TrialEnd,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
		StartDate:        sub.StartDate,
	}
	if sub.LatestInvoice != nil {
		out.LatestInvoiceID = sub.LatestInvoice.ID
		out.Invoice = convertInvoice(sub.LatestInvoice)
	}
	return out, nil
}

func (c *stripeClient) GetInvoice(ctx context.Context, id string) (*StripeInvoice, error) {
	params := &stripe.InvoiceParams{}
	params.Context = ctx
	inv, err := invoice.Get(id, params)
	if err != nil {
		return nil, err
	}
	return convertInvoice(inv), nil
}

func (c *stripeClient) GetPaymentIntent(ctx context.Context, id string) (*StripeIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, err
	}
	return &StripeIntent{
		ID:                 pi.ID,
		Kind:               IntentKindPayment,
		Status:             string(pi.Status),
		Amount:             pi.Amount,
		AmountReceived:     pi.AmountReceived,
		PaymentMethodTypes: pi.PaymentMethodTypes,
		Currency:           string(pi.Currency),
		Created:            pi.Created,
	}, nil
}

func (c *stripeClient) GetSetupIntent(ctx context.Context, id string) (*StripeIntent, error) {
	params := &stripe.SetupIntentParams{}
	params.Context = ctx
	si, err := setupintent.Get(id, params)
	if err != nil {
		return nil, err
	}
	return &StripeIntent{
		ID:                 si.ID,
		Kind:               IntentKindSetup,
		Status:             string(si.Status),
		PaymentMethodTypes: si.PaymentMethodTypes,
		Created:            si.Created,
	}, nil
}

func convertInvoice(inv *stripe.Invoice) *StripeInvoice {
	if inv == nil {
		return nil
	}
	out := &StripeInvoice{
		ID:         inv.ID,
		Paid:       inv.Paid,
		AmountPaid: inv.AmountPaid,
		Currency:   string(inv.Currency),
	}
	if inv.PaymentIntent != nil {
		out.PaymentIntentID = inv.PaymentIntent.ID
	}
	return out
}
