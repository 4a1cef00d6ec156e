package gateway

import (
	"context"
	"encoding/json"
	"errors"

	pkgrazorpay "github.com/mvillanueva/gymflow-backend/pkg/razorpay"
)

// NewRazorpayClient wraps the configured Razorpay SDK. The SDK speaks in
// untyped maps; conversion to the typed shapes happens here and nowhere else.
func NewRazorpayClient(api *pkgrazorpay.Client) RazorpayClient {
	if api == nil {
		return nil
	}
	return &razorpayClient{api: api}
}

type razorpayClient struct {
	api *pkgrazorpay.Client
}

func (c *razorpayClient) CreateSubscription(ctx context.Context, params *CreateSubscriptionParams) (*CreateSubscriptionResult, error) {
	if params == nil || params.PlanID == "" {
		return nil, errors.New("razorpay plan id required")
	}

	totalCount := params.TotalCount
	if totalCount <= 0 {
		totalCount = 12
	}

	notes := map[string]interface{}{}
	for k, v := range params.Metadata {
		notes[k] = v
	}

	data := map[string]interface{}{
		"plan_id":         params.PlanID,
		"total_count":     totalCount,
		"customer_notify": 1,
		"notes":           notes,
	}

	resp, err := c.api.API().Subscription.Create(data, nil)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(resp)
	return &CreateSubscriptionResult{
		GatewaySubscriptionID: stringField(resp, "id"),
		GatewayCustomerID:     stringField(resp, "customer_id"),
		ShortURL:              stringField(resp, "short_url"),
		Status:                stringField(resp, "status"),
		Raw:                   raw,
	}, nil
}

func (c *razorpayClient) CancelSubscription(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("razorpay subscription id required")
	}
	_, err := c.api.API().Subscription.Cancel(id, map[string]interface{}{
		"cancel_at_cycle_end": 0,
	}, nil)
	return err
}

func (c *razorpayClient) FetchPayment(ctx context.Context, id string) (*RazorpayPayment, error) {
	if id == "" {
		return nil, errors.New("razorpay payment id required")
	}
	resp, err := c.api.API().Payment.Fetch(id, nil, nil)
	if err != nil {
		return nil, err
	}
	return ConvertRazorpayPayment(resp), nil
}

// ConvertRazorpayPayment maps the SDK's untyped payment payload into the
// typed shape.
func ConvertRazorpayPayment(resp map[string]interface{}) *RazorpayPayment {
	if resp == nil {
		return nil
	}
	return &RazorpayPayment{
		ID:       stringField(resp, "id"),
		Status:   stringField(resp, "status"),
		Amount:   int64Field(resp, "amount"),
		Method:   stringField(resp, "method"),
		OrderID:  stringField(resp, "order_id"),
		Currency: stringField(resp, "currency"),
	}
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func int64Field(m map[string]interface{}, key string) int64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
