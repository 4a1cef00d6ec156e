package razorpay

import (
	"context"
	"errors"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/mvillanueva/gymflow-backend/pkg/config"
	"github.com/mvillanueva/gymflow-backend/pkg/logger"
)

var errCredentialsRequired = errors.New("razorpay key id and secret are required")

// Client wraps the Razorpay SDK client.
type Client struct {
	api *razorpay.Client
}

// NewClient initializes the Razorpay SDK with the configured credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, errCredentialsRequired
	}

	api := razorpay.NewClient(keyID, keySecret)

	if logg != nil {
		logg.Info(ctx, "razorpay client initialized")
	}

	return &Client{api: api}, nil
}

// API returns the underlying SDK client.
func (c *Client) API() *razorpay.Client {
	if c == nil {
		return nil
	}
	return c.api
}
