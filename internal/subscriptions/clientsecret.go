package subscriptions

import (
	"strings"

	"github.com/mvillanueva/gymflow-backend/internal/gateway"
)

// ParseIntentID extracts the intent id and kind from a Stripe client secret.
// It accepts both full secrets ("pi_123_secret_abc") and bare intent ids
// ("pi_123"). Unrecognized prefixes report ok=false so callers can skip the
// lookup instead of sending garbage to the gateway.
func ParseIntentID(value string) (string, gateway.IntentKind, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", false
	}

	id := value
	if idx := strings.Index(value, "_secret_"); idx > 0 {
		id = value[:idx]
	}

	switch {
	case strings.HasPrefix(id, "pi_"):
		return id, gateway.IntentKindPayment, true
	case strings.HasPrefix(id, "seti_"):
		return id, gateway.IntentKindSetup, true
	default:
		return "", "", false
	}
}
