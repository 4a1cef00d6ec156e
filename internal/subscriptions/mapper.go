package subscriptions

import (
	"time"

	"github.com/mvillanueva/gymflow-backend/pkg/db/models"
	"github.com/mvillanueva/gymflow-backend/pkg/enums"
)

// MapStripeSubscriptionStatus folds the gateway's status vocabulary into the
// local lifecycle. Unknown and in-flight statuses (incomplete, paused) stay
// pending until the gateway settles.
func MapStripeSubscriptionStatus(status string) enums.SubscriptionStatus {
	switch status {
	case "trialing":
		return enums.SubscriptionStatusTrialing
	case "active":
		return enums.SubscriptionStatusActive
	case "past_due":
		return enums.SubscriptionStatusPastDue
	case "canceled", "unpaid":
		return enums.SubscriptionStatusCanceled
	default:
		return enums.SubscriptionStatusPending
	}
}

// IsRazorpayChargeSuccessful reports whether a Razorpay payment status means
// money moved. Authorized counts: capture follows automatically for
// subscription charges.
func IsRazorpayChargeSuccessful(status string) bool {
	return status == "captured" || status == "authorized"
}

// ActivationStatus picks the state a confirmed subscription lands in. Plans
// with a trial window start trialing; everything else goes straight to active.
func ActivationStatus(plan *models.Plan) enums.SubscriptionStatus {
	if plan.HasTrial() {
		return enums.SubscriptionStatusTrialing
	}
	return enums.SubscriptionStatusActive
}

// timeFromEpoch converts a gateway unix timestamp to a nullable time. Zero
// means the gateway did not report the field.
func timeFromEpoch(epoch int64) *time.Time {
	if epoch <= 0 {
		return nil
	}
	t := time.Unix(epoch, 0).UTC()
	return &t
}
