package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mvillanueva/gymflow-backend/api/middleware"
	"github.com/mvillanueva/gymflow-backend/api/responses"
	"github.com/mvillanueva/gymflow-backend/api/validators"
	"github.com/mvillanueva/gymflow-backend/internal/gateway"
	subscriptionsvc "github.com/mvillanueva/gymflow-backend/internal/subscriptions"
	"github.com/mvillanueva/gymflow-backend/pkg/config"
	"github.com/mvillanueva/gymflow-backend/pkg/enums"
	pkgerrors "github.com/mvillanueva/gymflow-backend/pkg/errors"
	"github.com/mvillanueva/gymflow-backend/pkg/logger"
)

type checkoutRequest struct {
	PlanID        uuid.UUID `json:"plan_id" validate:"required,uuid4"`
	Gateway       string    `json:"gateway" validate:"required,oneof=stripe razorpay"`
	CustomerEmail string    `json:"customer_email,omitempty" validate:"omitempty,email"`
	CustomerName  string    `json:"customer_name,omitempty" validate:"omitempty,max=120"`
}

type checkoutResponse struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	PlanID         uuid.UUID `json:"plan_id"`
	Gateway        string    `json:"gateway"`
	Status         string    `json:"status"`
	ClientSecret   string    `json:"client_secret,omitempty"`
	IntentID       string    `json:"intent_id,omitempty"`
	IntentKind     string    `json:"intent_kind,omitempty"`
	ShortURL       string    `json:"short_url,omitempty"`
	SuccessURL     string    `json:"success_url,omitempty"`
	CancelURL      string    `json:"cancel_url,omitempty"`
}

// Checkout opens a pending subscription at the chosen gateway and hands the
// client whatever it needs to finish payment.
func Checkout(svc subscriptionsvc.Service, billingCfg config.BillingConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		gw, err := enums.ParseGateway(payload.Gateway)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported gateway"))
			return
		}

		result, err := svc.Create(r.Context(), subscriptionsvc.CreateInput{
			UserID:        userID,
			PlanID:        payload.PlanID,
			Gateway:       gw,
			CustomerEmail: payload.CustomerEmail,
			CustomerName:  payload.CustomerName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := checkoutResponse{
			SubscriptionID: result.Subscription.ID,
			PlanID:         result.Subscription.PlanID,
			Gateway:        result.Subscription.Gateway.String(),
			Status:         result.Subscription.Status.String(),
			ClientSecret:   result.ClientSecret,
			ShortURL:       result.ShortURL,
			SuccessURL:     billingCfg.SuccessURL,
			CancelURL:      billingCfg.CancelURL,
		}
		// Surface the intent id hiding inside the client secret so the client
		// can hand it straight back on the confirm redirect.
		if id, kind, ok := subscriptionsvc.ParseIntentID(result.ClientSecret); ok {
			out.IntentID = id
			out.IntentKind = string(kind)
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, out)
	}
}

// CheckoutConfirm reconciles a subscription against the gateway artifacts the
// payment page returns with. It accepts either a Stripe client secret (or bare
// intent id) or a Razorpay payment id.
func CheckoutConfirm(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		subscriptionID, err := uuid.Parse(query.Get("subscription_id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "subscription_id must be a valid uuid"))
			return
		}

		artifacts := subscriptionsvc.VerifyArtifacts{
			RazorpayPaymentID: query.Get("razorpay_payment_id"),
		}
		// Stripe redirects name the intent directly; older payment pages only
		// echo the client secret. Either form carries the id. A bare
		// session_id with no intent falls through to a plain refresh of the
		// stored gateway subscription.
		for _, param := range []string{"payment_intent", "setup_intent", "client_secret"} {
			value := query.Get(param)
			if value == "" {
				continue
			}
			id, kind, ok := subscriptionsvc.ParseIntentID(value)
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, param+" is not a recognized intent"))
				return
			}
			switch kind {
			case gateway.IntentKindPayment:
				artifacts.PaymentIntentID = id
			case gateway.IntentKindSetup:
				artifacts.SetupIntentID = id
			}
		}

		result, err := svc.Verify(r.Context(), userID, subscriptionID, artifacts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSubscriptionStateResponse(result))
	}
}

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user identity")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user identity")
	}
	return userID, nil
}
