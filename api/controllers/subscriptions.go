package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvillanueva/gymflow-backend/api/responses"
	subscriptionsvc "github.com/mvillanueva/gymflow-backend/internal/subscriptions"
	"github.com/mvillanueva/gymflow-backend/pkg/db/models"
	pkgerrors "github.com/mvillanueva/gymflow-backend/pkg/errors"
	"github.com/mvillanueva/gymflow-backend/pkg/logger"
)

type subscriptionResponse struct {
	ID            uuid.UUID  `json:"id"`
	PlanID        uuid.UUID  `json:"plan_id"`
	Gateway       string     `json:"gateway"`
	Status        string     `json:"status"`
	HasAccess     bool       `json:"has_access"`
	TrialEndAt    *time.Time `json:"trial_end_at,omitempty"`
	NextBillingAt *time.Time `json:"next_billing_at,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CanceledAt    *time.Time `json:"canceled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type subscriptionStateResponse struct {
	Subscription subscriptionResponse `json:"subscription"`
	Outcome      string               `json:"outcome"`
}

type paymentResponse struct {
	ID            uuid.UUID       `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	Method        string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:            sub.ID,
		PlanID:        sub.PlanID,
		Gateway:       sub.Gateway.String(),
		Status:        sub.Status.String(),
		HasAccess:     sub.HasAccess(time.Now().UTC()),
		TrialEndAt:    sub.TrialEndAt,
		NextBillingAt: sub.NextBillingAt,
		StartedAt:     sub.StartedAt,
		CanceledAt:    sub.CanceledAt,
		CreatedAt:     sub.CreatedAt,
	}
}

func newSubscriptionStateResponse(result *subscriptionsvc.VerifyResult) subscriptionStateResponse {
	return subscriptionStateResponse{
		Subscription: newSubscriptionResponse(result.Subscription),
		Outcome:      result.Outcome.String(),
	}
}

// SubscriptionList returns the member's subscriptions, newest first.
func SubscriptionList(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subs, err := svc.List(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]subscriptionResponse, 0, len(subs))
		for i := range subs {
			out = append(out, newSubscriptionResponse(&subs[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// SubscriptionRefresh re-reads gateway state for one subscription.
func SubscriptionRefresh(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subscriptionID, err := subscriptionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Refresh(r.Context(), userID, subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSubscriptionStateResponse(result))
	}
}

// SubscriptionCancel cancels at the gateway first, then locally.
func SubscriptionCancel(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subscriptionID, err := subscriptionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Cancel(r.Context(), userID, subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

// SubscriptionPayments lists the payment history for one subscription.
func SubscriptionPayments(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subscriptionID, err := subscriptionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListPayments(r.Context(), userID, subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]paymentResponse, 0, len(list))
		for _, p := range list {
			out = append(out, paymentResponse{
				ID:            p.ID,
				Amount:        p.Amount,
				FinalAmount:   p.FinalAmount,
				Method:        p.Method.String(),
				TransactionID: p.TransactionID,
				Status:        p.Status.String(),
				PaidAt:        p.PaidAt,
				CreatedAt:     p.CreatedAt,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

func subscriptionIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "subscriptionId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscriptionId must be a valid uuid")
	}
	return id, nil
}
