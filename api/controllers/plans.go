package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mvillanueva/gymflow-backend/api/responses"
	subscriptionsvc "github.com/mvillanueva/gymflow-backend/internal/subscriptions"
	"github.com/mvillanueva/gymflow-backend/pkg/logger"
)

type planResponse struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	TrialDays    int             `json:"trial_days"`
	DurationType string          `json:"duration_type"`
}

// PlanList returns the active plans a member can subscribe to.
func PlanList(svc subscriptionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plans, err := svc.ListPlans(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]planResponse, 0, len(plans))
		for _, plan := range plans {
			out = append(out, planResponse{
				ID:           plan.ID,
				Name:         plan.Name,
				Price:        plan.Price,
				Currency:     plan.Currency,
				TrialDays:    plan.TrialDays,
				DurationType: plan.DurationType.String(),
			})
		}
		responses.WriteSuccess(w, out)
	}
}
