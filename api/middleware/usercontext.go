package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/mvillanueva/gymflow-backend/api/responses"
	pkgerrors "github.com/mvillanueva/gymflow-backend/pkg/errors"
	"github.com/mvillanueva/gymflow-backend/pkg/logger"
)

const userIDHeader = "X-User-ID"

// UserContext resolves the member identity the auth proxy forwards in
// X-User-ID. Requests without a valid uuid are rejected before reaching any
// controller.
func UserContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(userIDHeader)
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user identity"))
				return
			}
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid user identity"))
				return
			}

			ctx := WithUserID(r.Context(), userID.String())
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
