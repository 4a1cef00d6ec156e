package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mvillanueva/gymflow-backend/api/controllers"
	"github.com/mvillanueva/gymflow-backend/api/middleware"
	subscriptionsvc "github.com/mvillanueva/gymflow-backend/internal/subscriptions"
	"github.com/mvillanueva/gymflow-backend/pkg/config"
	"github.com/mvillanueva/gymflow-backend/pkg/db"
	"github.com/mvillanueva/gymflow-backend/pkg/logger"
	pkgredis "github.com/mvillanueva/gymflow-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP pkgredis.Pinger,
	registry *prometheus.Registry,
	subscriptionService subscriptionsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.CORS(),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	r.Get("/healthz", controllers.HealthLive(cfg))

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.UserContext(logg))

		r.Get("/plans", controllers.PlanList(subscriptionService, logg))
		r.Post("/checkout", controllers.Checkout(subscriptionService, cfg.Billing, logg))
		r.Get("/checkout/confirm", controllers.CheckoutConfirm(subscriptionService, logg))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", controllers.SubscriptionList(subscriptionService, logg))
			r.Post("/{subscriptionId}/refresh", controllers.SubscriptionRefresh(subscriptionService, logg))
			r.Post("/{subscriptionId}/cancel", controllers.SubscriptionCancel(subscriptionService, logg))
			r.Get("/{subscriptionId}/payments", controllers.SubscriptionPayments(subscriptionService, logg))
		})
	})

	return r
}
