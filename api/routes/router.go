package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/crumbhaus/bakehouse-backend/api/controllers"
	"github.com/crumbhaus/bakehouse-backend/api/middleware"
	checkoutsvc "github.com/crumbhaus/bakehouse-backend/internal/checkout"
	"github.com/crumbhaus/bakehouse-backend/internal/coupons"
	"github.com/crumbhaus/bakehouse-backend/internal/loyalty"
	"github.com/crumbhaus/bakehouse-backend/internal/orders"
	"github.com/crumbhaus/bakehouse-backend/internal/products"
	"github.com/crumbhaus/bakehouse-backend/internal/rewards"
	"github.com/crumbhaus/bakehouse-backend/internal/users"
	"github.com/crumbhaus/bakehouse-backend/pkg/config"
	"github.com/crumbhaus/bakehouse-backend/pkg/db"
	"github.com/crumbhaus/bakehouse-backend/pkg/enums"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/metrics"
	"github.com/crumbhaus/bakehouse-backend/pkg/payments"
	pkgredis "github.com/crumbhaus/bakehouse-backend/pkg/redis"
)

// Config carries everything the router mounts.
type Config struct {
	Cfg      *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *pkgredis.Client
	Registry *prometheus.Registry

	Users    users.Service
	Products products.Repository
	Coupons  coupons.Service
	Loyalty  loyalty.Service
	Rewards  rewards.Service
	Orders   orders.Service
	Checkout checkoutsvc.Service
	Gateway  payments.Gateway

	OrderMetrics *metrics.OrderMetrics
}

func NewRouter(rc Config) http.Handler {
	cfg, logg := rc.Cfg, rc.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.App.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, rc.DB))
	})

	if rc.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rc.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment-gateway", controllers.PaymentWebhook(rc.Orders, rc.Gateway, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.Idempotency(rc.Redis, logg)).Post("/register", controllers.Register(rc.Users, logg))
		r.Post("/login", controllers.Login(rc.Users, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(rc.Redis, logg))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/refresh", controllers.Refresh(rc.Users, logg))
			r.Post("/logout", controllers.Logout(rc.Users, logg))
			r.Get("/me", controllers.Me(rc.Users, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(rc.Products, logg))
			r.Get("/{productID}", controllers.GetProduct(rc.Products, logg))
		})

		r.Post("/coupons/validate", controllers.ValidateCoupon(rc.Coupons, logg))

		r.Route("/loyalty", func(r chi.Router) {
			r.Get("/balance", controllers.LoyaltyBalance(rc.Loyalty, logg))
			r.Get("/history", controllers.LoyaltyHistory(rc.Loyalty, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleStaff), logg)).
				Post("/adjust", controllers.AdjustLoyalty(rc.Loyalty, logg))
		})

		r.Route("/rewards", func(r chi.Router) {
			r.Get("/", controllers.ListRewards(rc.Rewards, logg))
			r.Post("/{rewardID}/redeem", controllers.RedeemReward(rc.Rewards, rc.OrderMetrics, logg))
			r.Get("/redemptions", controllers.ListRedemptions(rc.Rewards, logg))
			r.Post("/redemptions/{redemptionID}/cancel", controllers.CancelRedemption(rc.Rewards, logg))
		})

		r.Post("/checkout", controllers.Checkout(rc.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(rc.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(rc.Orders, logg))
			r.Post("/{orderID}/transition", controllers.TransitionOrder(rc.Orders, logg))
			r.With(middleware.RequireRole(string(enums.UserRoleStaff), logg)).
				Post("/{orderID}/confirm-transfer", controllers.ConfirmTransfer(rc.Orders, logg))
		})
	})

	return r
}
