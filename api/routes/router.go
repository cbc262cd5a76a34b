package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minhvodev/storefront-backend/api/controllers"
	"github.com/minhvodev/storefront-backend/api/middleware"
	internalorders "github.com/minhvodev/storefront-backend/internal/orders"
	"github.com/minhvodev/storefront-backend/internal/payments"
	"github.com/minhvodev/storefront-backend/pkg/config"
	"github.com/minhvodev/storefront-backend/pkg/enums"
	"github.com/minhvodev/storefront-backend/pkg/logger"
)

// RouterParams collects the handlers' dependencies. DBPinger and RedisPinger
// feed the readiness probe; RedisPinger is nil on the in-memory staging
// backend.
type RouterParams struct {
	Config         *config.Config
	Logger         *logger.Logger
	DBPinger       controllers.Pinger
	RedisPinger    controllers.Pinger
	PaymentService payments.Service
	OrderService   internalorders.Service
	MetricsHandler http.Handler
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, params.DBPinger, params.RedisPinger, logg))
	})

	metricsHandler := params.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// Gateway callbacks are unauthenticated by design: the HMAC signature
	// inside the payload is the authentication.
	r.Route("/api/v1/payment/gateway", func(r chi.Router) {
		r.Get("/return", controllers.GatewayReturn(params.PaymentService, logg))
		r.Post("/ipn", controllers.GatewayIPN(params.PaymentService, logg))

		r.With(middleware.Auth(cfg.JWT, logg)).
			Post("/create", controllers.CreateGatewayPayment(params.PaymentService, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Post("/", controllers.CreateOrder(params.OrderService, logg))
		r.Get("/", controllers.ListOrders(params.OrderService, logg))
		r.Get("/{orderId}", controllers.GetOrder(params.OrderService, logg))
		r.Patch("/{orderId}/cancel", controllers.CancelOrder(params.OrderService, logg))
	})

	r.Route("/api/admin/v1/orders", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RequireRole(string(enums.UserRoleAdmin), logg),
		)
		r.Get("/", controllers.AdminListOrders(params.OrderService, logg))
		r.Patch("/{orderId}/status", controllers.AdminUpdateOrderStatus(params.OrderService, logg))
	})

	return r
}
