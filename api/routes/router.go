package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	returncontrollers "github.com/angelmondragon/storefront-backend/api/controllers/returns"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/returns"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	idempotencyStore redis.IdempotencyStore,
	gatherer prometheus.Gatherer,
	cartService cart.Service,
	orderService orders.Service,
	returnService returns.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisP,
		}))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.GuestSession(logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Use(middleware.RequireActor(logg))
			r.Get("/", cartcontrollers.CartFetch(cartService, logg))
			r.Delete("/", cartcontrollers.CartClear(cartService, logg))
			r.Get("/validate", cartcontrollers.CartValidate(cartService, logg))
			r.Post("/items", cartcontrollers.CartAddItem(cartService, logg))
			r.Patch("/items/{productId}", cartcontrollers.CartUpdateItem(cartService, logg))
			r.Delete("/items/{productId}", cartcontrollers.CartRemoveItem(cartService, logg))
			r.With(middleware.RequireCustomer(logg)).Post("/merge", cartcontrollers.CartMerge(cartService, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireActor(logg)).Post("/", ordercontrollers.Create(orderService, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCustomer(logg))
				r.Get("/", ordercontrollers.List(orderService, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(orderService, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.Cancel(orderService, logg))
				r.Get("/{orderId}/return-eligibility", returncontrollers.Eligibility(returnService, logg))
			})
		})

		r.Route("/returns", func(r chi.Router) {
			r.Use(middleware.RequireCustomer(logg))
			r.Post("/", returncontrollers.Create(returnService, logg))
			r.Get("/", returncontrollers.List(returnService, logg))
			r.Get("/{returnId}", returncontrollers.Detail(returnService, logg))
			r.Post("/{returnId}/cancel", returncontrollers.Cancel(returnService, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.AdminCreate(orderService, logg))
				r.Get("/", ordercontrollers.AdminList(orderService, logg))
				r.Get("/stats", ordercontrollers.AdminStats(orderService, logg))
				r.Get("/{orderId}", ordercontrollers.AdminDetail(orderService, logg))
				r.Post("/{orderId}/status", ordercontrollers.AdminUpdateStatus(orderService, logg))
				r.Post("/{orderId}/payment-status", ordercontrollers.AdminUpdatePaymentStatus(orderService, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.Cancel(orderService, logg))
				r.Post("/{orderId}/notes", ordercontrollers.AdminAddNote(orderService, logg))
				r.Post("/{orderId}/vendor", ordercontrollers.AdminReassignVendor(orderService, logg))
				r.Post("/{orderId}/refund", ordercontrollers.AdminRefund(orderService, logg))
			})

			r.Route("/returns", func(r chi.Router) {
				r.Get("/", returncontrollers.AdminList(returnService, logg))
				r.Get("/{returnId}", returncontrollers.AdminDetail(returnService, logg))
				r.Post("/{returnId}/approve", returncontrollers.AdminApprove(returnService, logg))
				r.Post("/{returnId}/reject", returncontrollers.AdminReject(returnService, logg))
				r.Post("/{returnId}/refund", returncontrollers.AdminRefund(returnService, logg))
			})

			r.Route("/return-policies", func(r chi.Router) {
				r.Post("/", returncontrollers.AdminCreatePolicy(returnService, logg))
				r.Get("/default", returncontrollers.AdminDefaultPolicy(returnService, logg))
				r.Post("/{policyId}/default", returncontrollers.AdminSetDefaultPolicy(returnService, logg))
			})
		})
	})

	return r
}
