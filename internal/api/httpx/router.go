package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/order-desk/internal/api/httpx/middlewares"
	"github.com/jcmexdev/order-desk/internal/identity/domain"
	"github.com/jcmexdev/order-desk/internal/pkg/reqctx"
)

// NewRouter builds the API. Every /api route except login needs a bearer
// token; catalog edits, order administration and the user list need the
// Admin role.
func NewRouter(handler *Handler, verifier middlewares.TokenVerifier, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", reqctx.HeaderXRequestID},
		ExposedHeaders: []string{reqctx.HeaderXRequestID},
		MaxAge:         300,
	}))

	r.Get("/healthz", handler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", handler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middlewares.Authenticate(verifier))

			r.Get("/products", handler.ListProducts)
			r.Post("/orders", handler.PlaceOrder)
			r.Get("/orders/me", handler.ListMyOrders)
			r.Get("/orders/{id}", handler.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(middlewares.RequireRole(domain.RoleAdmin))

				r.Post("/products", handler.AddProduct)
				r.Put("/products/{id}", handler.UpdateProduct)
				r.Delete("/products/{id}", handler.DeleteProduct)

				r.Get("/orders", handler.ListAllOrders)
				r.Put("/orders/{id}/status", handler.UpdateOrderStatus)
				r.Delete("/orders/{id}", handler.DeleteOrder)

				r.Get("/users", handler.ListUsers)
			})
		})
	})

	return otelhttp.NewHandler(r, "order-desk.http")
}
