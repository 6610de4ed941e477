package controller

import (
	"time"

	"github.com/dmwangi/medsupply/internal/infrastructure/config"
	"github.com/dmwangi/medsupply/internal/infrastructure/observability"
	infraRedis "github.com/dmwangi/medsupply/internal/infrastructure/redis"
	customMW "github.com/dmwangi/medsupply/internal/middleware"
	"github.com/dmwangi/medsupply/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Pool             *pgxpool.Pool
	RedisClient      *redis.Client
	AuthService      *service.AuthService
	CatalogService   *service.CatalogService
	CartService      *service.CartService
	OrderService     *service.OrderService
	PaymentService   *service.PaymentService
	TokenBlocklist   *infraRedis.TokenBlocklist
	IdempotencyStore *infraRedis.IdempotencyStore
	Metrics          *observability.Metrics
	ServerConfig     config.ServerConfig
	Logger           zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.ServerConfig.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: deps.ServerConfig.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))
	r.Use(customMW.RateLimit(deps.ServerConfig.RequestsPerMinute))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	authH := NewAuthController(deps.AuthService)
	catalogH := NewCatalogController(deps.CatalogService)
	cartH := NewCartController(deps.CartService)
	orderH := NewOrderController(deps.OrderService)
	paymentH := NewPaymentController(deps.PaymentService, deps.Logger)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	requireAuth := customMW.RequireAuth(deps.AuthService, deps.TokenBlocklist)
	requireAdmin := customMW.RequireAdmin()
	idempotencyMW := customMW.Idempotency(deps.IdempotencyStore)

	r.Route("/api/v1", func(r chi.Router) {
		// Auth
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)
		r.With(requireAuth).Post("/auth/logout", authH.Logout)
		r.With(requireAuth).Get("/auth/me", authH.Me)

		// Catalog (public reads, admin writes)
		r.Get("/products", catalogH.ListProducts)
		r.Get("/products/{id}", catalogH.GetProduct)
		r.Get("/categories", catalogH.ListCategories)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)
			r.Post("/products", catalogH.CreateProduct)
			r.Put("/products/{id}", catalogH.UpdateProduct)
			r.Post("/categories", catalogH.CreateCategory)
		})

		// Cart
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/cart", cartH.Get)
			r.Post("/cart/items", cartH.AddItem)
			r.Delete("/cart/items/{productID}", cartH.RemoveItem)
			r.Delete("/cart", cartH.Clear)
		})

		// Orders
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.With(idempotencyMW).Post("/orders", orderH.Create)
			r.Get("/orders", orderH.List)
			r.Get("/orders/{id}", orderH.Get)
			r.Post("/orders/{id}/cancel", orderH.Cancel)
			r.Get("/orders/{id}/payments", paymentH.ListForOrder)
		})
		r.With(requireAuth, requireAdmin).Put("/orders/{id}/status", orderH.UpdateStatus)

		// Payments. The callback stays public: Daraja posts to it directly.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.With(idempotencyMW).Post("/payments/stkpush", paymentH.STKPush)
			r.Get("/payments/{id}", paymentH.Get)
		})
		r.Post("/payments/mpesa/callback", paymentH.Callback)
	})

	return r
}
