package api

import (
	"net/http"
	"time"

	"circlechain-wallet-go/internal/auth"
	"circlechain-wallet-go/internal/idempotency"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Idempotency guards POST mutations; nil disables the guard.
	Idempotency idempotency.Store
}

// NewRouter wires every route onto a chi mux.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotency.HeaderKey},
		ExposedHeaders:   []string{idempotency.HeaderReplayed},
		AllowCredentials: true,
	}))

	requireAuth := auth.RequireAuth(h.auth)
	guard := func(next http.Handler) http.Handler { return next }
	if opts.Idempotency != nil {
		guard = idempotency.Middleware(opts.Idempotency, func(r *http.Request) string {
			id, _ := auth.IdentityFromCtx(r.Context())
			return id.UserId
		})
	}

	r.Get("/health", h.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.With(requireAuth).Get("/me", h.Me)
	})

	r.Route("/wallet", func(r chi.Router) {
		r.Get("/health", h.WalletHealth)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, guard)
			r.Get("/balance", h.GetBalance)
			r.Post("/payment", h.ProcessPayment)
			r.Post("/reward", h.ProcessReward)
			r.Post("/recycling-reward", h.ProcessRecyclingReward)
			r.Get("/transactions", h.GetTransactions)
			r.Get("/summary", h.GetSummary)
		})
	})

	r.Route("/producer", func(r chi.Router) {
		r.Use(requireAuth, guard)
		r.Post("/products", h.CreateProduct)
		r.Get("/products", h.ListMyProducts)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/{id}", h.DeleteProduct)
		r.Get("/raw-materials", h.ListAvailableMaterials)
		r.Post("/raw-materials/purchase", h.PurchaseMaterial)
	})

	r.Route("/consumer", func(r chi.Router) {
		r.Get("/products", h.BrowseProducts)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, guard)
			r.Post("/orders", h.CreateOrder)
			r.Get("/orders", h.ListOrders)
			r.Post("/recycle-requests", h.SubmitRecycleRequest)
			r.Get("/recycle-requests", h.ListRecycleRequests)
		})
	})

	r.Route("/recycler", func(r chi.Router) {
		r.Get("/recycle-requests", h.ListSubmittedRequests)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, guard)
			r.Put("/recycle-requests/{id}/accept", h.AcceptRequest)
			r.Put("/recycle-requests/{id}/complete", h.CompleteRequest)
			r.Get("/my-requests", h.ListMyRequests)
			r.Post("/raw-materials", h.CreateRawMaterial)
			r.Get("/raw-materials", h.ListMyMaterials)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/impact/summary", h.ImpactSummary)
	})

	return r
}
