package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/portfolio/backend/internal/model"
	"github.com/portfolio/backend/internal/ratelimit"
	"github.com/portfolio/backend/internal/repository"
	"github.com/portfolio/backend/internal/service"
	"github.com/portfolio/backend/pkg/auth"
)

const maxRequestBody = 64 << 10

// Deps are the collaborators wired into the router.
type Deps struct {
	DB          repository.DB
	Messages    service.MessageService
	Auth        service.AuthService
	Donations   service.DonationService
	Tokens      *auth.Issuer
	Limiter     ratelimit.Limiter
	FrontendURL string

	// TrustedProxies is how many reverse proxies append to X-Forwarded-For.
	TrustedProxies int
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	h := New(d.DB)
	clientIP := ratelimit.ForwardedClientIP(d.TrustedProxies)
	messages := NewMessageHandler(d.Messages)
	messages.clientIP = clientIP
	accounts := NewAuthHandler(d.Auth, d.Tokens)
	donations := NewDonationHandler(d.Donations)

	limited := ratelimit.Middleware(d.Limiter, clientIP)
	requireAuth := auth.RequireAuth(d.Tokens)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{d.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Stripe signs the raw body, so the webhook sits outside the body cap.
		r.Post("/webhooks/stripe", donations.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(MaxBodySize(maxRequestBody))

			r.With(limited).Post("/messages", messages.Submit)
			r.With(limited).Post("/auth/register", accounts.Register)
			r.With(limited).Post("/auth/login", accounts.Login)
			r.With(limited).Post("/donations/checkout", donations.Checkout)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/auth/me", accounts.Me)

				r.Get("/messages", messages.List)
				r.Get("/messages/export", messages.Export)
				r.Get("/messages/{id}", messages.Get)
				r.Patch("/messages/{id}/read", messages.SetRead)
				r.Patch("/messages/{id}/star", messages.SetStarred)
				r.Patch("/messages/{id}/tags", messages.UpdateTags)
				r.With(auth.RequireRole(model.RoleAdmin)).Delete("/messages/{id}", messages.Delete)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	})
	return r
}
