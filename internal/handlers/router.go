package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ieraasyl/DispenserClient/internal/backend"
	"github.com/ieraasyl/DispenserClient/internal/middleware"
)

// RouterDeps are the collaborators of the reference backend router.
type RouterDeps struct {
	Store          *backend.Store
	Issuer         *backend.TokenIssuer
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter // nil disables rate limiting
	Redis          Pinger                  // nil when Redis is not configured
}

// NewRouter wires every route of the reference backend.
//
// Routes:
//
//	GET    /health
//	GET    /ready
//	GET    /metrics
//	POST   /api/accounts/signup          (public, rate limited)
//	POST   /api/accounts/login           (public, rate limited)
//	POST   /api/profiles                 (bearer)
//	GET    /api/profiles                 (bearer)
//	DELETE /api/profiles/{profileId}     (bearer)
//	POST   /api/dispensers               (bearer)
//	POST   /api/intakes                  (bearer)
//	GET    /api/intakes                  (bearer, JSON body filter)
//	GET    /api/intakes/{intakeId}       (bearer)
func NewRouter(deps RouterDeps) http.Handler {
	accounts := NewAccountHandler(deps.Store, deps.Issuer)
	profiles := NewProfileHandler(deps.Store)
	dispensers := NewDispenserHandler(deps.Store)
	intakes := NewIntakeHandler(deps.Store)
	health := NewHealthHandler(deps.Redis)

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(origins))
	r.Use(chimiddleware.Compress(5))
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", middleware.MetricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Limit("accounts"))
			}
			r.Post("/signup", accounts.SignUp)
			r.Post("/login", accounts.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(deps.Issuer))

			r.Post("/profiles", profiles.Create)
			r.Get("/profiles", profiles.List)
			r.Delete("/profiles/{profileId}", profiles.Delete)

			r.Post("/dispensers", dispensers.Register)

			r.Post("/intakes", intakes.Create)
			r.Get("/intakes", intakes.List)
			r.Get("/intakes/{intakeId}", intakes.Get)
		})
	})

	return r
}
