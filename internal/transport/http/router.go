package http

import (
	"context"
	"net/http"

	"github.com/cims-otp/internal/application/otp"
	"github.com/cims-otp/internal/config"
	"github.com/cims-otp/internal/pkg/clock"
	"github.com/cims-otp/internal/transport/http/handler"
	appmiddleware "github.com/cims-otp/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Store     Store
	SMSSender otp.SMSSender               // nil when no provider is configured
	Verifier  appmiddleware.TokenVerifier // nil disables the bearer-token gate
	Clock     clock.Clocker
}

// NewRouter builds and returns the application router. ctx bounds the
// rate limiter's background sweep.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "apikey", "x-client-info"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := func(next http.Handler) http.Handler { return next }
	if deps.Verifier != nil {
		verify := appmiddleware.Auth(deps.Verifier)
		requireRole := appmiddleware.RequireRole(cfg.IdentityAllowedRoles...)
		authMw = func(next http.Handler) http.Handler { return verify(requireRole(next)) }
	}

	otpRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, cfg.TrustProxyHeaders)

	otpSvc := otp.NewService(otp.ServiceDeps{
		Records:   deps.Store,
		Issuances: deps.Store,
		SMSSender: deps.SMSSender,
		Clock:     deps.Clock,
		Policy: otp.Policy{
			TTL:         cfg.OTP.TTL,
			MaxAttempts: cfg.OTP.MaxAttempts,
			IssueLimit:  cfg.OTP.IssueLimit,
			IssueWindow: cfg.OTP.IssueWindow,
		},
	})

	healthH := handler.NewHealthHandler(deps.Store)
	otpH := handler.NewOTPHandler(otpSvc)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(otpRL.Limit)
			r.Use(authMw)

			r.Post("/send-otp", otpH.Action)
			r.Post("/otp/{action}", otpH.Action)
		})
	})

	return r
}
