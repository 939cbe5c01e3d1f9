package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cims-otp/internal/application/otp"
	"github.com/cims-otp/internal/config"
	"github.com/cims-otp/internal/infrastructure/dynamo"
	jwtinfra "github.com/cims-otp/internal/infrastructure/jwt"
	"github.com/cims-otp/internal/infrastructure/memory"
	redisstore "github.com/cims-otp/internal/infrastructure/redis"
	"github.com/cims-otp/internal/infrastructure/sns"
	"github.com/cims-otp/internal/infrastructure/twilio"
	"github.com/cims-otp/internal/pkg/clock"
	"github.com/cims-otp/internal/pkg/logger"
	transporthttp "github.com/cims-otp/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(logger.New(os.Stdout, logger.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		AppEnv:  cfg.AppEnv,
		Service: "cims-otp",
	}))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("configuration rejected", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.New()

	store, closeStore, err := openStore(ctx, cfg, clk)
	if err != nil {
		slog.Error("store unavailable", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	smsSender, err := openSMSSender(ctx, cfg)
	if err != nil {
		slog.Warn("SMS sender not available, issuing codes will fail", "provider", cfg.SMSProvider, "error", err)
	}

	// Bearer-token gate (optional; only when the identity provider key is configured).
	var verifier *jwtinfra.Verifier
	if cfg.IdentityJWTPublicKeyPath != "" {
		verifier, err = jwtinfra.NewVerifier(cfg.IdentityJWTPublicKeyPath)
		if err != nil {
			slog.Error("identity token verifier", "error", err)
			os.Exit(1)
		}
	}

	deps := &transporthttp.Deps{
		Store:     store,
		SMSSender: smsSender,
		Clock:     clk,
	}
	if verifier != nil {
		deps.Verifier = verifier
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(ctx, cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		return
	}
	slog.Info("server stopped")
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, clk clock.Clocker) (transporthttp.Store, func(), error) {
	switch cfg.StoreDriver {
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		return dynamo.NewStore(client, cfg.DynamoTables), func() {}, nil
	case "redis":
		client, err := redisstore.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStore(client), func() { _ = client.Close() }, nil
	case "memory":
		slog.Warn("using in-memory store; codes are lost on restart and not shared between instances")
		return memory.NewStore(clk), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// openSMSSender returns nil, with an error describing why, when the provider
// is not usable. The service then rejects issuance with "SMS service not configured".
func openSMSSender(ctx context.Context, cfg *config.Config) (otp.SMSSender, error) {
	switch cfg.SMSProvider {
	case "twilio":
		if !cfg.TwilioConfigured() {
			return nil, errors.New("missing Twilio credentials")
		}
		return twilio.NewSender(cfg.TwilioBaseURL, cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom), nil
	case "sns":
		sender, err := sns.NewSender(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return nil, fmt.Errorf("unknown SMS provider %q", cfg.SMSProvider)
	}
}
