package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vipra-store/internal/auth"
	"vipra-store/internal/checkout"
	"vipra-store/internal/config"
	"vipra-store/internal/db"
	"vipra-store/internal/logger"
	"vipra-store/internal/metrics"
	"vipra-store/internal/middleware"
	"vipra-store/internal/order"
	"vipra-store/internal/payment"
	"vipra-store/internal/product"
	"vipra-store/internal/user"
	"vipra-store/internal/web"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var (
	initDBFunc      = db.InitDB
	startServerFunc = serve
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger.Init(cfg.AppEnv, cfg.Debug)
	defer logger.Sync()

	database := initDBFunc(cfg)
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewLimiter()
	go limiter.Run(ctx)

	router, err := newServer(cfg, database, limiter)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.L().Info("storefront listening",
		zap.String("addr", srv.Addr),
		zap.String("env", cfg.AppEnv),
	)
	return startServerFunc(ctx, srv)
}

// newServer wires repositories, services and handlers for cfg.
func newServer(cfg *config.Config, database *sql.DB, limiter *middleware.Limiter) (http.Handler, error) {
	tokens := auth.NewTokenIssuer(cfg.SecretKey, auth.DefaultTokenTTL)

	productRepo := product.NewRepository(database)
	orderRepo := order.NewRepository(database)
	userRepo := user.NewRepository(database)

	gateway := payment.NewStripeGateway(cfg.Stripe)

	checkoutSvc := checkout.NewService(productRepo, orderRepo, gateway, checkout.Options{
		BaseURL:  cfg.BaseURL,
		Currency: cfg.Stripe.Currency,
		LoginURL: "/login/",
	})
	userSvc := user.NewService(userRepo, tokens)

	pages, err := web.NewHandler(checkoutSvc, userSvc, web.Options{
		SecretKey:     cfg.SecretKey,
		SecureCookies: cfg.IsProduction(),
		TokenTTL:      tokens.TTL(),
	})
	if err != nil {
		return nil, err
	}

	return setupRouter(cfg, tokens, limiter, pages), nil
}

func setupRouter(cfg *config.Config, tokens middleware.TokenParser, limiter *middleware.Limiter, pages *web.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(
		logger.RequestIDMiddleware,
		middleware.LoggingMiddleware,
		metrics.Middleware,
	)

	r.Get("/health", web.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(
			middleware.AllowedHosts(cfg.AllowedHosts, cfg.Debug),
			middleware.AuthMiddleware(tokens),
			limiter.Middleware,
			middleware.CSRF(auth.DeriveKey(cfg.SecretKey, "csrf"), cfg.IsProduction()),
		)
		pages.Routes(r)
	})

	return r
}

// serve runs srv until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
