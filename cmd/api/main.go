package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmwangi/medsupply/internal/bootstrap"
	"github.com/dmwangi/medsupply/internal/controller"
	"github.com/dmwangi/medsupply/internal/infrastructure/daraja"
	"github.com/dmwangi/medsupply/internal/infrastructure/email"
	infraRedis "github.com/dmwangi/medsupply/internal/infrastructure/redis"
	"github.com/dmwangi/medsupply/internal/repository/postgres"
	"github.com/dmwangi/medsupply/internal/service"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "medsupply-api", "medsupply")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	userRepo := postgres.NewUserRepository(app.Pool)
	catalogRepo := postgres.NewCatalogRepository(app.Pool)
	cartRepo := postgres.NewCartRepository(app.Pool)
	orderRepo := postgres.NewOrderRepository(app.Pool)
	mpesaRepo := postgres.NewMpesaRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Infrastructure ---
	blocklist := infraRedis.NewTokenBlocklist(app.Redis)
	idempotencyStore := infraRedis.NewIdempotencyStore(app.Redis, 24*time.Hour)
	emailSender := email.NewSMTPSender(&app.Config.Email, app.Logger, app.Metrics)
	darajaHTTP := &http.Client{Timeout: app.Config.Mpesa.HTTPTimeout}
	tokenSource := daraja.NewCachedTokenSource(darajaHTTP, app.Config.Mpesa.BaseURL(),
		app.Config.Mpesa.ConsumerKey, app.Config.Mpesa.ConsumerSecret, app.Metrics)
	darajaClient := daraja.NewClient(&app.Config.Mpesa, tokenSource, app.Metrics)

	// --- Services ---
	authService := service.NewAuthService(userRepo, blocklist, &app.Config.Auth, app.Logger)
	catalogService := service.NewCatalogService(catalogRepo, app.Redis, app.Logger)
	cartService := service.NewCartService(cartRepo, catalogRepo)
	orderService := service.NewOrderService(orderRepo, cartRepo, catalogRepo, userRepo, txManager, emailSender, app.Logger, app.Metrics)
	paymentService := service.NewPaymentService(mpesaRepo, orderRepo, userRepo, darajaClient, &app.Config.Mpesa, emailSender, app.Logger, app.Metrics)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:             app.Pool,
		RedisClient:      app.Redis,
		AuthService:      authService,
		CatalogService:   catalogService,
		CartService:      cartService,
		OrderService:     orderService,
		PaymentService:   paymentService,
		TokenBlocklist:   blocklist,
		IdempotencyStore: idempotencyStore,
		Metrics:          app.Metrics,
		ServerConfig:     app.Config.Server,
		Logger:           app.Logger,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
