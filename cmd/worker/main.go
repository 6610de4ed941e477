package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmwangi/medsupply/internal/bootstrap"
	"github.com/dmwangi/medsupply/internal/infrastructure/daraja"
	"github.com/dmwangi/medsupply/internal/infrastructure/email"
	"github.com/dmwangi/medsupply/internal/repository/postgres"
	"github.com/dmwangi/medsupply/internal/service"
	"github.com/dmwangi/medsupply/internal/worker"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "medsupply-worker", "medsupply_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	userRepo := postgres.NewUserRepository(app.Pool)
	orderRepo := postgres.NewOrderRepository(app.Pool)
	mpesaRepo := postgres.NewMpesaRepository(app.Pool)

	// --- Daraja client ---
	darajaHTTP := &http.Client{Timeout: app.Config.Mpesa.HTTPTimeout}
	tokenSource := daraja.NewCachedTokenSource(darajaHTTP, app.Config.Mpesa.BaseURL(),
		app.Config.Mpesa.ConsumerKey, app.Config.Mpesa.ConsumerSecret, app.Metrics)
	darajaClient := daraja.NewClient(&app.Config.Mpesa, tokenSource, app.Metrics)

	// --- Services ---
	emailSender := email.NewSMTPSender(&app.Config.Email, app.Logger, app.Metrics)
	paymentService := service.NewPaymentService(mpesaRepo, orderRepo, userRepo, darajaClient, &app.Config.Mpesa, emailSender, app.Logger, app.Metrics)
	reconciler := worker.NewReconciler(mpesaRepo, paymentService, app.Redis, &app.Config.Worker, app.Logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return reconciler.Run(gCtx)
	})

	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
