package worker

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/domain/mpesa"
	"github.com/dmwangi/medsupply/internal/infrastructure/config"
	infraRedis "github.com/dmwangi/medsupply/internal/infrastructure/redis"
	"github.com/dmwangi/medsupply/internal/service"
	"github.com/dmwangi/medsupply/pkg/retry"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const reconcileLockKey = "mpesa:reconciler"

// Reconciler periodically resolves pending transactions whose callback never
// arrived (phone off, network drop, provider outage). Each run takes a Redis
// lock so only one instance polls the provider at a time.
type Reconciler struct {
	txRepo   mpesa.Repository
	payments *service.PaymentService
	redis    *goredis.Client
	cfg      *config.WorkerConfig
	logger   zerolog.Logger
}

func NewReconciler(
	txRepo mpesa.Repository,
	payments *service.PaymentService,
	redisClient *goredis.Client,
	cfg *config.WorkerConfig,
	logger zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		txRepo:   txRepo,
		payments: payments,
		redis:    redisClient,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run polls until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", r.cfg.ReconcileInterval).
		Dur("stale_after", r.cfg.StaleAfter).
		Msg("Reconciler started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.runOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error().Err(err).Msg("Reconcile run failed")
			}
		}
	}
}

// runOnce resolves one batch of stale pending transactions.
func (r *Reconciler) runOnce(ctx context.Context) error {
	lock := infraRedis.NewDistributedLock(r.redis, reconcileLockKey, r.cfg.LockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		r.logger.Debug().Msg("Another instance holds the reconcile lock, skipping run")
		return nil
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to release reconcile lock")
		}
	}()

	cutoff := time.Now().Add(-r.cfg.StaleAfter)
	stale, err := r.txRepo.ListStalePending(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	r.logger.Info().Int("count", len(stale)).Msg("Reconciling stale pending transactions")

	resolved := 0
	for _, t := range stale {
		if err := r.reconcileOne(ctx, t); err != nil {
			r.logger.Warn().Err(err).
				Str("checkout_request_id", t.CheckoutRequestID).
				Msg("Transaction still unresolved")
			continue
		}
		resolved++
	}

	r.logger.Info().
		Int("resolved", resolved).
		Int("total", len(stale)).
		Msg("Reconcile run finished")
	return nil
}

// reconcileOne queries the provider with bounded retries. Auth failures and
// conflicts are not retried: the former needs an operator, the latter means
// a callback already won.
func (r *Reconciler) reconcileOne(ctx context.Context, t *mpesa.Transaction) error {
	cfg := retry.DefaultConfig()
	cfg.RetryIf = func(err error) bool {
		if errors.Is(err, domainErrors.ErrUpstreamAuth) ||
			errors.Is(err, domainErrors.ErrReconciliationConflict) {
			return false
		}
		return true
	}

	err := retry.Do(ctx, cfg, func() error {
		return r.payments.Reconcile(ctx, t)
	})
	if errors.Is(err, domainErrors.ErrReconciliationConflict) {
		// A callback resolved it between the listing and the query.
		return nil
	}
	return err
}
