package sweep

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/crumbhaus/bakehouse-backend/internal/notifications"
	"github.com/crumbhaus/bakehouse-backend/internal/orders"
	"github.com/crumbhaus/bakehouse-backend/pkg/logger"
	"github.com/crumbhaus/bakehouse-backend/pkg/metrics"
)

const (
	jobName   = "pending_payment_sweep"
	batchSize = 100

	// EventPaymentFollowup flags an order stuck in pending_payment for
	// manual review. The sweep never cancels orders on its own.
	EventPaymentFollowup = "order.payment_followup"
)

// Config wires the stale pending-payment sweep.
type Config struct {
	Orders     orders.Repository
	Dispatcher notifications.Dispatcher
	Metrics    *metrics.JobMetrics
	Logger     *logger.Logger

	// Age is how long an order may sit in pending_payment before it is
	// flagged.
	Age time.Duration
}

// Job periodically flags orders stuck waiting on a gateway confirmation
// that never arrived.
type Job struct {
	orders     orders.Repository
	dispatcher notifications.Dispatcher
	metrics    *metrics.JobMetrics
	logger     *logger.Logger
	age        time.Duration
	now        func() time.Time
}

func NewJob(cfg Config) (*Job, error) {
	if cfg.Orders == nil {
		return nil, errors.New("sweep: orders repository is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("sweep: logger is required")
	}
	if cfg.Age <= 0 {
		return nil, errors.New("sweep: age must be positive")
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = notifications.NopDispatcher{}
	}
	return &Job{
		orders:     cfg.Orders,
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		age:        cfg.Age,
		now:        time.Now,
	}, nil
}

// Start runs the sweep on the given interval until the context is done.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.Run(ctx); err != nil {
				j.logger.Error(ctx, "pending-payment sweep failed", err)
			}
		}
	}
}

// Run executes one sweep pass and returns how many orders were flagged.
func (j *Job) Run(ctx context.Context) (int, error) {
	started := j.now()
	flagged, err := j.sweep(ctx)
	j.metrics.ObserveDuration(jobName, j.now().Sub(started))
	if err != nil {
		j.metrics.IncFailure(jobName)
		return flagged, err
	}
	j.metrics.IncSuccess(jobName)
	return flagged, nil
}

func (j *Job) sweep(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.age)
	flagged := 0
	var errs error

	for {
		// Flagged orders drop out of the listing, so each batch advances.
		stale, err := j.orders.ListStalePendingPayment(ctx, cutoff, batchSize)
		if err != nil {
			return flagged, multierr.Append(errs, err)
		}
		if len(stale) == 0 {
			return flagged, errs
		}

		batchFlagged := 0
		for _, order := range stale {
			if err := j.orders.MarkFollowupFlagged(ctx, order.ID, j.now().UTC()); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			batchFlagged++

			logCtx := j.logger.WithOrderID(ctx, order.ID.String())
			j.logger.Warn(logCtx, "order stuck in pending_payment, flagged for follow-up")

			j.dispatcher.Dispatch(ctx, notifications.Event{
				Kind:       EventPaymentFollowup,
				OrderID:    order.ID,
				UserID:     order.UserID,
				Status:     order.Status,
				TotalCents: order.TotalCents,
				OccurredAt: j.now().UTC(),
			})
			flagged++
		}

		if len(stale) < batchSize || batchFlagged == 0 {
			return flagged, errs
		}
		if err := ctx.Err(); err != nil {
			return flagged, multierr.Append(errs, err)
		}
	}
}
