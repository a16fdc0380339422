package effects

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/shikshalabs/enrollhub-backend/pkg/config"
	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/metrics"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/payloads"
)

// Dispatcher drains payment.status.applied outbox rows into the coordinator.
// These rows never reach pub/sub; they exist so the status write and its
// effects trigger commit atomically. A processed row is always marked
// published: effect failures are logged by the coordinator, not retried here.
type Dispatcher struct {
	repo        *outbox.Repository
	coordinator *Coordinator
	metrics     *metrics.PaymentMetrics
	logg        *logger.Logger
	batchSize   int
	interval    time.Duration

	mu sync.Mutex
}

// DispatcherParams groups dependencies for the effects dispatcher.
type DispatcherParams struct {
	Repo        *outbox.Repository
	Coordinator *Coordinator
	Metrics     *metrics.PaymentMetrics
	Logger      *logger.Logger
	Config      config.OutboxConfig
}

// NewDispatcher builds an effects dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	batchSize := params.Config.EffectsBatchSize
	if batchSize <= 0 {
		batchSize = 25
	}
	interval := time.Duration(params.Config.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Dispatcher{
		repo:        params.Repo,
		coordinator: params.Coordinator,
		metrics:     params.Metrics,
		logg:        params.Logger,
		batchSize:   batchSize,
		interval:    interval,
	}, nil
}

// Run polls for pending rows until the context is canceled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logg.Info(ctx, "effects dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logg.Info(ctx, "effects dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil {
				d.logg.Error(ctx, "effects batch failed", err)
			}
		}
	}
}

// DispatchPending processes one batch of pending rows. Safe to call from the
// status processor's post-commit hook; concurrent calls serialize.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		rows, err := d.repo.FetchUnpublishedByTypes(d.batchSize, []enums.OutboxEventType{enums.EventPaymentStatusApplied})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			d.processRow(ctx, &rows[i])
		}
		if len(rows) < d.batchSize {
			return nil
		}
	}
}

func (d *Dispatcher) processRow(ctx context.Context, row *models.OutboxEvent) {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"outbox_event_id": row.ID.String(),
		"aggregate_id":    row.AggregateID.String(),
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		d.logg.Error(logCtx, "corrupt outbox envelope, dropping row", err)
	} else {
		var event payloads.PaymentStatusAppliedEvent
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			d.logg.Error(logCtx, "corrupt status payload, dropping row", err)
		} else if err := d.coordinator.OnStatusApplied(ctx, event); err != nil {
			d.logg.Warn(logCtx, "some effect steps failed, continuing")
		}
	}

	if err := d.repo.MarkPublished(row.ID); err != nil {
		d.logg.Error(logCtx, "marking effects row published failed", err)
		return
	}
	d.metrics.IncOutboxPublished("effects")
}
