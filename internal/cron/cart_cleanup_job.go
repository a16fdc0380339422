package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/internal/enrollment"
	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

const (
	defaultAbandonedCartTTL = 72 * time.Hour
	cartCleanupBatchSize    = 250
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type staleOrderReader interface {
	ListStaleInitiated(ctx context.Context, olderThan time.Time, limit int) ([]models.PaymentLog, error)
}

// CartCleanupJobParams configure the abandoned-cart sweep.
type CartCleanupJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Ledger    staleOrderReader
	Entries   enrollment.Repository
	TTL       time.Duration
	BatchSize int
}

// NewCartCleanupJob builds the sweep that retires placeholder entries whose
// funding order never left INITIATED.
func NewCartCleanupJob(params CartCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger reader required")
	}
	if params.Entries == nil {
		return nil, fmt.Errorf("entries repository required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultAbandonedCartTTL
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = cartCleanupBatchSize
	}
	return &cartCleanupJob{
		logg:      params.Logger,
		db:        params.DB,
		ledger:    params.Ledger,
		entries:   params.Entries,
		ttl:       ttl,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type cartCleanupJob struct {
	logg      *logger.Logger
	db        txRunner
	ledger    staleOrderReader
	entries   enrollment.Repository
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

func (j *cartCleanupJob) Name() string { return "cart-cleanup" }

func (j *cartCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.ledger.ListStaleInitiated(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query stale orders: %w", err)
	}

	cleaned := 0
	for _, entry := range stale {
		if entry.UserPlanID == nil {
			continue
		}
		removed, err := j.cleanAbandonedOrder(ctx, *entry.UserPlanID)
		if err != nil {
			return fmt.Errorf("clean abandoned order %s: %w", entry.ID, err)
		}
		cleaned += removed
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"stale_orders":    len(stale),
		"entries_deleted": cleaned,
	})
	j.logg.Info(logCtx, "abandoned cart cleanup complete")
	return nil
}

func (j *cartCleanupJob) cleanAbandonedOrder(ctx context.Context, planID uuid.UUID) (int, error) {
	removed := 0
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.entries.WithTx(tx)
		placeholders, err := repo.ListEntriesByPlan(ctx, planID, enums.EntryStatusInvited)
		if err != nil {
			return err
		}
		if len(placeholders) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(placeholders))
		for _, placeholder := range placeholders {
			ids = append(ids, placeholder.ID)
		}
		if err := repo.UpdateEntriesStatus(ctx, ids, enums.EntryStatusDeleted); err != nil {
			return err
		}
		removed = len(ids)
		return nil
	})
	return removed, err
}
