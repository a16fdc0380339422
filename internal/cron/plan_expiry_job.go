package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

const planExpiryBatchSize = 500

// PlanExpiryJobParams configure the expiry sweep.
type PlanExpiryJobParams struct {
	Logger    *logger.Logger
	Plans     planExpirer
	BatchSize int
}

type planExpirer interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// NewPlanExpiryJob builds the sweep that expires lapsed plans and promotes
// their queued successors.
func NewPlanExpiryJob(params PlanExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = planExpiryBatchSize
	}
	return &planExpiryJob{
		logg:      params.Logger,
		plans:     params.Plans,
		batchSize: batchSize,
		now:       time.Now,
	}, nil
}

type planExpiryJob struct {
	logg      *logger.Logger
	plans     planExpirer
	batchSize int
	now       func() time.Time
}

func (j *planExpiryJob) Name() string { return "plan-expiry" }

func (j *planExpiryJob) Run(ctx context.Context) error {
	expired, err := j.plans.ExpireDue(ctx, j.now().UTC(), j.batchSize)
	if err != nil {
		return fmt.Errorf("plan expiry sweep: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"expired": expired})
	j.logg.Info(logCtx, "plan expiry sweep complete")
	return nil
}
