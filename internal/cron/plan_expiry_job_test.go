package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

type fakePlanExpirer struct {
	lastNow   time.Time
	lastLimit int
	expired   int
	err       error
	called    int
}

func (f *fakePlanExpirer) ExpireDue(_ context.Context, now time.Time, limit int) (int, error) {
	f.called++
	f.lastNow = now
	f.lastLimit = limit
	return f.expired, f.err
}

func newPlanExpiryJob(t *testing.T, expirer *fakePlanExpirer) *planExpiryJob {
	t.Helper()
	jobIface, err := NewPlanExpiryJob(PlanExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Plans:  expirer,
	})
	if err != nil {
		t.Fatalf("NewPlanExpiryJob: %v", err)
	}
	job, ok := jobIface.(*planExpiryJob)
	if !ok {
		t.Fatalf("expected planExpiryJob, got %T", jobIface)
	}
	return job
}

func TestPlanExpiryJobSweepsWithFrozenClock(t *testing.T) {
	now := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	expirer := &fakePlanExpirer{expired: 3}
	job := newPlanExpiryJob(t, expirer)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if expirer.called != 1 {
		t.Fatalf("expected one sweep, got %d", expirer.called)
	}
	if !expirer.lastNow.Equal(now) {
		t.Fatalf("expected sweep at %s, got %s", now, expirer.lastNow)
	}
	if expirer.lastLimit != planExpiryBatchSize {
		t.Fatalf("expected default batch size %d, got %d", planExpiryBatchSize, expirer.lastLimit)
	}
}

func TestPlanExpiryJobPropagatesError(t *testing.T) {
	expirer := &fakePlanExpirer{err: errors.New("boom")}
	job := newPlanExpiryJob(t, expirer)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
