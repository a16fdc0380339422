package plans

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/config"
	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
)

func setupPlansTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	userPlans := `
CREATE TABLE IF NOT EXISTS user_plans (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  institute_id TEXT NOT NULL,
  enroll_invite_id TEXT NOT NULL,
  payment_option_id TEXT NOT NULL,
  plan_snapshot TEXT,
  source TEXT NOT NULL DEFAULT 'USER',
  sub_org_id TEXT,
  status TEXT NOT NULL DEFAULT 'PENDING_FOR_PAYMENT',
  start_date DATETIME,
  end_date DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(userPlans).Error)
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (r *recordingEmitter) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) eventTypes() []enums.OutboxEventType {
	var out []enums.OutboxEventType
	for _, event := range r.events {
		out = append(out, event.EventType)
	}
	return out
}

func newTestPlanService(t *testing.T, db *gorm.DB, emitter *recordingEmitter) *Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		DB:     gormTxRunner{db: db},
		Repo:   NewRepository(db),
		Outbox: emitter,
		Config: config.PlansConfig{DefaultValidityDays: 365},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func newPaidPlan(t *testing.T, db *gorm.DB, userID, inviteID uuid.UUID, createdAt time.Time, accessDays int) *models.UserPlan {
	t.Helper()

	snapshot, err := Snapshot{AccessDays: &accessDays}.Encode()
	require.NoError(t, err)

	plan := &models.UserPlan{
		ID:              uuid.New(),
		UserID:          userID,
		InstituteID:     uuid.New(),
		EnrollInviteID:  inviteID,
		PaymentOptionID: uuid.New(),
		PlanSnapshot:    snapshot,
		Source:          enums.PlanSourceUser,
		Status:          enums.PlanStatusPendingForPayment,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func reloadPlan(t *testing.T, db *gorm.DB, id uuid.UUID) *models.UserPlan {
	t.Helper()

	var plan models.UserPlan
	require.NoError(t, db.Where("id = ?", id).First(&plan).Error)
	return &plan
}

func TestActivateOpensWindowFromSnapshot(t *testing.T) {
	db := setupPlansTestDB(t)
	emitter := &recordingEmitter{}
	svc := newTestPlanService(t, db, emitter)
	now := time.Now().UTC()

	plan := newPaidPlan(t, db, uuid.New(), uuid.New(), now, 30)

	activated, err := svc.ActivateOrStack(context.Background(), plan.ID, now)
	require.NoError(t, err)
	assert.True(t, activated)

	got := reloadPlan(t, db, plan.ID)
	assert.Equal(t, enums.PlanStatusActive, got.Status)
	require.NotNil(t, got.StartDate)
	require.NotNil(t, got.EndDate)
	assert.WithinDuration(t, now.AddDate(0, 0, 30), *got.EndDate, time.Second)

	assert.Equal(t, []enums.OutboxEventType{enums.EventPlanActivated}, emitter.eventTypes())
}

func TestSecondPaidPlanStacksBehindActive(t *testing.T) {
	db := setupPlansTestDB(t)
	emitter := &recordingEmitter{}
	svc := newTestPlanService(t, db, emitter)
	now := time.Now().UTC()

	userID := uuid.New()
	inviteID := uuid.New()
	first := newPaidPlan(t, db, userID, inviteID, now, 30)
	second := newPaidPlan(t, db, userID, inviteID, now.Add(time.Minute), 30)

	activated, err := svc.ActivateOrStack(context.Background(), first.ID, now)
	require.NoError(t, err)
	assert.True(t, activated)

	activated, err = svc.ActivateOrStack(context.Background(), second.ID, now)
	require.NoError(t, err)
	assert.False(t, activated)

	got := reloadPlan(t, db, second.ID)
	assert.Equal(t, enums.PlanStatusPending, got.Status)
	assert.Nil(t, got.StartDate)
	assert.Nil(t, got.EndDate)

	assert.Equal(t, []enums.OutboxEventType{enums.EventPlanActivated}, emitter.eventTypes())
}

func TestActivateReplayIsNoOp(t *testing.T) {
	db := setupPlansTestDB(t)
	emitter := &recordingEmitter{}
	svc := newTestPlanService(t, db, emitter)
	now := time.Now().UTC()

	plan := newPaidPlan(t, db, uuid.New(), uuid.New(), now, 30)

	_, err := svc.ActivateOrStack(context.Background(), plan.ID, now)
	require.NoError(t, err)
	require.Len(t, emitter.events, 1)

	activated, err := svc.ActivateOrStack(context.Background(), plan.ID, now)
	require.NoError(t, err)
	assert.True(t, activated)
	assert.Len(t, emitter.events, 1)
}

func TestExpireDuePromotesOldestPending(t *testing.T) {
	db := setupPlansTestDB(t)
	emitter := &recordingEmitter{}
	svc := newTestPlanService(t, db, emitter)
	now := time.Now().UTC()

	userID := uuid.New()
	inviteID := uuid.New()

	active := newPaidPlan(t, db, userID, inviteID, now.Add(-48*time.Hour), 1)
	start := now.Add(-48 * time.Hour)
	end := now.Add(-24 * time.Hour)
	require.NoError(t, db.Model(&models.UserPlan{}).Where("id = ?", active.ID).Updates(map[string]any{
		"status":     enums.PlanStatusActive,
		"start_date": start,
		"end_date":   end,
	}).Error)

	older := newPaidPlan(t, db, userID, inviteID, now.Add(-36*time.Hour), 15)
	newer := newPaidPlan(t, db, userID, inviteID, now.Add(-12*time.Hour), 15)
	for _, id := range []uuid.UUID{older.ID, newer.ID} {
		require.NoError(t, db.Model(&models.UserPlan{}).Where("id = ?", id).
			Update("status", enums.PlanStatusPending).Error)
	}

	expired, err := svc.ExpireDue(context.Background(), now, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, enums.PlanStatusExpired, reloadPlan(t, db, active.ID).Status)

	promoted := reloadPlan(t, db, older.ID)
	assert.Equal(t, enums.PlanStatusActive, promoted.Status)
	require.NotNil(t, promoted.StartDate)
	assert.WithinDuration(t, end, *promoted.StartDate, time.Second)
	require.NotNil(t, promoted.EndDate)
	assert.WithinDuration(t, end.AddDate(0, 0, 15), *promoted.EndDate, time.Second)

	assert.Equal(t, enums.PlanStatusPending, reloadPlan(t, db, newer.ID).Status)

	assert.Equal(t,
		[]enums.OutboxEventType{enums.EventPlanActivated, enums.EventPlanExpired},
		emitter.eventTypes())
}

func TestMarkPaymentFailedOnlyTouchesAwaitingPlans(t *testing.T) {
	db := setupPlansTestDB(t)
	emitter := &recordingEmitter{}
	svc := newTestPlanService(t, db, emitter)
	now := time.Now().UTC()

	awaiting := newPaidPlan(t, db, uuid.New(), uuid.New(), now, 30)
	require.NoError(t, svc.MarkPaymentFailed(context.Background(), awaiting.ID))
	assert.Equal(t, enums.PlanStatusPaymentFailed, reloadPlan(t, db, awaiting.ID).Status)

	active := newPaidPlan(t, db, uuid.New(), uuid.New(), now, 30)
	_, err := svc.ActivateOrStack(context.Background(), active.ID, now)
	require.NoError(t, err)

	require.NoError(t, svc.MarkPaymentFailed(context.Background(), active.ID))
	assert.Equal(t, enums.PlanStatusActive, reloadPlan(t, db, active.ID).Status)
}
