package effects

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/config"
	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/payloads"
)

func setupDispatcherTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db := setupEffectsTestDB(t)
	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`).Error)
	return db
}

func newTestDispatcher(t *testing.T, db *gorm.DB, emitter *recordingEmitter) (*Dispatcher, *outbox.Repository) {
	t.Helper()

	repo := outbox.NewRepository(db)
	dispatcher, err := NewDispatcher(DispatcherParams{
		Repo:        repo,
		Coordinator: newTestCoordinator(t, db, emitter),
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Config:      config.OutboxConfig{EffectsBatchSize: 10, PollIntervalMS: 50},
	})
	require.NoError(t, err)
	return dispatcher, repo
}

func insertOutboxRow(t *testing.T, db *gorm.DB, eventType enums.OutboxEventType, aggregateID uuid.UUID, payload []byte) uuid.UUID {
	t.Helper()

	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregatePaymentLog,
		AggregateID:   aggregateID,
		Payload:       payload,
	}
	require.NoError(t, db.Create(&row).Error)
	return row.ID
}

func statusAppliedPayload(t *testing.T, event payloads.PaymentStatusAppliedEvent) []byte {
	t.Helper()

	data, err := json.Marshal(event)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return envelope
}

func TestDispatchPendingRunsEffectsAndMarksPublished(t *testing.T) {
	db := setupDispatcherTestDB(t)
	emitter := &recordingEmitter{}
	dispatcher, _ := newTestDispatcher(t, db, emitter)
	fixture := newPaidFixture(t, db)

	rowID := insertOutboxRow(t, db, enums.EventPaymentStatusApplied, fixture.entry.ID,
		statusAppliedPayload(t, paidEvent(fixture)))

	require.NoError(t, dispatcher.DispatchPending(context.Background()))

	var plan models.UserPlan
	require.NoError(t, db.Where("id = ?", fixture.plan.ID).First(&plan).Error)
	assert.Equal(t, enums.PlanStatusActive, plan.Status)

	var row models.OutboxEvent
	require.NoError(t, db.Where("id = ?", rowID).First(&row).Error)
	assert.NotNil(t, row.PublishedAt)
}

func TestDispatchPendingDropsCorruptPayload(t *testing.T) {
	db := setupDispatcherTestDB(t)
	emitter := &recordingEmitter{}
	dispatcher, _ := newTestDispatcher(t, db, emitter)

	rowID := insertOutboxRow(t, db, enums.EventPaymentStatusApplied, uuid.New(), []byte(`{not json`))

	require.NoError(t, dispatcher.DispatchPending(context.Background()))

	var row models.OutboxEvent
	require.NoError(t, db.Where("id = ?", rowID).First(&row).Error)
	assert.NotNil(t, row.PublishedAt)
	assert.Empty(t, emitter.events)
}

func TestDispatchPendingIgnoresOtherEventTypes(t *testing.T) {
	db := setupDispatcherTestDB(t)
	emitter := &recordingEmitter{}
	dispatcher, _ := newTestDispatcher(t, db, emitter)

	rowID := insertOutboxRow(t, db, enums.EventPlanActivated, uuid.New(), []byte(`{}`))

	require.NoError(t, dispatcher.DispatchPending(context.Background()))

	var row models.OutboxEvent
	require.NoError(t, db.Where("id = ?", rowID).First(&row).Error)
	assert.Nil(t, row.PublishedAt)
}
