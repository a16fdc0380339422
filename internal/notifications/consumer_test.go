package notifications

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/payloads"
)

type fakeNotificationRepo struct {
	created []models.Notification
	sent    []uuid.UUID
}

func (f *fakeNotificationRepo) Create(_ context.Context, notification *models.Notification) error {
	f.created = append(f.created, *notification)
	return nil
}

func (f *fakeNotificationRepo) MarkSent(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func newTestConsumer(repo repository) *Consumer {
	return &Consumer{
		repo: repo,
		logg: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func TestHandlePlanActivatedWritesNotification(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(repo)
	userID := uuid.New()

	data, err := json.Marshal(payloads.PlanActivatedEvent{
		UserPlanID:     uuid.New(),
		UserID:         userID,
		EnrollInviteID: uuid.New(),
		EndDate:        time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.NoError(t, consumer.handleEvent(context.Background(), enums.EventPlanActivated, data, context.Background()))

	require.Len(t, repo.created, 1)
	row := repo.created[0]
	assert.Equal(t, userID, row.UserID)
	assert.Equal(t, "plan_activated", row.Template)
	assert.Equal(t, "Enrollment active", row.Title)
	assert.Contains(t, row.Body, "01 Mar 2027")
	assert.Equal(t, enums.NotificationChannelInApp, row.Channel)
	require.Len(t, repo.sent, 1)
	assert.Equal(t, row.ID, repo.sent[0])
}

func TestHandleStackedActivationUsesExtensionCopy(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(repo)

	data, err := json.Marshal(payloads.PlanActivatedEvent{
		UserPlanID: uuid.New(),
		UserID:     uuid.New(),
		EndDate:    time.Date(2027, time.June, 15, 0, 0, 0, 0, time.UTC),
		Stacked:    true,
	})
	require.NoError(t, err)

	require.NoError(t, consumer.handleEvent(context.Background(), enums.EventPlanActivated, data, context.Background()))

	require.Len(t, repo.created, 1)
	assert.Equal(t, "Enrollment extended", repo.created[0].Title)
	assert.Contains(t, repo.created[0].Body, "queued plan")
}

func TestHandleInvoiceGeneratedFormatsAmount(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(repo)

	data, err := json.Marshal(payloads.InvoiceGeneratedEvent{
		InvoiceID:     uuid.New(),
		InvoiceNumber: "INV-abc12345-2026-000042",
		UserID:        uuid.New(),
		PaymentLogID:  uuid.New(),
		Amount:        decimal.NewFromFloat(1234.5),
		Currency:      "INR",
	})
	require.NoError(t, err)

	require.NoError(t, consumer.handleEvent(context.Background(), enums.EventInvoiceGenerated, data, context.Background()))

	require.Len(t, repo.created, 1)
	assert.Contains(t, repo.created[0].Body, "INV-abc12345-2026-000042")
	assert.Contains(t, repo.created[0].Body, "1234.50 INR")
}

func TestHandlePaymentReceiptIncludesReference(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(repo)
	userID := uuid.New()

	data, err := json.Marshal(payloads.PaymentReceiptIssuedEvent{
		PaymentLogID:  uuid.New(),
		UserID:        userID,
		InstituteID:   uuid.New(),
		TransactionID: "cf_tx_001",
		Amount:        decimal.NewFromInt(1000),
		Currency:      "INR",
	})
	require.NoError(t, err)

	require.NoError(t, consumer.handleEvent(context.Background(), enums.EventPaymentReceiptIssued, data, context.Background()))

	require.Len(t, repo.created, 1)
	row := repo.created[0]
	assert.Equal(t, userID, row.UserID)
	assert.Equal(t, "payment_receipt", row.Template)
	assert.Equal(t, "Payment received", row.Title)
	assert.Contains(t, row.Body, "1000.00 INR")
	assert.Contains(t, row.Body, "cf_tx_001")
}

func TestHandlePaymentReceiptWithoutReference(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(repo)

	data, err := json.Marshal(payloads.PaymentReceiptIssuedEvent{
		PaymentLogID: uuid.New(),
		UserID:       uuid.New(),
		InstituteID:  uuid.New(),
		Amount:       decimal.NewFromFloat(49.99),
		Currency:     "INR",
	})
	require.NoError(t, err)

	require.NoError(t, consumer.handleEvent(context.Background(), enums.EventPaymentReceiptIssued, data, context.Background()))

	require.Len(t, repo.created, 1)
	assert.Contains(t, repo.created[0].Body, "49.99 INR")
	assert.NotContains(t, repo.created[0].Body, "Reference")
}

func TestHandleUnknownEventIsIgnored(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(repo)

	require.NoError(t, consumer.handleEvent(context.Background(), enums.EventPaymentStatusApplied, json.RawMessage(`{}`), context.Background()))
	assert.Empty(t, repo.created)
}

func TestDeliverRejectsMissingUser(t *testing.T) {
	repo := &fakeNotificationRepo{}
	consumer := newTestConsumer(repo)

	data, err := json.Marshal(payloads.PlanExpiredEvent{UserPlanID: uuid.New()})
	require.NoError(t, err)

	err = consumer.handleEvent(context.Background(), enums.EventPlanExpired, data, context.Background())
	require.Error(t, err)
	assert.Empty(t, repo.created)
}
