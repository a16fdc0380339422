package analytics

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

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/payloads"
)

type stubWriter struct {
	tables []string
	rows   []any
	err    error
}

func (s *stubWriter) InsertRows(_ context.Context, table string, rows []any) error {
	if s.err != nil {
		return s.err
	}
	s.tables = append(s.tables, table)
	s.rows = append(s.rows, rows...)
	return nil
}

func newTestConsumer(writer *stubWriter) *Consumer {
	return &Consumer{
		writer: writer,
		table:  "payment_facts",
		logg:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestHandleEventWritesConfirmedFact(t *testing.T) {
	writer := &stubWriter{}
	consumer := newTestConsumer(writer)

	payload := payloads.PaymentConfirmedEvent{
		PaymentLogID: uuid.New(),
		UserID:       uuid.New(),
		InstituteID:  uuid.New(),
		Vendor:       enums.GatewayCashfree.String(),
		Amount:       decimal.NewFromInt(1000),
		Currency:     "INR",
		ConfirmedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, consumer.handleEvent(context.Background(), enums.EventPaymentConfirmed, mustJSON(t, payload)))

	require.Len(t, writer.rows, 1)
	assert.Equal(t, []string{"payment_facts"}, writer.tables)

	fact, ok := writer.rows[0].(PaymentFact)
	require.True(t, ok)
	assert.Equal(t, payload.PaymentLogID, fact.PaymentLogID)
	assert.Equal(t, "PAID", fact.Status)
	assert.Equal(t, "1000.00", fact.Amount)
	assert.Equal(t, payload.ConfirmedAt, fact.OccurredAt)
	assert.False(t, fact.RecordedAt.IsZero())
}

func TestHandleEventWritesFailedFact(t *testing.T) {
	writer := &stubWriter{}
	consumer := newTestConsumer(writer)

	payload := payloads.PaymentFailedEvent{
		PaymentLogID: uuid.New(),
		UserID:       uuid.New(),
		InstituteID:  uuid.New(),
		Vendor:       enums.GatewayRazorpay.String(),
		Amount:       decimal.NewFromFloat(499.50),
		Currency:     "INR",
		FailedAt:     time.Now().UTC(),
	}
	require.NoError(t, consumer.handleEvent(context.Background(), enums.EventPaymentFailed, mustJSON(t, payload)))

	require.Len(t, writer.rows, 1)
	fact, ok := writer.rows[0].(PaymentFact)
	require.True(t, ok)
	assert.Equal(t, "FAILED", fact.Status)
	assert.Equal(t, "499.50", fact.Amount)
}

func TestHandleEventIgnoresOtherEvents(t *testing.T) {
	writer := &stubWriter{}
	consumer := newTestConsumer(writer)

	require.NoError(t, consumer.handleEvent(context.Background(), enums.EventPlanActivated, mustJSON(t, map[string]any{})))
	assert.Empty(t, writer.rows)
}

func TestHandleEventRejectsCorruptPayload(t *testing.T) {
	writer := &stubWriter{}
	consumer := newTestConsumer(writer)

	err := consumer.handleEvent(context.Background(), enums.EventPaymentConfirmed, json.RawMessage(`{broken`))
	require.Error(t, err)
	assert.Empty(t, writer.rows)
}
