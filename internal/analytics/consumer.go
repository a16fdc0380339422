package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/idempotency"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/payloads"
)

const paymentAnalyticsConsumer = "payment-analytics"

type factWriter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Consumer streams terminal payment facts into the warehouse.
type Consumer struct {
	writer       factWriter
	table        string
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a payment analytics consumer.
func NewConsumer(writer factWriter, table string, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if writer == nil {
		return nil, fmt.Errorf("fact writer required")
	}
	if table == "" {
		return nil, fmt.Errorf("facts table required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("analytics subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		writer:       writer,
		table:        table,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, paymentAnalyticsConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data); err != nil {
		c.logg.Error(logCtx, "writing payment fact failed", err)
		_ = c.idempotency.Delete(ctx, paymentAnalyticsConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage) error {
	switch eventType {
	case enums.EventPaymentConfirmed:
		var payload payloads.PaymentConfirmedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.insertFact(ctx, PaymentFact{
			PaymentLogID: payload.PaymentLogID,
			UserID:       payload.UserID,
			InstituteID:  payload.InstituteID,
			Vendor:       payload.Vendor,
			Status:       enums.PaymentStatusPaid.String(),
			Amount:       payload.Amount.StringFixed(2),
			Currency:     payload.Currency,
			OccurredAt:   payload.ConfirmedAt,
		})
	case enums.EventPaymentFailed:
		var payload payloads.PaymentFailedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		return c.insertFact(ctx, PaymentFact{
			PaymentLogID: payload.PaymentLogID,
			UserID:       payload.UserID,
			InstituteID:  payload.InstituteID,
			Vendor:       payload.Vendor,
			Status:       enums.PaymentStatusFailed.String(),
			Amount:       payload.Amount.StringFixed(2),
			Currency:     payload.Currency,
			OccurredAt:   payload.FailedAt,
		})
	default:
		return nil
	}
}

func (c *Consumer) insertFact(ctx context.Context, fact PaymentFact) error {
	fact.RecordedAt = time.Now().UTC()
	return c.writer.InsertRows(ctx, c.table, []any{fact})
}
