package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/idempotency"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/payloads"
)

const enrollmentNotificationConsumer = "enrollment-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Consumer watches domain events and turns enrollment lifecycle transitions
// into learner notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an enrollment notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
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

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, enrollmentNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, enrollmentNotificationConsumer, eventID)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventPaymentReceiptIssued:
		var payload payloads.PaymentReceiptIssuedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		body := fmt.Sprintf("Your payment of %s %s was received.", payload.Amount.StringFixed(2), payload.Currency)
		if payload.TransactionID != "" {
			body = fmt.Sprintf("%s Reference %s.", body, payload.TransactionID)
		}
		return c.deliver(ctx, payload.UserID, "payment_receipt", "Payment received", body, data, logCtx)
	case enums.EventPlanActivated:
		var payload payloads.PlanActivatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		title := "Enrollment active"
		body := fmt.Sprintf("Your enrollment is active until %s.", payload.EndDate.Format("02 Jan 2006"))
		if payload.Stacked {
			title = "Enrollment extended"
			body = fmt.Sprintf("Your queued plan is now active until %s.", payload.EndDate.Format("02 Jan 2006"))
		}
		return c.deliver(ctx, payload.UserID, "plan_activated", title, body, data, logCtx)
	case enums.EventPlanExpired:
		var payload payloads.PlanExpiredEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		body := "Your enrollment has expired."
		if payload.PromotedPlanID != nil {
			body = "Your enrollment window ended and your queued plan has taken over."
		}
		return c.deliver(ctx, payload.UserID, "plan_expired", "Enrollment expired", body, data, logCtx)
	case enums.EventReferralBenefitGiven:
		var payload payloads.ReferralBenefitGivenEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		body := fmt.Sprintf("You received a %s referral reward.", payload.BenefitType)
		return c.deliver(ctx, payload.UserID, "referral_benefit", "Referral reward", body, data, logCtx)
	case enums.EventInvoiceGenerated:
		var payload payloads.InvoiceGeneratedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		body := fmt.Sprintf("Invoice %s for %s %s is ready.", payload.InvoiceNumber, payload.Amount.StringFixed(2), payload.Currency)
		return c.deliver(ctx, payload.UserID, "invoice_generated", "Invoice ready", body, data, logCtx)
	case enums.EventDonationReceived:
		var payload payloads.DonationReceivedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return err
		}
		body := fmt.Sprintf("Thank you for your donation of %s %s.", payload.Amount.StringFixed(2), payload.Currency)
		return c.deliver(ctx, payload.UserID, "donation_received", "Donation received", body, data, logCtx)
	default:
		c.logg.Info(logCtx, "event not handled")
		return nil
	}
}

// deliver writes the in-app notification row and marks it sent. Email fanout
// rides on the same row via the channel column once a mailer is wired.
func (c *Consumer) deliver(ctx context.Context, userID uuid.UUID, template, title, body string, metadata json.RawMessage, logCtx context.Context) error {
	if userID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	notification := &models.Notification{
		ID:       uuid.New(),
		UserID:   userID,
		Channel:  enums.NotificationChannelInApp,
		Template: template,
		Title:    title,
		Body:     body,
		Metadata: metadata,
		Status:   enums.NotificationStatusPending,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	if err := c.repo.MarkSent(ctx, notification.ID, time.Now().UTC()); err != nil {
		return err
	}
	c.logg.Info(logCtx, "notification delivered")
	return nil
}
