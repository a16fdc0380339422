package effects

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/internal/applicants"
	"github.com/shikshalabs/enrollhub-backend/internal/enrollment"
	"github.com/shikshalabs/enrollhub-backend/internal/invoices"
	"github.com/shikshalabs/enrollhub-backend/internal/ledger"
	"github.com/shikshalabs/enrollhub-backend/internal/plans"
	"github.com/shikshalabs/enrollhub-backend/internal/referrals"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/metrics"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CoordinatorParams groups the collaborators the effects coordinator drives.
type CoordinatorParams struct {
	DB         txRunner
	Ledger     *ledger.Service
	Plans      *plans.Service
	Referrals  *referrals.Service
	Enrollment *enrollment.Service
	Invoices   *invoices.Service
	Applicants *applicants.Service
	Outbox     outboxEmitter
	Metrics    *metrics.PaymentMetrics
	Logger     *logger.Logger
}

// Coordinator runs the post-payment side effects for one applied status.
// Every step is best-effort: a failing step is logged and counted, the rest
// still run, and nothing rolls back the already committed status write.
type Coordinator struct {
	db         txRunner
	ledger     *ledger.Service
	plans      *plans.Service
	referrals  *referrals.Service
	enrollment *enrollment.Service
	invoices   *invoices.Service
	applicants *applicants.Service
	outbox     outboxEmitter
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
}

// NewCoordinator builds an effects coordinator.
func NewCoordinator(params CoordinatorParams) (*Coordinator, error) {
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger service is required")
	}
	if params.Plans == nil {
		return nil, errors.New("plan service is required")
	}
	if params.Referrals == nil {
		return nil, errors.New("referral service is required")
	}
	if params.Enrollment == nil {
		return nil, errors.New("enrollment service is required")
	}
	if params.Invoices == nil {
		return nil, errors.New("invoice service is required")
	}
	if params.Applicants == nil {
		return nil, errors.New("applicant service is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Coordinator{
		db:         params.DB,
		ledger:     params.Ledger,
		plans:      params.Plans,
		referrals:  params.Referrals,
		enrollment: params.Enrollment,
		invoices:   params.Invoices,
		applicants: params.Applicants,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// OnStatusApplied fans out the side effects for one applied payment status.
// The returned error aggregates step failures for observability; callers must
// not treat it as a reason to retry the status write.
func (c *Coordinator) OnStatusApplied(ctx context.Context, event payloads.PaymentStatusAppliedEvent) error {
	logCtx := c.logg.WithLedgerID(ctx, event.PaymentLogID.String())
	logCtx = c.logg.WithUserID(logCtx, event.UserID.String())

	switch {
	case event.Status.Equals(enums.PaymentStatusFailed.String()):
		return c.onFailed(logCtx, event)
	case event.Status.Equals(enums.PaymentStatusPaid.String()):
		if event.UserPlanID == nil {
			return c.onDonation(logCtx, event)
		}
		return c.onPaid(logCtx, event)
	default:
		c.logg.Info(logCtx, "no effects for status")
		return nil
	}
}

func (c *Coordinator) onFailed(ctx context.Context, event payloads.PaymentStatusAppliedEvent) error {
	if event.UserPlanID == nil {
		c.logg.Info(ctx, "failed payment had no plan, nothing to do")
		return nil
	}
	planID := *event.UserPlanID
	var errs error

	if err := c.plans.MarkPaymentFailed(ctx, planID); err != nil {
		errs = multierr.Append(errs, c.stepFailed(ctx, "plan_payment_failed", err))
	}

	if err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
		plan, err := c.plans.GetByID(ctx, planID)
		if err != nil {
			return err
		}
		return c.enrollment.RecordFailedPlacement(ctx, tx, plan)
	}); err != nil {
		errs = multierr.Append(errs, c.stepFailed(ctx, "failed_placement", err))
	}

	c.logg.Info(ctx, "failure effects processed")
	return errs
}

// onDonation handles a paid ledger entry with no funding plan.
func (c *Coordinator) onDonation(ctx context.Context, event payloads.PaymentStatusAppliedEvent) error {
	var errs error
	if err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
		return c.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDonationReceived,
			AggregateType: enums.AggregatePaymentLog,
			AggregateID:   event.PaymentLogID,
			Version:       1,
			Data: payloads.DonationReceivedEvent{
				PaymentLogID: event.PaymentLogID,
				UserID:       event.UserID,
				InstituteID:  event.InstituteID,
				Amount:       event.Amount,
				Currency:     event.Currency,
			},
		})
	}); err != nil {
		errs = multierr.Append(errs, c.stepFailed(ctx, "donation_ack", err))
	}
	c.logg.Info(ctx, "donation effects processed")
	return errs
}

func (c *Coordinator) onPaid(ctx context.Context, event payloads.PaymentStatusAppliedEvent) error {
	planID := *event.UserPlanID
	var errs error

	activated, activateErr := c.plans.ActivateOrStack(ctx, planID, time.Now().UTC())
	if activateErr != nil {
		errs = multierr.Append(errs, c.stepFailed(ctx, "plan_activation", activateErr))
	} else if activated {
		if err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
			plan, err := c.plans.GetByID(ctx, planID)
			if err != nil {
				return err
			}
			return c.enrollment.ShiftLearnerToActiveSessions(ctx, tx, plan)
		}); err != nil {
			errs = multierr.Append(errs, c.stepFailed(ctx, "session_shift", err))
		}
	} else {
		// Queued behind an active plan. The plan holds no sessions yet, but
		// the learner is done waiting in the holding session.
		if err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
			plan, err := c.plans.GetByID(ctx, planID)
			if err != nil {
				return err
			}
			return c.enrollment.MarkPlaceholderEntriesDeleted(ctx, tx, plan)
		}); err != nil {
			errs = multierr.Append(errs, c.stepFailed(ctx, "placeholder_cleanup", err))
		}
	}

	if err := c.referrals.PromoteForPlan(ctx, planID); err != nil {
		errs = multierr.Append(errs, c.stepFailed(ctx, "referral_promotion", err))
	}

	if event.Amount.IsPositive() {
		if err := c.generateInvoice(ctx, event.PaymentLogID); err != nil {
			errs = multierr.Append(errs, c.stepFailed(ctx, "invoice_generation", err))
		}
	}

	if err := c.issueReceipt(ctx, event); err != nil {
		errs = multierr.Append(errs, c.stepFailed(ctx, "payment_receipt", err))
	}

	if err := c.db.WithTx(ctx, func(tx *gorm.DB) error {
		return c.applicants.SyncEnrolled(ctx, tx, event.UserID)
	}); err != nil {
		errs = multierr.Append(errs, c.stepFailed(ctx, "applicant_sync", err))
	}

	c.logg.Info(ctx, "payment effects processed")
	return errs
}

// issueReceipt acknowledges the settled payment to the payer. The transaction
// reference and, when the ledger row carries none, the amount come from the
// stored gateway blob.
func (c *Coordinator) issueReceipt(ctx context.Context, event payloads.PaymentStatusAppliedEvent) error {
	return c.db.WithTx(ctx, func(tx *gorm.DB) error {
		entry, err := c.ledger.GetByID(ctx, event.PaymentLogID)
		if err != nil {
			return err
		}
		data, decodeErr := ledger.DecodeSpecificData(entry.PaymentSpecificData)
		if decodeErr != nil {
			c.logg.Error(ctx, "corrupt payment specific data, issuing receipt without reference", decodeErr)
		}
		amount := entry.PaymentAmount
		if amount.IsZero() {
			if fromBlob, ok := data.Amount(); ok {
				amount = fromBlob
			}
		}
		return c.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentReceiptIssued,
			AggregateType: enums.AggregatePaymentLog,
			AggregateID:   event.PaymentLogID,
			Version:       1,
			Data: payloads.PaymentReceiptIssuedEvent{
				PaymentLogID:  event.PaymentLogID,
				UserID:        event.UserID,
				InstituteID:   event.InstituteID,
				TransactionID: data.TransactionID(),
				Amount:        amount,
				Currency:      event.Currency,
			},
		})
	})
}

func (c *Coordinator) generateInvoice(ctx context.Context, paymentLogID uuid.UUID) error {
	return c.db.WithTx(ctx, func(tx *gorm.DB) error {
		entry, err := c.ledger.GetByID(ctx, paymentLogID)
		if err != nil {
			return err
		}
		_, err = c.invoices.Generate(ctx, tx, entry)
		return err
	})
}

// stepFailed logs and counts one failed effect step.
func (c *Coordinator) stepFailed(ctx context.Context, step string, err error) error {
	c.logg.Error(c.logg.WithField(ctx, "effect_step", step), "effect step failed", err)
	c.metrics.IncEffectFailure(step)
	return err
}
