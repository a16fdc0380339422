package statusproc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/internal/ledger"
	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/metrics"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// EffectsTrigger lets the processor kick the effects dispatcher after commit
// without waiting for the next poll tick.
type EffectsTrigger interface {
	DispatchPending(ctx context.Context) error
}

// ApplyInput is a normalized gateway verdict for one ledger entry.
type ApplyInput struct {
	Status      enums.PaymentStatus
	Response    json.RawMessage
	VendorID    *string
	OrderStatus *string
	Actor       *outbox.ActorRef
}

// ServiceParams groups dependencies for the status processor.
type ServiceParams struct {
	DB      txRunner
	Ledger  ledger.Repository
	Outbox  outboxEmitter
	Effects EffectsTrigger
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
}

// Service applies gateway status verdicts to the payment ledger. One verdict
// becomes one transaction: the parent entry, its children, and the outbox
// rows that drive downstream effects all commit together.
type Service struct {
	db      txRunner
	ledger  ledger.Repository
	outbox  outboxEmitter
	effects EffectsTrigger
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
}

// NewService builds a status processor service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db client is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger repository is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox service is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		db:      params.DB,
		ledger:  params.Ledger,
		outbox:  params.Outbox,
		effects: params.Effects,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// ApplyStatusByLedgerID applies a verdict addressed by the ledger primary key.
func (s *Service) ApplyStatusByLedgerID(ctx context.Context, id uuid.UUID, input ApplyInput) error {
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status").
			WithDetails(map[string]any{"status": input.Status.String()})
	}
	entry, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment log not found").
			WithDetails(map[string]any{"payment_log_id": id.String()})
	}
	return s.apply(ctx, entry, input)
}

// ApplyStatusByOrderID applies a verdict addressed by an order identifier.
// The ledger id doubles as the order id, so a uuid-shaped value tries the
// primary key first and falls back to the gateway-minted id in the blob.
func (s *Service) ApplyStatusByOrderID(ctx context.Context, orderID string, input ApplyInput) error {
	if !input.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status").
			WithDetails(map[string]any{"status": input.Status.String()})
	}
	var entry *models.PaymentLog
	if id, err := uuid.Parse(orderID); err == nil {
		found, err := s.ledger.FindByID(ctx, id)
		if err != nil {
			return err
		}
		entry = found
	}
	if entry == nil {
		found, err := s.ledger.FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		entry = found
	}
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment log not found for order").
			WithDetails(map[string]any{"order_id": orderID})
	}
	return s.apply(ctx, entry, input)
}

func (s *Service) apply(ctx context.Context, entry *models.PaymentLog, input ApplyInput) error {
	logCtx := s.logg.WithLedgerID(ctx, entry.ID.String())

	if entry.PaymentStatus != nil && entry.PaymentStatus.Equals(input.Status.String()) {
		s.logg.Info(s.logg.WithField(logCtx, "status", input.Status.String()), "status already applied, skipping")
		return nil
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ledger.WithTx(tx)

		current, err := repo.FindByID(ctx, entry.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment log not found").
				WithDetails(map[string]any{"payment_log_id": entry.ID.String()})
		}
		if current.PaymentStatus != nil && current.PaymentStatus.Equals(input.Status.String()) {
			return nil
		}

		if err := s.applyToEntry(ctx, repo, current, input, true); err != nil {
			return err
		}
		affected := []*models.PaymentLog{current}

		data, decodeErr := ledger.DecodeSpecificData(current.PaymentSpecificData)
		if decodeErr != nil {
			s.logg.Error(logCtx, "corrupt payment specific data, skipping child fan-out", decodeErr)
		}
		if data.HasChildren() {
			children, err := repo.FindByIDs(ctx, data.ChildPaymentLogIDs)
			if err != nil {
				return err
			}
			for i := range children {
				if err := s.applyToEntry(ctx, repo, &children[i], input, false); err != nil {
					return err
				}
				affected = append(affected, &children[i])
			}
		}

		for _, touched := range affected {
			if err := s.emitStatusApplied(ctx, tx, touched, input); err != nil {
				return err
			}
		}
		return s.emitAnalyticsFact(ctx, tx, current, input)
	})
	if err != nil {
		return err
	}

	s.metrics.IncStatusApplied(input.Status.String())
	s.logg.Info(s.logg.WithField(logCtx, "status", input.Status.String()), "payment status applied")

	if s.effects != nil {
		if err := s.effects.DispatchPending(ctx); err != nil {
			s.logg.Error(logCtx, "post-commit effects dispatch failed, poller will retry", err)
		}
	}
	return nil
}

// applyToEntry mutates the processor-owned columns of one ledger row. The raw
// gateway response is stored only on the parent; children keep their own blob.
func (s *Service) applyToEntry(ctx context.Context, repo ledger.Repository, entry *models.PaymentLog, input ApplyInput, parent bool) error {
	status := input.Status
	entry.Status = enums.PaymentLogStatusProcessed
	entry.PaymentStatus = &status
	if input.VendorID != nil {
		entry.VendorID = input.VendorID
	}
	if input.OrderStatus != nil {
		entry.OrderStatus = input.OrderStatus
	}
	if parent && len(input.Response) > 0 {
		data, err := ledger.DecodeSpecificData(entry.PaymentSpecificData)
		if err != nil {
			data = ledger.SpecificData{}
		}
		raw, err := data.WithResponse(input.Response).Encode()
		if err != nil {
			return err
		}
		entry.PaymentSpecificData = raw
	}
	return repo.UpdateStatusFields(ctx, entry)
}

// emitStatusApplied writes the effects row for one ledger entry. Every
// affected entry gets a row since children fund their own plans, and every
// distinct transition gets a fresh row; same-status replays never reach here.
func (s *Service) emitStatusApplied(ctx context.Context, tx *gorm.DB, entry *models.PaymentLog, input ApplyInput) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentStatusApplied,
		AggregateType: enums.AggregatePaymentLog,
		AggregateID:   entry.ID,
		Actor:         input.Actor,
		Version:       1,
		Data: payloads.PaymentStatusAppliedEvent{
			PaymentLogID: entry.ID,
			UserID:       entry.UserID,
			InstituteID:  entry.InstituteID,
			UserPlanID:   entry.UserPlanID,
			Status:       input.Status,
			Amount:       entry.PaymentAmount,
			Currency:     entry.Currency,
		},
	})
}

// emitAnalyticsFact records the terminal fact for the analytics pipeline.
// PENDING is not terminal and produces no fact.
func (s *Service) emitAnalyticsFact(ctx context.Context, tx *gorm.DB, entry *models.PaymentLog, input ApplyInput) error {
	now := time.Now().UTC()
	switch input.Status {
	case enums.PaymentStatusPaid:
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentConfirmed,
			AggregateType: enums.AggregatePaymentLog,
			AggregateID:   entry.ID,
			Actor:         input.Actor,
			Version:       1,
			Data: payloads.PaymentConfirmedEvent{
				PaymentLogID: entry.ID,
				UserID:       entry.UserID,
				InstituteID:  entry.InstituteID,
				Vendor:       entry.Vendor.String(),
				Amount:       entry.PaymentAmount,
				Currency:     entry.Currency,
				ConfirmedAt:  now,
			},
		})
	case enums.PaymentStatusFailed:
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentLog,
			AggregateID:   entry.ID,
			Actor:         input.Actor,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				PaymentLogID: entry.ID,
				UserID:       entry.UserID,
				InstituteID:  entry.InstituteID,
				Vendor:       entry.Vendor.String(),
				Amount:       entry.PaymentAmount,
				Currency:     entry.Currency,
				FailedAt:     now,
			},
		})
	default:
		return nil
	}
}
