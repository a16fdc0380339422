package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/shikshalabs/enrollhub-backend/pkg/db"
	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/payloads"
)

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the invoice service.
type ServiceParams struct {
	Repo   Repository
	Outbox outboxEmitter
	Logger *logger.Logger
}

// Service generates billing documents for confirmed payments. Generation is
// exactly-once per ledger entry, enforced by the unique payment_log_id.
type Service struct {
	repo   Repository
	outbox outboxEmitter
	logg   *logger.Logger
}

// NewService builds an invoice service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("invoice repository is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, outbox: params.Outbox, logg: params.Logger}, nil
}

// Generate creates the invoice for a paid ledger entry inside the caller's
// transaction. Replays return the existing invoice.
func (s *Service) Generate(ctx context.Context, tx *gorm.DB, entry *models.PaymentLog) (*models.Invoice, error) {
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger entry is required")
	}
	repo := s.repo.WithTx(tx)

	existing, err := repo.FindByPaymentLogID(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	sequence, err := repo.CountForInstitute(ctx, entry.InstituteID)
	if err != nil {
		return nil, err
	}
	invoice := &models.Invoice{
		ID:            uuid.New(),
		InstituteID:   entry.InstituteID,
		UserID:        entry.UserID,
		PaymentLogID:  entry.ID,
		InvoiceNumber: invoiceNumber(entry.InstituteID, sequence+1),
		Amount:        entry.PaymentAmount,
		Currency:      entry.Currency,
		Status:        enums.InvoiceStatusGenerated,
	}
	if err := repo.Create(ctx, invoice); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_invoices_payment_log_id") {
			return repo.FindByPaymentLogID(ctx, entry.ID)
		}
		return nil, err
	}

	if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventInvoiceGenerated,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Version:       1,
		Data: payloads.InvoiceGeneratedEvent{
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.InvoiceNumber,
			UserID:        invoice.UserID,
			PaymentLogID:  invoice.PaymentLogID,
			Amount:        invoice.Amount,
			Currency:      invoice.Currency,
		},
	}); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
		"payment_log_id": entry.ID.String(),
	})
	s.logg.Info(logCtx, "invoice generated")
	return invoice, nil
}

// GetByPaymentLogID loads the invoice for a ledger entry.
func (s *Service) GetByPaymentLogID(ctx context.Context, paymentLogID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindByPaymentLogID(ctx, paymentLogID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return invoice, nil
}

// invoiceNumber builds a human-readable sequential number scoped to the
// institute and billing year.
func invoiceNumber(instituteID uuid.UUID, sequence int64) string {
	short := instituteID.String()[:8]
	return fmt.Sprintf("INV-%s-%d-%06d", short, time.Now().UTC().Year(), sequence)
}
