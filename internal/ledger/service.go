package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/pagination"
)

// ServiceParams groups dependencies for the ledger service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service is the read/write surface over the payment ledger.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds a ledger service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// Create persists a new ledger entry.
func (s *Service) Create(ctx context.Context, entry *models.PaymentLog) error {
	if entry == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "ledger entry is required")
	}
	return s.repo.Create(ctx, entry)
}

// GetByID loads an entry by its primary key.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentLog, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment log not found")
	}
	return entry, nil
}

// GetByOrderID falls back to the gateway-minted order id stored in the
// specific-data blob.
func (s *Service) GetByOrderID(ctx context.Context, orderID string) (*models.PaymentLog, error) {
	entry, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment log not found for order")
	}
	return entry, nil
}

// SpecificData decodes the entry's blob, logging and substituting defaults
// when the stored JSON is corrupt.
func (s *Service) SpecificData(ctx context.Context, entry *models.PaymentLog) SpecificData {
	data, err := DecodeSpecificData(entry.PaymentSpecificData)
	if err != nil {
		logCtx := s.logg.WithLedgerID(ctx, entry.ID.String())
		s.logg.Error(logCtx, "corrupt payment specific data, substituting defaults", err)
		return SpecificData{}
	}
	return data
}

// ChildEntries loads the child ledger rows referenced by a multi-item parent.
func (s *Service) ChildEntries(ctx context.Context, parent *models.PaymentLog) ([]models.PaymentLog, error) {
	data := s.SpecificData(ctx, parent)
	if !data.HasChildren() {
		return nil, nil
	}
	return s.repo.FindByIDs(ctx, data.ChildPaymentLogIDs)
}

// List pages through ledger entries for the admin surface.
func (s *Service) List(ctx context.Context, params ListQuery) ([]models.PaymentLog, *pagination.Cursor, error) {
	return s.repo.List(ctx, params)
}
