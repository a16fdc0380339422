package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/internal/enrollment"
	"github.com/shikshalabs/enrollhub-backend/internal/plans"
	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
)

// DeliveryHandler performs the type-specific delivery step for a non-monetary
// benefit. Monetary benefits never reach a handler.
type DeliveryHandler interface {
	BenefitType() enums.BenefitType
	Deliver(ctx context.Context, tx *gorm.DB, log *models.ReferralBenefitLog) error
}

// HandlerRegistry resolves delivery handlers by benefit type.
type HandlerRegistry struct {
	handlers map[enums.BenefitType]DeliveryHandler
}

// NewHandlerRegistry builds a registry from the provided handlers. Duplicate
// registrations for one benefit type are rejected.
func NewHandlerRegistry(handlers ...DeliveryHandler) (*HandlerRegistry, error) {
	registry := &HandlerRegistry{handlers: map[enums.BenefitType]DeliveryHandler{}}
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		benefitType := handler.BenefitType()
		if _, ok := registry.handlers[benefitType]; ok {
			return nil, fmt.Errorf("duplicate delivery handler for %s", benefitType)
		}
		registry.handlers[benefitType] = handler
	}
	return registry, nil
}

// Resolve returns the handler registered for a benefit type.
func (r *HandlerRegistry) Resolve(benefitType enums.BenefitType) (DeliveryHandler, bool) {
	if r == nil {
		return nil, false
	}
	handler, ok := r.handlers[benefitType]
	return handler, ok
}

// ContentGrantHandler delivers CONTENT benefits by enrolling the beneficiary
// into the sessions named in the benefit config.
type ContentGrantHandler struct {
	repo enrollment.Repository
}

// NewContentGrantHandler builds a content delivery handler.
func NewContentGrantHandler(repo enrollment.Repository) (*ContentGrantHandler, error) {
	if repo == nil {
		return nil, errors.New("enrollment repository is required")
	}
	return &ContentGrantHandler{repo: repo}, nil
}

func (h *ContentGrantHandler) BenefitType() enums.BenefitType {
	return enums.BenefitContent
}

func (h *ContentGrantHandler) Deliver(ctx context.Context, tx *gorm.DB, log *models.ReferralBenefitLog) error {
	cfg, err := DecodeBenefitConfig(log.BenefitValue)
	if err != nil {
		return err
	}
	if cfg == nil || len(cfg.SessionIDs) == 0 {
		return nil
	}
	entries := make([]models.LearnerSessionEntry, 0, len(cfg.SessionIDs))
	for _, sessionID := range cfg.SessionIDs {
		entries = append(entries, models.LearnerSessionEntry{
			ID:        uuid.New(),
			UserID:    log.UserID,
			SessionID: sessionID,
			Status:    enums.EntryStatusActive,
		})
	}
	return h.repo.WithTx(tx).CreateEntries(ctx, entries)
}

// MembershipExtensionHandler delivers MEMBERSHIP_EXTENSION benefits by
// pushing out the end date of the beneficiary's most recent active plan.
type MembershipExtensionHandler struct {
	repo plans.Repository
}

// NewMembershipExtensionHandler builds a membership extension handler.
func NewMembershipExtensionHandler(repo plans.Repository) (*MembershipExtensionHandler, error) {
	if repo == nil {
		return nil, errors.New("plan repository is required")
	}
	return &MembershipExtensionHandler{repo: repo}, nil
}

func (h *MembershipExtensionHandler) BenefitType() enums.BenefitType {
	return enums.BenefitMembershipExtension
}

func (h *MembershipExtensionHandler) Deliver(ctx context.Context, tx *gorm.DB, log *models.ReferralBenefitLog) error {
	cfg, err := DecodeBenefitConfig(log.BenefitValue)
	if err != nil {
		return err
	}
	if cfg == nil || cfg.ExtensionDays == nil || *cfg.ExtensionDays <= 0 {
		return nil
	}

	repo := h.repo.WithTx(tx)
	active, err := repo.ListByUser(ctx, log.UserID, enums.PlanStatusActive)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	plan := active[0]
	var end time.Time
	if plan.EndDate != nil {
		end = *plan.EndDate
	} else {
		end = time.Now().UTC()
	}
	extended := end.AddDate(0, 0, *cfg.ExtensionDays)
	plan.EndDate = &extended
	return repo.Save(ctx, &plan)
}
