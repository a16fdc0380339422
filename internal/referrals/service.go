package referrals

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the referral engine.
type ServiceParams struct {
	DB       txRunner
	Repo     Repository
	Outbox   outboxEmitter
	Handlers *HandlerRegistry
	Logger   *logger.Logger
}

// Service owns referral mappings and their benefits. Benefits are granted at
// checkout and promoted to ACTIVE the first time the funding plan is paid.
type Service struct {
	db       txRunner
	repo     Repository
	outbox   outboxEmitter
	handlers *HandlerRegistry
	logg     *logger.Logger
}

// NewService builds a referral engine.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	if params.Repo == nil {
		return nil, errors.New("referral repository is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		db:       params.DB,
		repo:     params.Repo,
		outbox:   params.Outbox,
		handlers: params.Handlers,
		logg:     params.Logger,
	}, nil
}

// GrantInput describes one referral-driven enrollment at checkout time.
type GrantInput struct {
	InstituteID      uuid.UUID
	ReferrerUserID   uuid.UUID
	RefereeUserID    uuid.UUID
	ReferralCode     string
	UserPlanID       uuid.UUID
	ReferralOptionID uuid.UUID
	// OptionType is the funding payment option's type. FREE and DONATION
	// enrollments activate benefits immediately; paid ones stay pending.
	OptionType enums.PaymentOptionType
}

func (in GrantInput) validate() error {
	if in.ReferralCode == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "referral code is required")
	}
	if in.ReferrerUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "referrer is required")
	}
	if in.ReferralOptionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "referral option is required")
	}
	if in.ReferrerUserID == in.RefereeUserID {
		return pkgerrors.New(pkgerrors.CodeValidation, "self-referral is not allowed")
	}
	if in.UserPlanID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "funding plan is required")
	}
	return nil
}

// GrantBenefits creates the referral mapping and its benefit log rows inside
// the caller's checkout transaction. For FREE and DONATION enrollments the
// mapping and benefits activate immediately, delivery included.
func (s *Service) GrantBenefits(ctx context.Context, tx *gorm.DB, in GrantInput) (*models.ReferralMapping, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)

	option, err := repo.FindOption(ctx, in.ReferralOptionID)
	if err != nil {
		return nil, err
	}
	if option == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "referral option not found").
			WithDetails(map[string]any{"referral_option_id": in.ReferralOptionID.String()})
	}

	immediate := !in.OptionType.RequiresPayment()
	mappingStatus := enums.ReferralStatusPending
	benefitStatus := enums.BenefitStatusPending
	if immediate {
		mappingStatus = enums.ReferralStatusActive
		benefitStatus = enums.BenefitStatusActive
	}

	mapping := &models.ReferralMapping{
		ID:               uuid.New(),
		InstituteID:      in.InstituteID,
		ReferrerUserID:   in.ReferrerUserID,
		RefereeUserID:    in.RefereeUserID,
		ReferralCode:     in.ReferralCode,
		UserPlanID:       in.UserPlanID,
		ReferralOptionID: &option.ID,
		Status:           mappingStatus,
	}
	if err := repo.CreateMapping(ctx, mapping); err != nil {
		return nil, err
	}

	logs, err := buildBenefitLogs(mapping, option, benefitStatus)
	if err != nil {
		return nil, err
	}
	if err := repo.CreateBenefitLogs(ctx, logs); err != nil {
		return nil, err
	}

	if immediate {
		for i := range logs {
			if err := s.deliverAndEmit(ctx, tx, repo, mapping, &logs[i]); err != nil {
				return nil, err
			}
		}
	}
	return mapping, nil
}

func buildBenefitLogs(mapping *models.ReferralMapping, option *models.ReferralOption, status enums.BenefitStatus) ([]models.ReferralBenefitLog, error) {
	sides := []struct {
		raw         []byte
		beneficiary enums.Beneficiary
		userID      uuid.UUID
	}{
		{option.ReferrerBenefit, enums.BeneficiaryReferrer, mapping.ReferrerUserID},
		{option.RefereeBenefit, enums.BeneficiaryReferee, mapping.RefereeUserID},
	}

	var logs []models.ReferralBenefitLog
	for _, side := range sides {
		cfg, err := DecodeBenefitConfig(side.raw)
		if err != nil {
			return nil, err
		}
		if cfg == nil {
			continue
		}
		if !cfg.Type.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid benefit type").
				WithDetails(map[string]any{"benefit_type": cfg.Type.String()})
		}
		value, err := cfg.Encode()
		if err != nil {
			return nil, err
		}
		logs = append(logs, models.ReferralBenefitLog{
			ID:                uuid.New(),
			ReferralMappingID: mapping.ID,
			UserID:            side.userID,
			Beneficiary:       side.beneficiary,
			BenefitType:       cfg.Type,
			BenefitValue:      value,
			Status:            status,
		})
	}
	return logs, nil
}

// RefereeDiscount returns the checkout price reduction the referee's benefit
// grants, zero when the option has no discount configured.
func (s *Service) RefereeDiscount(ctx context.Context, referralOptionID uuid.UUID, price decimal.Decimal) (decimal.Decimal, error) {
	option, err := s.repo.FindOption(ctx, referralOptionID)
	if err != nil {
		return decimal.Zero, err
	}
	if option == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "referral option not found")
	}
	cfg, err := DecodeBenefitConfig(option.RefereeBenefit)
	if err != nil {
		return decimal.Zero, err
	}
	if cfg == nil {
		return decimal.Zero, nil
	}
	return cfg.Discount(price), nil
}

// PromoteForPlan flips the plan's referral mapping and its pending benefits
// to ACTIVE, running delivery for non-monetary benefits. The mapping status
// guards replays: an already active mapping is left untouched.
func (s *Service) PromoteForPlan(ctx context.Context, userPlanID uuid.UUID) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		mapping, err := repo.FindMappingByPlanID(ctx, userPlanID)
		if err != nil {
			return err
		}
		if mapping == nil {
			return nil
		}
		if mapping.Status == enums.ReferralStatusActive {
			return nil
		}

		pending, err := repo.ListBenefitLogs(ctx, mapping.ID, enums.BenefitStatusPending)
		if err != nil {
			return err
		}
		for i := range pending {
			if err := s.deliverAndEmit(ctx, tx, repo, mapping, &pending[i]); err != nil {
				return err
			}
		}

		mapping.Status = enums.ReferralStatusActive
		return repo.SaveMapping(ctx, mapping)
	})
}

// deliverAndEmit runs the type-specific delivery step when one is registered,
// flips the row to ACTIVE and queues the benefit event.
func (s *Service) deliverAndEmit(ctx context.Context, tx *gorm.DB, repo Repository, mapping *models.ReferralMapping, log *models.ReferralBenefitLog) error {
	if !log.BenefitType.IsMonetary() {
		handler, ok := s.handlers.Resolve(log.BenefitType)
		if !ok {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"benefit_log_id": log.ID.String(),
				"benefit_type":   log.BenefitType.String(),
			})
			s.logg.Warn(logCtx, "no delivery handler registered, leaving benefit pending")
			return nil
		}
		if err := handler.Deliver(ctx, tx, log); err != nil {
			return err
		}
	}

	if log.Status != enums.BenefitStatusActive {
		log.Status = enums.BenefitStatusActive
		if err := repo.SaveBenefitLog(ctx, log); err != nil {
			return err
		}
	}

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReferralBenefitGiven,
		AggregateType: enums.AggregateReferral,
		AggregateID:   log.ID,
		Version:       1,
		Data: payloads.ReferralBenefitGivenEvent{
			ReferralMappingID: mapping.ID,
			BenefitLogID:      log.ID,
			UserID:            log.UserID,
			Beneficiary:       log.Beneficiary,
			BenefitType:       log.BenefitType,
		},
	})
}
