package checkout

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/internal/enrollment"
	"github.com/shikshalabs/enrollhub-backend/internal/ledger"
	"github.com/shikshalabs/enrollhub-backend/internal/plans"
	"github.com/shikshalabs/enrollhub-backend/internal/referrals"
	"github.com/shikshalabs/enrollhub-backend/internal/statusproc"
	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type statusApplier interface {
	ApplyStatusByLedgerID(ctx context.Context, id uuid.UUID, input statusproc.ApplyInput) error
}

// ReferralInput is the referrer attribution captured at checkout.
type ReferralInput struct {
	ReferrerUserID   uuid.UUID
	ReferralCode     string
	ReferralOptionID uuid.UUID
}

// CreateInput describes one checkout. ExtraLearnerIDs turns the order into a
// multi-item one: each extra learner gets their own plan and a child ledger
// entry under the buyer's parent entry.
type CreateInput struct {
	UserID          uuid.UUID
	InstituteID     uuid.UUID
	EnrollInviteID  uuid.UUID
	PaymentOptionID uuid.UUID
	Gateway         enums.PaymentGateway
	SubOrgID        *uuid.UUID
	ExtraLearnerIDs []uuid.UUID
	Referral        *ReferralInput
	Request         json.RawMessage
}

// CreateResult is what the gateway integration needs to collect payment.
type CreateResult struct {
	PaymentLog    *models.PaymentLog
	Plan          *models.UserPlan
	OrderID       string
	AmountPayable decimal.Decimal
	Discount      decimal.Decimal
	Activated     bool
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	DB         txRunner
	Ledger     ledger.Repository
	Plans      *plans.Service
	Referrals  *referrals.Service
	Enrollment *enrollment.Service
	Status     statusApplier
	Logger     *logger.Logger
}

// Service opens orders: one checkout creates the ledger entry, the plan
// awaiting payment and the holding-session placeholder in a single
// transaction. Free and donation options skip the gateway and settle
// immediately through the status processor.
type Service struct {
	db         txRunner
	ledger     ledger.Repository
	plans      *plans.Service
	referrals  *referrals.Service
	enrollment *enrollment.Service
	status     statusApplier
	logg       *logger.Logger
}

// NewService builds a checkout service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	if params.Ledger == nil {
		return nil, errors.New("ledger repository is required")
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
	if params.Status == nil {
		return nil, errors.New("status processor is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		db:         params.DB,
		ledger:     params.Ledger,
		plans:      params.Plans,
		referrals:  params.Referrals,
		enrollment: params.Enrollment,
		status:     params.Status,
		logg:       params.Logger,
	}, nil
}

// Create opens an order for the invite and option. The returned ledger id is
// the order id handed to the gateway; its webhook verdict completes the flow.
func (s *Service) Create(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	logCtx := s.logg.WithUserID(ctx, in.UserID.String())

	invite, err := s.enrollment.GetInvite(ctx, in.EnrollInviteID)
	if err != nil {
		return nil, err
	}
	if !invite.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "enroll invite is closed").
			WithDetails(map[string]any{"enroll_invite_id": invite.ID.String()})
	}
	option, err := s.enrollment.GetPaymentOption(ctx, in.PaymentOptionID)
	if err != nil {
		return nil, err
	}

	unitPrice := option.Amount
	discount := decimal.Zero
	if in.Referral != nil && option.Type.RequiresPayment() {
		discount, err = s.referrals.RefereeDiscount(ctx, in.Referral.ReferralOptionID, unitPrice)
		if err != nil {
			return nil, err
		}
		unitPrice = unitPrice.Sub(discount)
	}
	seats := int64(1 + len(in.ExtraLearnerIDs))
	total := unitPrice.Mul(decimal.NewFromInt(seats))

	result := &CreateResult{AmountPayable: total, Discount: discount}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		plan, err := s.createPlan(ctx, tx, in, invite, option, in.UserID)
		if err != nil {
			return err
		}
		result.Plan = plan

		parent := s.newLedgerEntry(in, plan.ID, in.UserID, total, option.Currency)
		childIDs := make([]uuid.UUID, 0, len(in.ExtraLearnerIDs))
		for _, learnerID := range in.ExtraLearnerIDs {
			childPlan, err := s.createPlan(ctx, tx, in, invite, option, learnerID)
			if err != nil {
				return err
			}
			child := s.newLedgerEntry(in, childPlan.ID, learnerID, unitPrice, option.Currency)
			if err := s.ledger.WithTx(tx).Create(ctx, child); err != nil {
				return err
			}
			childIDs = append(childIDs, child.ID)
			if err := s.enrollment.CreatePlaceholderEntry(ctx, tx, invite, learnerID, &childPlan.ID); err != nil {
				return err
			}
		}

		data := ledger.SpecificData{
			OrderID:            parent.ID.String(),
			Request:            in.Request,
			ChildPaymentLogIDs: childIDs,
		}
		raw, err := data.Encode()
		if err != nil {
			return err
		}
		parent.PaymentSpecificData = raw
		if err := s.ledger.WithTx(tx).Create(ctx, parent); err != nil {
			return err
		}
		result.PaymentLog = parent
		result.OrderID = parent.ID.String()

		if in.Referral != nil {
			_, err := s.referrals.GrantBenefits(ctx, tx, referrals.GrantInput{
				InstituteID:      in.InstituteID,
				ReferrerUserID:   in.Referral.ReferrerUserID,
				RefereeUserID:    in.UserID,
				ReferralCode:     in.Referral.ReferralCode,
				UserPlanID:       plan.ID,
				ReferralOptionID: in.Referral.ReferralOptionID,
				OptionType:       option.Type,
			})
			if err != nil {
				return err
			}
		}

		return s.enrollment.CreatePlaceholderEntry(ctx, tx, invite, in.UserID, &plan.ID)
	})
	if err != nil {
		return nil, err
	}

	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"payment_log_id": result.PaymentLog.ID.String(),
		"user_plan_id":   result.Plan.ID.String(),
		"amount":         total.String(),
		"seats":          seats,
	})
	s.logg.Info(logCtx, "checkout created")

	if !option.Type.RequiresPayment() || total.IsZero() {
		if err := s.status.ApplyStatusByLedgerID(ctx, result.PaymentLog.ID, statusproc.ApplyInput{
			Status: enums.PaymentStatusPaid,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settling zero-amount order")
		}
		result.Activated = true
	}
	return result, nil
}

func (s *Service) createPlan(ctx context.Context, tx *gorm.DB, in CreateInput, invite *models.EnrollInvite, option *models.PaymentOption, userID uuid.UUID) (*models.UserPlan, error) {
	snapshot, err := plans.BuildSnapshot(invite, option).Encode()
	if err != nil {
		return nil, err
	}
	source := enums.PlanSourceUser
	if in.SubOrgID != nil {
		source = enums.PlanSourceSubOrg
	}
	plan := &models.UserPlan{
		ID:              uuid.New(),
		UserID:          userID,
		InstituteID:     in.InstituteID,
		EnrollInviteID:  invite.ID,
		PaymentOptionID: option.ID,
		PlanSnapshot:    snapshot,
		Source:          source,
		SubOrgID:        in.SubOrgID,
		Status:          enums.PlanStatusPendingForPayment,
	}
	if err := s.plans.Create(ctx, tx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *Service) newLedgerEntry(in CreateInput, planID, userID uuid.UUID, amount decimal.Decimal, currency string) *models.PaymentLog {
	return &models.PaymentLog{
		ID:            uuid.New(),
		UserID:        userID,
		InstituteID:   in.InstituteID,
		UserPlanID:    &planID,
		Vendor:        in.Gateway,
		Status:        enums.PaymentLogStatusInitiated,
		PaymentAmount: amount,
		Currency:      currency,
	}
}

func (in CreateInput) validate() error {
	details := map[string]any{}
	if in.UserID == uuid.Nil {
		details["user_id"] = "required"
	}
	if in.InstituteID == uuid.Nil {
		details["institute_id"] = "required"
	}
	if in.EnrollInviteID == uuid.Nil {
		details["enroll_invite_id"] = "required"
	}
	if in.PaymentOptionID == uuid.Nil {
		details["payment_option_id"] = "required"
	}
	if !in.Gateway.IsValid() {
		details["gateway"] = "unknown"
	}
	if in.Referral != nil {
		if in.Referral.ReferrerUserID == uuid.Nil || in.Referral.ReferralCode == "" || in.Referral.ReferralOptionID == uuid.Nil {
			details["referral"] = "incomplete"
		}
	}
	for _, learnerID := range in.ExtraLearnerIDs {
		if learnerID == uuid.Nil || learnerID == in.UserID {
			details["extra_learner_ids"] = "must be distinct non-empty learner ids"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid checkout request").WithDetails(details)
	}
	return nil
}
