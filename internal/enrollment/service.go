package enrollment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

// ServiceParams groups dependencies for the enrollment service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service moves learners between sessions as their plans settle. Learners
// wait in an invite's holding session until payment confirms, then shift into
// the package sessions.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds an enrollment service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("enrollment repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// GetInvite loads an enrollment offer.
func (s *Service) GetInvite(ctx context.Context, id uuid.UUID) (*models.EnrollInvite, error) {
	invite, err := s.repo.FindEnrollInvite(ctx, id)
	if err != nil {
		return nil, err
	}
	if invite == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "enroll invite not found")
	}
	return invite, nil
}

// GetPaymentOption loads a pricing option.
func (s *Service) GetPaymentOption(ctx context.Context, id uuid.UUID) (*models.PaymentOption, error) {
	option, err := s.repo.FindPaymentOption(ctx, id)
	if err != nil {
		return nil, err
	}
	if option == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment option not found")
	}
	return option, nil
}

// CreatePlaceholderEntry parks the learner in the invite's holding session
// until their payment settles. Invites without a holding session skip this.
func (s *Service) CreatePlaceholderEntry(ctx context.Context, tx *gorm.DB, invite *models.EnrollInvite, userID uuid.UUID, planID *uuid.UUID) error {
	if invite == nil || invite.InvitedSessionID == nil {
		return nil
	}
	repo := s.repo.WithTx(tx)
	entry := &models.LearnerSessionEntry{
		ID:             uuid.New(),
		UserID:         userID,
		SessionID:      *invite.InvitedSessionID,
		EnrollInviteID: &invite.ID,
		UserPlanID:     planID,
		Status:         enums.EntryStatusInvited,
	}
	return repo.CreateEntry(ctx, entry)
}

// ShiftLearnerToActiveSessions retires the holding-session placeholders and
// enrolls the learner into every package session of the invite.
func (s *Service) ShiftLearnerToActiveSessions(ctx context.Context, tx *gorm.DB, plan *models.UserPlan) error {
	if plan == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan is required")
	}
	repo := s.repo.WithTx(tx)

	invite, err := repo.FindEnrollInvite(ctx, plan.EnrollInviteID)
	if err != nil {
		return err
	}
	if invite == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "enroll invite not found").
			WithDetails(map[string]any{"enroll_invite_id": plan.EnrollInviteID.String()})
	}

	retired, err := s.markPlaceholdersDeleted(ctx, repo, plan)
	if err != nil {
		return err
	}

	entries := make([]models.LearnerSessionEntry, 0, len(invite.PackageSessionIDs))
	for _, sessionID := range invite.PackageSessionIDs {
		entries = append(entries, models.LearnerSessionEntry{
			ID:             uuid.New(),
			UserID:         plan.UserID,
			SessionID:      sessionID,
			EnrollInviteID: &invite.ID,
			UserPlanID:     &plan.ID,
			Status:         enums.EntryStatusActive,
			ExpiryDate:     plan.EndDate,
		})
	}
	if err := repo.CreateEntries(ctx, entries); err != nil {
		return err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":      plan.UserID.String(),
		"user_plan_id": plan.ID.String(),
		"sessions":     len(entries),
		"placeholders": retired,
	})
	s.logg.Info(logCtx, "learner shifted to package sessions")
	return nil
}

// MarkPlaceholderEntriesDeleted retires the learner's holding-session rows
// for a plan's invite. Runs on every settled payment, including ones that
// only queue behind an already active plan.
func (s *Service) MarkPlaceholderEntriesDeleted(ctx context.Context, tx *gorm.DB, plan *models.UserPlan) error {
	if plan == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan is required")
	}
	retired, err := s.markPlaceholdersDeleted(ctx, s.repo.WithTx(tx), plan)
	if err != nil {
		return err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":      plan.UserID.String(),
		"user_plan_id": plan.ID.String(),
		"placeholders": retired,
	})
	s.logg.Info(logCtx, "placeholder entries retired")
	return nil
}

func (s *Service) markPlaceholdersDeleted(ctx context.Context, repo Repository, plan *models.UserPlan) (int, error) {
	placeholders, err := repo.ListInvitedEntries(ctx, plan.UserID, plan.EnrollInviteID)
	if err != nil {
		return 0, err
	}
	ids := make([]uuid.UUID, 0, len(placeholders))
	for _, entry := range placeholders {
		ids = append(ids, entry.ID)
	}
	if err := repo.UpdateEntriesStatus(ctx, ids, enums.EntryStatusDeleted); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// RecordFailedPlacement retires the learner's placeholders after a failed
// payment and writes a fresh PAYMENT_FAILED entry in the holding session so
// the failure stays visible to institute staff. Invites without a holding
// session only retire the placeholders.
func (s *Service) RecordFailedPlacement(ctx context.Context, tx *gorm.DB, plan *models.UserPlan) error {
	if plan == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan is required")
	}
	repo := s.repo.WithTx(tx)

	if _, err := s.markPlaceholdersDeleted(ctx, repo, plan); err != nil {
		return err
	}

	invite, err := repo.FindEnrollInvite(ctx, plan.EnrollInviteID)
	if err != nil {
		return err
	}
	if invite == nil || invite.InvitedSessionID == nil {
		return nil
	}
	entry := &models.LearnerSessionEntry{
		ID:             uuid.New(),
		UserID:         plan.UserID,
		SessionID:      *invite.InvitedSessionID,
		EnrollInviteID: &invite.ID,
		UserPlanID:     &plan.ID,
		Status:         enums.EntryStatusPaymentFailed,
	}
	return repo.CreateEntry(ctx, entry)
}

// RetargetPlanEntries re-points session entries from an expired plan to its
// promoted successor so memberships survive the handover.
func (s *Service) RetargetPlanEntries(ctx context.Context, tx *gorm.DB, fromPlanID, toPlanID uuid.UUID, newExpiry *time.Time) (int64, error) {
	return s.repo.WithTx(tx).RetargetEntries(ctx, fromPlanID, toPlanID, newExpiry)
}
