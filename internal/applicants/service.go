package applicants

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

// StageEnrolled is the stage applicants move to once a payment confirms.
const StageEnrolled = "ENROLLED"

// ServiceParams groups dependencies for the applicant sync service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service keeps the applicant funnel in step with payment outcomes. Most
// learners never enter the applicant flow, so the existence probe runs first.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds an applicant sync service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("applicant repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// SyncEnrolled advances the user's applicant stage when an applicant row
// exists. Users outside the applicant flow are skipped silently.
func (s *Service) SyncEnrolled(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	repo := s.repo.WithTx(tx)

	exists, err := repo.Exists(ctx, userID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := repo.UpdateStage(ctx, userID, StageEnrolled); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "user_id", userID.String()), "applicant stage synced")
	return nil
}
