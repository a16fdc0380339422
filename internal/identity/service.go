package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

// ServiceParams groups dependencies for the identity service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

// Service is the read surface over users for payment and notification flows.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds an identity service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("identity repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{repo: params.Repo, logg: params.Logger}, nil
}

// GetUser loads one user.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

// ResolveUsers bulk-loads users keyed by id. Missing ids are simply absent
// from the result, callers decide whether that is fatal.
func (s *Service) ResolveUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.User, error) {
	users, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]models.User, len(users))
	for _, user := range users {
		out[user.ID] = user
	}
	return out, nil
}
