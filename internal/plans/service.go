package plans

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shikshalabs/enrollhub-backend/pkg/cache"
	"github.com/shikshalabs/enrollhub-backend/pkg/config"
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

// EntryRetargeter re-points a learner's session entries when a stacked plan
// takes over from an expired one, extending their expiry to the new window.
// It reports how many rows moved.
type EntryRetargeter interface {
	RetargetPlanEntries(ctx context.Context, tx *gorm.DB, fromPlanID, toPlanID uuid.UUID, newExpiry *time.Time) (int64, error)
}

// ServiceParams groups dependencies for the plan engine.
type ServiceParams struct {
	DB      txRunner
	Repo    Repository
	Outbox  outboxEmitter
	Entries EntryRetargeter
	Cache   *cache.Cache
	Config  config.PlansConfig
	Logger  *logger.Logger
}

// Service owns plan lifecycle transitions: activation, stacking, failure and
// expiry. At most one plan per (user, invite) is ACTIVE at a time; later
// purchases queue as PENDING and take over when the active window lapses.
type Service struct {
	db      txRunner
	repo    Repository
	outbox  outboxEmitter
	entries EntryRetargeter
	cache   *cache.Cache
	cfg     config.PlansConfig
	logg    *logger.Logger
}

// NewService builds a plan engine.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("tx runner is required")
	}
	if params.Repo == nil {
		return nil, errors.New("plan repository is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox emitter is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		db:      params.DB,
		repo:    params.Repo,
		outbox:  params.Outbox,
		entries: params.Entries,
		cache:   params.Cache,
		cfg:     params.Config,
		logg:    params.Logger,
	}, nil
}

// Create persists a plan awaiting payment.
func (s *Service) Create(ctx context.Context, tx *gorm.DB, plan *models.UserPlan) error {
	if plan == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan is required")
	}
	return s.repo.WithTx(tx).Create(ctx, plan)
}

// GetByID loads a plan.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.UserPlan, error) {
	plan, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return plan, nil
}

// ListForUser returns the learner's plans, newest first, reading through the
// cache when no status filter is applied.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, statuses ...enums.PlanStatus) ([]models.UserPlan, error) {
	if len(statuses) == 0 && s.cache != nil {
		var cached []models.UserPlan
		if err := s.cache.Get(ctx, &cached, "user_plans", userID.String()); err == nil {
			return cached, nil
		}
	}
	out, err := s.repo.ListByUser(ctx, userID, statuses...)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 && s.cache != nil {
		if err := s.cache.Set(ctx, out, "user_plans", userID.String()); err != nil {
			s.logg.Warn(ctx, "caching user plans failed")
		}
	}
	return out, nil
}

// ActivateOrStack transitions a paid plan to ACTIVE, or queues it as PENDING
// when the learner already holds an active plan for the same offer. Replays
// of an already settled plan are no-ops. A fresh activation opens its window
// at the paid time; chaining from a predecessor's end date happens only when
// the expiry sweep promotes a queued plan.
func (s *Service) ActivateOrStack(ctx context.Context, planID uuid.UUID, now time.Time) (bool, error) {
	var activated bool
	var userID uuid.UUID

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		plan, err := repo.FindForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if plan == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found").
				WithDetails(map[string]any{"user_plan_id": planID.String()})
		}
		userID = plan.UserID

		switch plan.Status {
		case enums.PlanStatusActive:
			activated = true
			return nil
		case enums.PlanStatusPending, enums.PlanStatusExpired:
			return nil
		}

		sibling, err := repo.FindBlockingSibling(ctx, plan.UserID, plan.EnrollInviteID, plan.ID)
		if err != nil {
			return err
		}
		if sibling != nil {
			plan.Status = enums.PlanStatusPending
			plan.StartDate = nil
			plan.EndDate = nil
			if err := repo.Save(ctx, plan); err != nil {
				return err
			}
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"user_plan_id":  plan.ID.String(),
				"blocking_plan": sibling.ID.String(),
			})
			s.logg.Info(logCtx, "plan queued behind existing plan")
			return nil
		}

		if err := s.activate(ctx, tx, repo, plan, now, nil, false); err != nil {
			return err
		}
		activated = true
		return nil
	})
	if err != nil {
		return false, err
	}

	s.invalidateUserPlans(ctx, userID)
	return activated, nil
}

// MarkPaymentFailed moves a plan still awaiting payment to PAYMENT_FAILED.
// Plans in any other state are left alone.
func (s *Service) MarkPaymentFailed(ctx context.Context, planID uuid.UUID) error {
	var userID uuid.UUID
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		plan, err := repo.FindForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if plan == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found").
				WithDetails(map[string]any{"user_plan_id": planID.String()})
		}
		if plan.Status != enums.PlanStatusPendingForPayment {
			return nil
		}
		userID = plan.UserID
		plan.Status = enums.PlanStatusPaymentFailed
		return repo.Save(ctx, plan)
	})
	if err != nil {
		return err
	}
	if userID != uuid.Nil {
		s.invalidateUserPlans(ctx, userID)
	}
	return nil
}

// ExpireDue sweeps lapsed active plans, expiring each and promoting the
// oldest stacked plan in its place. Each plan settles in its own transaction
// so one poisoned row cannot wedge the sweep.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	ids, err := s.repo.ListExpiredActiveIDs(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if err := s.expireOne(ctx, id, now); err != nil {
			logCtx := s.logg.WithField(ctx, "user_plan_id", id.String())
			s.logg.Error(logCtx, "expiring plan failed", err)
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) expireOne(ctx context.Context, planID uuid.UUID, now time.Time) error {
	var userID uuid.UUID
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		plan, err := repo.FindForUpdate(ctx, planID)
		if err != nil {
			return err
		}
		if plan == nil || plan.Status != enums.PlanStatusActive {
			return nil
		}
		if plan.EndDate == nil || !plan.EndDate.Before(now) {
			return nil
		}
		userID = plan.UserID

		plan.Status = enums.PlanStatusExpired
		if err := repo.Save(ctx, plan); err != nil {
			return err
		}

		promoted, err := repo.FindOldestPending(ctx, plan.UserID, plan.EnrollInviteID)
		if err != nil {
			return err
		}
		if promoted != nil {
			if err := s.activate(ctx, tx, repo, promoted, now, plan.EndDate, true); err != nil {
				return err
			}
			if s.entries != nil {
				moved, err := s.entries.RetargetPlanEntries(ctx, tx, plan.ID, promoted.ID, promoted.EndDate)
				if err != nil {
					return err
				}
				if moved == 0 {
					logCtx := s.logg.WithField(ctx, "user_plan_id", plan.ID.String())
					s.logg.Warn(logCtx, "promoted plan had no session entries to carry over")
				}
			}
		}

		var promotedID *uuid.UUID
		if promoted != nil {
			promotedID = &promoted.ID
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPlanExpired,
			AggregateType: enums.AggregateUserPlan,
			AggregateID:   plan.ID,
			Version:       1,
			Data: payloads.PlanExpiredEvent{
				UserPlanID:     plan.ID,
				UserID:         plan.UserID,
				EnrollInviteID: plan.EnrollInviteID,
				ExpiredAt:      now,
				PromotedPlanID: promotedID,
			},
		})
	})
	if err != nil {
		return err
	}
	if userID != uuid.Nil {
		s.invalidateUserPlans(ctx, userID)
	}
	return nil
}

// activate opens the entitlement window and emits the activation event in the
// caller's transaction. A promoted plan chains its start from the expired
// plan's end date when one exists.
func (s *Service) activate(ctx context.Context, tx *gorm.DB, repo Repository, plan *models.UserPlan, now time.Time, chainFrom *time.Time, stacked bool) error {
	snapshot, err := DecodeSnapshot(plan.PlanSnapshot)
	if err != nil {
		logCtx := s.logg.WithField(ctx, "user_plan_id", plan.ID.String())
		s.logg.Error(logCtx, "corrupt plan snapshot, using default window", err)
		snapshot = Snapshot{}
	}
	days := snapshot.WindowDays(s.cfg.DefaultValidityDays)

	start := now
	if chainFrom != nil {
		start = *chainFrom
	}
	end := start.AddDate(0, 0, days)
	plan.Status = enums.PlanStatusActive
	plan.StartDate = &start
	plan.EndDate = &end
	if err := repo.Save(ctx, plan); err != nil {
		return err
	}

	return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPlanActivated,
		AggregateType: enums.AggregateUserPlan,
		AggregateID:   plan.ID,
		Version:       1,
		Data: payloads.PlanActivatedEvent{
			UserPlanID:     plan.ID,
			UserID:         plan.UserID,
			EnrollInviteID: plan.EnrollInviteID,
			StartDate:      start,
			EndDate:        end,
			Stacked:        stacked,
		},
	})
}

func (s *Service) invalidateUserPlans(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil || userID == uuid.Nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "user_plans", userID.String()); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "user_id", userID.String()), "invalidating plan cache failed")
	}
}
