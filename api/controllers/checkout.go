package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/api/middleware"
	"github.com/shikshalabs/enrollhub-backend/api/responses"
	"github.com/shikshalabs/enrollhub-backend/api/validators"
	checkoutsvc "github.com/shikshalabs/enrollhub-backend/internal/checkout"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

type checkoutCreator interface {
	Create(ctx context.Context, in checkoutsvc.CreateInput) (*checkoutsvc.CreateResult, error)
}

// Checkout opens an order for an enroll invite. The response carries the
// order id the client hands to the payment gateway.
func Checkout(svc checkoutCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, instituteID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		gateway := enums.PaymentGateway(payload.Gateway)
		if !gateway.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment gateway").WithDetails(map[string]any{"gateway": payload.Gateway}))
			return
		}

		input := checkoutsvc.CreateInput{
			UserID:          userID,
			InstituteID:     instituteID,
			EnrollInviteID:  payload.EnrollInviteID,
			PaymentOptionID: payload.PaymentOptionID,
			Gateway:         gateway,
			SubOrgID:        payload.SubOrgID,
			ExtraLearnerIDs: payload.ExtraLearnerIDs,
			Request:         payload.Request,
		}
		if payload.Referral != nil {
			input.Referral = &checkoutsvc.ReferralInput{
				ReferrerUserID:   payload.Referral.ReferrerUserID,
				ReferralCode:     payload.Referral.ReferralCode,
				ReferralOptionID: payload.Referral.ReferralOptionID,
			}
		}

		result, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

type checkoutReferral struct {
	ReferrerUserID   uuid.UUID `json:"referrer_user_id" validate:"required"`
	ReferralCode     string    `json:"referral_code" validate:"required"`
	ReferralOptionID uuid.UUID `json:"referral_option_id" validate:"required"`
}

type checkoutRequest struct {
	EnrollInviteID  uuid.UUID         `json:"enroll_invite_id" validate:"required"`
	PaymentOptionID uuid.UUID         `json:"payment_option_id" validate:"required"`
	Gateway         string            `json:"gateway" validate:"required"`
	SubOrgID        *uuid.UUID        `json:"sub_org_id,omitempty"`
	ExtraLearnerIDs []uuid.UUID       `json:"extra_learner_ids,omitempty"`
	Referral        *checkoutReferral `json:"referral,omitempty"`
	Request         json.RawMessage   `json:"request,omitempty"`
}

type checkoutResponse struct {
	OrderID       string     `json:"order_id"`
	PaymentLogID  uuid.UUID  `json:"payment_log_id"`
	UserPlanID    *uuid.UUID `json:"user_plan_id,omitempty"`
	AmountPayable string     `json:"amount_payable"`
	Discount      string     `json:"discount"`
	Activated     bool       `json:"activated"`
}

func newCheckoutResponse(result *checkoutsvc.CreateResult) checkoutResponse {
	if result == nil {
		return checkoutResponse{}
	}
	resp := checkoutResponse{
		OrderID:       result.OrderID,
		AmountPayable: result.AmountPayable.StringFixed(2),
		Discount:      result.Discount.StringFixed(2),
		Activated:     result.Activated,
	}
	if result.PaymentLog != nil {
		resp.PaymentLogID = result.PaymentLog.ID
	}
	if result.Plan != nil {
		planID := result.Plan.ID
		resp.UserPlanID = &planID
	}
	return resp
}

func actorFromContext(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	rawUser := middleware.UserIDFromContext(r.Context())
	if rawUser == "" {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}

	rawInstitute := middleware.InstituteIDFromContext(r.Context())
	if rawInstitute == "" {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "institute context missing")
	}
	instituteID, err := uuid.Parse(rawInstitute)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid institute id")
	}
	return userID, instituteID, nil
}
