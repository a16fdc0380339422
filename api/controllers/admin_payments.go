package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/api/middleware"
	"github.com/shikshalabs/enrollhub-backend/api/responses"
	"github.com/shikshalabs/enrollhub-backend/api/validators"
	"github.com/shikshalabs/enrollhub-backend/internal/ledger"
	"github.com/shikshalabs/enrollhub-backend/internal/statusproc"
	"github.com/shikshalabs/enrollhub-backend/pkg/db/models"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/outbox"
	"github.com/shikshalabs/enrollhub-backend/pkg/pagination"
)

type statusOverrider interface {
	ApplyStatusByLedgerID(ctx context.Context, id uuid.UUID, input statusproc.ApplyInput) error
}

type ledgerLister interface {
	List(ctx context.Context, params ledger.ListQuery) ([]models.PaymentLog, *pagination.Cursor, error)
}

type adminStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason" validate:"required,min=3"`
}

// AdminOverridePaymentStatus forces a ledger verdict through the same status
// pipeline the gateway webhooks use. The override reason lands in the stored
// response blob.
func AdminOverridePaymentStatus(svc statusOverrider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "status processor unavailable"))
			return
		}

		rawID := strings.TrimSpace(chi.URLParam(r, "paymentId"))
		paymentID, err := uuid.Parse(rawID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment id"))
			return
		}

		var payload adminStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParsePaymentStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status"))
			return
		}

		actor, err := adminActorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		override, err := json.Marshal(map[string]any{
			"source":      "admin_override",
			"reason":      payload.Reason,
			"overrode_by": actor.UserID.String(),
			"overrode_at": time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode override record"))
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithLedgerID(ctx, paymentID.String())
		}

		input := statusproc.ApplyInput{
			Status:   status,
			Response: override,
			Actor:    actor,
		}
		if err := svc.ApplyStatusByLedgerID(ctx, paymentID, input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "payment status overridden")
		}
		responses.WriteSuccess(w, map[string]string{"status": "applied"})
	}
}

// AdminListPayments returns cursor-paginated ledger entries with optional
// institute, user and payment-status filters.
func AdminListPayments(svc ledgerLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := ledger.ListQuery{Limit: limit}

		if raw := strings.TrimSpace(r.URL.Query().Get("institute_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid institute id"))
				return
			}
			query.InstituteID = &id
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
				return
			}
			query.UserID = &id
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("payment_status")); raw != "" {
			status, err := enums.ParsePaymentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status"))
				return
			}
			query.PaymentStatus = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
			cursor, err := pagination.ParseCursor(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
				return
			}
			query.Cursor = cursor
		}

		rows, next, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]adminPaymentItem, 0, len(rows))
		for _, row := range rows {
			items = append(items, newAdminPaymentItem(row))
		}
		resp := adminPaymentList{Items: items}
		if next != nil {
			resp.Cursor = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, resp)
	}
}

type adminPaymentList struct {
	Items  []adminPaymentItem `json:"items"`
	Cursor string             `json:"cursor,omitempty"`
}

type adminPaymentItem struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	InstituteID   uuid.UUID  `json:"institute_id"`
	UserPlanID    *uuid.UUID `json:"user_plan_id,omitempty"`
	Vendor        string     `json:"vendor"`
	VendorID      *string    `json:"vendor_id,omitempty"`
	Status        string     `json:"status"`
	PaymentStatus *string    `json:"payment_status,omitempty"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newAdminPaymentItem(row models.PaymentLog) adminPaymentItem {
	item := adminPaymentItem{
		ID:          row.ID,
		UserID:      row.UserID,
		InstituteID: row.InstituteID,
		UserPlanID:  row.UserPlanID,
		Vendor:      string(row.Vendor),
		VendorID:    row.VendorID,
		Status:      string(row.Status),
		Amount:      row.PaymentAmount.StringFixed(2),
		Currency:    row.Currency,
		CreatedAt:   row.CreatedAt,
	}
	if row.PaymentStatus != nil {
		value := string(*row.PaymentStatus)
		item.PaymentStatus = &value
	}
	return item
}

func adminActorFromContext(r *http.Request) (*outbox.ActorRef, error) {
	rawUser := middleware.UserIDFromContext(r.Context())
	if rawUser == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}

	actor := &outbox.ActorRef{
		UserID: userID,
		Role:   middleware.RoleFromContext(r.Context()),
	}
	if raw := middleware.InstituteIDFromContext(r.Context()); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid institute id")
		}
		actor.InstituteID = &id
	}
	return actor, nil
}
