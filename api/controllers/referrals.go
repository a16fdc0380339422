package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shikshalabs/enrollhub-backend/api/responses"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

type refereeDiscounter interface {
	RefereeDiscount(ctx context.Context, referralOptionID uuid.UUID, price decimal.Decimal) (decimal.Decimal, error)
}

// ReferralDiscountPreview quotes the referee discount for an option before
// checkout so clients can render the payable amount.
func ReferralDiscountPreview(svc refereeDiscounter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "referral service unavailable"))
			return
		}

		rawID := strings.TrimSpace(chi.URLParam(r, "referralOptionId"))
		optionID, err := uuid.Parse(rawID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid referral option id"))
			return
		}

		rawAmount := strings.TrimSpace(r.URL.Query().Get("amount"))
		if rawAmount == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount is required"))
			return
		}
		amount, err := decimal.NewFromString(rawAmount)
		if err != nil || amount.IsNegative() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a non-negative decimal"))
			return
		}

		discount, err := svc.RefereeDiscount(r.Context(), optionID, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payable := amount.Sub(discount)
		if payable.IsNegative() {
			payable = decimal.Zero
		}

		responses.WriteSuccess(w, map[string]string{
			"amount":   amount.StringFixed(2),
			"discount": discount.StringFixed(2),
			"payable":  payable.StringFixed(2),
		})
	}
}
