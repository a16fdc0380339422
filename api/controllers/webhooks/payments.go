package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/api/responses"
	"github.com/shikshalabs/enrollhub-backend/api/validators"
	"github.com/shikshalabs/enrollhub-backend/internal/statusproc"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
	"github.com/shikshalabs/enrollhub-backend/pkg/metrics"
)

// StatusProcessor applies a normalized gateway verdict to the ledger.
type StatusProcessor interface {
	ApplyStatusByLedgerID(ctx context.Context, id uuid.UUID, input statusproc.ApplyInput) error
	ApplyStatusByOrderID(ctx context.Context, orderID string, input statusproc.ApplyInput) error
}

// paymentWebhookRequest is the normalized verdict shape. Gateway adapters in
// front of this API translate vendor callbacks into it.
type paymentWebhookRequest struct {
	Status          string          `json:"status" validate:"required"`
	VendorPaymentID *string         `json:"vendor_payment_id"`
	OrderStatus     *string         `json:"order_status"`
	Response        json.RawMessage `json:"response"`
}

func (req paymentWebhookRequest) toApplyInput() (statusproc.ApplyInput, error) {
	status, err := enums.ParsePaymentStatus(req.Status)
	if err != nil {
		return statusproc.ApplyInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status")
	}
	return statusproc.ApplyInput{
		Status:      status,
		Response:    req.Response,
		VendorID:    req.VendorPaymentID,
		OrderStatus: req.OrderStatus,
	}, nil
}

// PaymentWebhookByLedgerID applies a gateway verdict addressed by ledger row id.
func PaymentWebhookByLedgerID(svc StatusProcessor, m *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "status processor unavailable"))
			return
		}

		rawID := strings.TrimSpace(chi.URLParam(r, "ledgerId"))
		ledgerID, err := uuid.Parse(rawID)
		if err != nil {
			m.ObserveWebhook("invalid", time.Since(start))
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ledger id"))
			return
		}

		var req paymentWebhookRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			m.ObserveWebhook("invalid", time.Since(start))
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input, err := req.toApplyInput()
		if err != nil {
			m.ObserveWebhook("invalid", time.Since(start))
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithLedgerID(ctx, ledgerID.String())
		}

		if err := svc.ApplyStatusByLedgerID(ctx, ledgerID, input); err != nil {
			m.ObserveWebhook("error", time.Since(start))
			responses.WriteError(ctx, logg, w, err)
			return
		}

		m.ObserveWebhook("applied", time.Since(start))
		responses.WriteSuccess(w, map[string]string{"status": "applied"})
	}
}

// PaymentWebhookByOrderID applies a gateway verdict addressed by the order id
// handed out at checkout.
func PaymentWebhookByOrderID(svc StatusProcessor, m *metrics.PaymentMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		start := time.Now()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "status processor unavailable"))
			return
		}

		orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if orderID == "" {
			m.ObserveWebhook("invalid", time.Since(start))
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}

		var req paymentWebhookRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			m.ObserveWebhook("invalid", time.Since(start))
			responses.WriteError(ctx, logg, w, err)
			return
		}
		input, err := req.toApplyInput()
		if err != nil {
			m.ObserveWebhook("invalid", time.Since(start))
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.ApplyStatusByOrderID(ctx, orderID, input); err != nil {
			m.ObserveWebhook("error", time.Since(start))
			responses.WriteError(ctx, logg, w, err)
			return
		}

		m.ObserveWebhook("applied", time.Since(start))
		responses.WriteSuccess(w, map[string]string{"status": "applied"})
	}
}
