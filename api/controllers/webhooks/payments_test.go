package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/internal/statusproc"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	pkgerrors "github.com/shikshalabs/enrollhub-backend/pkg/errors"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

type testProcessor struct {
	lastLedgerID uuid.UUID
	lastOrderID  string
	lastInput    statusproc.ApplyInput
	err          error
	calls        int
}

func (s *testProcessor) ApplyStatusByLedgerID(_ context.Context, id uuid.UUID, input statusproc.ApplyInput) error {
	s.calls++
	s.lastLedgerID = id
	s.lastInput = input
	return s.err
}

func (s *testProcessor) ApplyStatusByOrderID(_ context.Context, orderID string, input statusproc.ApplyInput) error {
	s.calls++
	s.lastOrderID = orderID
	s.lastInput = input
	return s.err
}

func addRouteParam(r *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestPaymentWebhookByLedgerIDAppliesVerdict(t *testing.T) {
	ledgerID := uuid.New()
	vendorID := "cf_123"
	svc := &testProcessor{}

	body, _ := json.Marshal(map[string]any{
		"status":            "paid",
		"vendor_payment_id": vendorID,
		"response":          map[string]string{"signature": "ok"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments/ledger/"+ledgerID.String(), bytes.NewReader(body))
	req = addRouteParam(req, "ledgerId", ledgerID.String())

	resp := httptest.NewRecorder()
	PaymentWebhookByLedgerID(svc, nil, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("expected one apply call, got %d", svc.calls)
	}
	if svc.lastLedgerID != ledgerID {
		t.Fatalf("expected ledger %s, got %s", ledgerID, svc.lastLedgerID)
	}
	if svc.lastInput.Status != enums.PaymentStatusPaid {
		t.Fatalf("expected PAID, got %s", svc.lastInput.Status)
	}
	if svc.lastInput.VendorID == nil || *svc.lastInput.VendorID != vendorID {
		t.Fatalf("vendor id not carried: %v", svc.lastInput.VendorID)
	}
	if len(svc.lastInput.Response) == 0 {
		t.Fatal("raw response not carried")
	}
}

func TestPaymentWebhookByLedgerIDRejectsBadID(t *testing.T) {
	svc := &testProcessor{}
	body, _ := json.Marshal(map[string]string{"status": "PAID"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments/ledger/nope", bytes.NewReader(body))
	req = addRouteParam(req, "ledgerId", "nope")

	resp := httptest.NewRecorder()
	PaymentWebhookByLedgerID(svc, nil, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("processor should not run on invalid id")
	}
}

func TestPaymentWebhookRejectsUnknownStatus(t *testing.T) {
	ledgerID := uuid.New()
	body, _ := json.Marshal(map[string]string{"status": "SETTLED"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments/ledger/"+ledgerID.String(), bytes.NewReader(body))
	req = addRouteParam(req, "ledgerId", ledgerID.String())

	resp := httptest.NewRecorder()
	PaymentWebhookByLedgerID(&testProcessor{}, nil, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestPaymentWebhookByOrderIDAppliesVerdict(t *testing.T) {
	orderID := uuid.NewString()
	svc := &testProcessor{}

	body, _ := json.Marshal(map[string]string{"status": "FAILED"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments/orders/"+orderID, bytes.NewReader(body))
	req = addRouteParam(req, "orderId", orderID)

	resp := httptest.NewRecorder()
	PaymentWebhookByOrderID(svc, nil, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastOrderID != orderID {
		t.Fatalf("expected order %s, got %s", orderID, svc.lastOrderID)
	}
	if svc.lastInput.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected FAILED, got %s", svc.lastInput.Status)
	}
}

func TestPaymentWebhookMapsNotFound(t *testing.T) {
	ledgerID := uuid.New()
	svc := &testProcessor{err: pkgerrors.New(pkgerrors.CodeNotFound, "payment log not found")}

	body, _ := json.Marshal(map[string]string{"status": "PAID"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments/ledger/"+ledgerID.String(), bytes.NewReader(body))
	req = addRouteParam(req, "ledgerId", ledgerID.String())

	resp := httptest.NewRecorder()
	PaymentWebhookByLedgerID(svc, nil, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
