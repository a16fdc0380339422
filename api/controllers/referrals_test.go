package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type testDiscounter struct {
	discount   decimal.Decimal
	err        error
	lastOption uuid.UUID
	lastPrice  decimal.Decimal
}

func (s *testDiscounter) RefereeDiscount(_ context.Context, referralOptionID uuid.UUID, price decimal.Decimal) (decimal.Decimal, error) {
	s.lastOption = referralOptionID
	s.lastPrice = price
	return s.discount, s.err
}

func TestReferralDiscountPreviewQuotesPayable(t *testing.T) {
	optionID := uuid.New()
	svc := &testDiscounter{discount: decimal.NewFromInt(200)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/referrals/"+optionID.String()+"/discount?amount=1000", nil)
	req = addRouteParam(req, "referralOptionId", optionID.String())

	resp := httptest.NewRecorder()
	ReferralDiscountPreview(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastOption != optionID {
		t.Fatalf("expected option %s, got %s", optionID, svc.lastOption)
	}
	if !svc.lastPrice.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected price 1000, got %s", svc.lastPrice)
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["discount"] != "200.00" {
		t.Fatalf("unexpected discount %s", envelope.Data["discount"])
	}
	if envelope.Data["payable"] != "800.00" {
		t.Fatalf("unexpected payable %s", envelope.Data["payable"])
	}
}

func TestReferralDiscountPreviewClampsToZero(t *testing.T) {
	optionID := uuid.New()
	svc := &testDiscounter{discount: decimal.NewFromInt(500)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/referrals/"+optionID.String()+"/discount?amount=300", nil)
	req = addRouteParam(req, "referralOptionId", optionID.String())

	resp := httptest.NewRecorder()
	ReferralDiscountPreview(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["payable"] != "0.00" {
		t.Fatalf("payable should clamp at zero, got %s", envelope.Data["payable"])
	}
}

func TestReferralDiscountPreviewRequiresAmount(t *testing.T) {
	optionID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/referrals/"+optionID.String()+"/discount", nil)
	req = addRouteParam(req, "referralOptionId", optionID.String())

	resp := httptest.NewRecorder()
	ReferralDiscountPreview(&testDiscounter{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
