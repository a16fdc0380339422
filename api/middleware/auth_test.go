package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/shikshalabs/enrollhub-backend/pkg/auth"
	"github.com/shikshalabs/enrollhub-backend/pkg/config"
	"github.com/shikshalabs/enrollhub-backend/pkg/enums"
	"github.com/shikshalabs/enrollhub-backend/pkg/logger"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "enrollhub-test",
		ExpirationMinutes: 15,
	}
}

func mintToken(t *testing.T, cfg config.JWTConfig, payload pkgauth.AccessTokenPayload) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg, time.Now(), payload)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthSeedsContextFromClaims(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	instituteID := uuid.New()
	token := mintToken(t, cfg, pkgauth.AccessTokenPayload{
		UserID:      userID,
		InstituteID: &instituteID,
		Role:        enums.UserRoleInstituteAdmin,
	})

	var gotUser, gotRole, gotInstitute string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		gotInstitute = InstituteIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	handler := Auth(cfg, logg)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if gotUser != userID.String() {
		t.Fatalf("expected user %s, got %s", userID, gotUser)
	}
	if gotRole != string(enums.UserRoleInstituteAdmin) {
		t.Fatalf("expected role INSTITUTE_ADMIN, got %s", gotRole)
	}
	if gotInstitute != instituteID.String() {
		t.Fatalf("expected institute %s, got %s", instituteID, gotInstitute)
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsTamperedToken(t *testing.T) {
	cfg := testJWTConfig()
	token := mintToken(t, cfg, pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.UserRoleLearner,
	})

	other := cfg
	other.Secret = "different-secret"
	handler := Auth(other, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequirePaymentOverrideBlocksLearners(t *testing.T) {
	handler := RequirePaymentOverride(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler should not run")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/payments/x/status", nil)
	req = req.WithContext(WithRole(req.Context(), string(enums.UserRoleLearner)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestRequirePaymentOverrideAllowsInstituteAdmin(t *testing.T) {
	ran := false
	handler := RequirePaymentOverride(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ran = true
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/payments/x/status", nil)
	req = req.WithContext(WithRole(req.Context(), string(enums.UserRoleInstituteAdmin)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if !ran {
		t.Fatal("expected next handler to run")
	}
}
