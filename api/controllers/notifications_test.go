package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/shikshalabs/enrollhub-backend/api/middleware"
	"github.com/shikshalabs/enrollhub-backend/internal/notifications"
)

type testNotificationsService struct {
	listFn     func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
	lastParams notifications.ListParams
}

func (s *testNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.lastParams = params
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &notifications.ListResult{}, nil
}

func TestListNotificationsUsesAuthenticatedUser(t *testing.T) {
	userID := uuid.New()
	svc := &testNotificationsService{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=5&cursor=abc", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))

	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastParams.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, svc.lastParams.UserID)
	}
	if svc.lastParams.Limit != 5 {
		t.Fatalf("expected limit 5, got %d", svc.lastParams.Limit)
	}
	if svc.lastParams.Cursor != "abc" {
		t.Fatalf("expected cursor abc, got %s", svc.lastParams.Cursor)
	}
}

func TestListNotificationsRequiresUserContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	resp := httptest.NewRecorder()
	ListNotifications(&testNotificationsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=oops", nil)
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))

	resp := httptest.NewRecorder()
	ListNotifications(&testNotificationsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
