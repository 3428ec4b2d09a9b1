package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func TestHealthHandler_Check_DatabaseConnected(t *testing.T) {
	h := NewHealthHandler(&mockHealthChecker{}, "1.0.0")
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h.Check(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "healthy" {
		t.Errorf("status = %q, want %q", body.Status, "healthy")
	}
	if body.Database != "connected" {
		t.Errorf("database = %q, want %q", body.Database, "connected")
	}
	if body.Version != "1.0.0" {
		t.Errorf("version = %q, want %q", body.Version, "1.0.0")
	}
	if !body.Timestamp.Equal(fixed) {
		t.Errorf("timestamp = %v, want %v", body.Timestamp, fixed)
	}
}

// データベースが落ちていてもヘルスチェック自体は200を返す。
// 死活はstatusで、DB接続はdatabaseフィールドで個別に報告する。
func TestHealthHandler_Check_DatabaseDisconnected_Still200(t *testing.T) {
	checker := &mockHealthChecker{
		pingFn: func(ctx context.Context) error {
			return errors.New("connection refused")
		},
	}

	h := NewHealthHandler(checker, "1.0.0")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h.Check(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body healthResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "healthy" {
		t.Errorf("status = %q, want %q", body.Status, "healthy")
	}
	if body.Database != "disconnected" {
		t.Errorf("database = %q, want %q", body.Database, "disconnected")
	}
}
