package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// データベース接続状態の表示値。
const (
	dbStatusConnected    = "connected"
	dbStatusDisconnected = "disconnected"
)

// HealthChecker はヘルスチェックが依存するデータベース疎通確認のインターフェース。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthHandler はヘルスチェックエンドポイントのハンドラー。
// データベースが落ちていてもプロセス自体の生存は報告する。
type HealthHandler struct {
	checker HealthChecker
	version string
	now     func() time.Time // テストで時刻を固定するためのフック
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checker HealthChecker, version string) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		version: version,
		now:     time.Now,
	}
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Version   string    `json:"version"`
}

// Check はサービスの稼働状態を返す。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	database := dbStatusConnected
	if err := h.checker.Ping(r.Context()); err != nil {
		slog.Warn("health check: database unreachable", slog.String("error", err.Error()))
		database = dbStatusDisconnected
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
		Database:  database,
		Version:   h.version,
	})
}
