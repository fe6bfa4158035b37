package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger はデータベースの疎通確認に必要なインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db      Pinger
	version string
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// Root はサービスの概要を返す。
// GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   "mailgate",
		"version":   h.version,
		"status":    "running",
		"timestamp": timestamp(),
		"endpoints": map[string]string{
			"health":  "/health",
			"oauth":   "/oauth/get_authorization_url",
			"emails":  "/emails/list",
			"metrics": "/metrics",
		},
	})
}

// Health はコンポーネント別のヘルス状態を返す。
// データベース接続に失敗した場合は503を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := map[string]string{
		"database": "ok",
	}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		components["database"] = "unavailable"
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  timestamp(),
	})
}
