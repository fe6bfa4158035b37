package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mailgate/internal/middleware"
	"github.com/hitoshi/mailgate/internal/model"
)

// APIKeyServiceInterface はAPIキーハンドラーが必要とするサービスインターフェース。
// credential.Storeの部分集合として定義する。
type APIKeyServiceInterface interface {
	GenerateAPIKey(ctx context.Context, userID, name string) (string, error)
	ListAPIKeys(ctx context.Context, userID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, apiKey string) error
}

// APIKeyHandler はAPIキー管理のHTTPハンドラー。
type APIKeyHandler struct {
	service APIKeyServiceInterface
}

// NewAPIKeyHandler はAPIKeyHandlerを生成する。
func NewAPIKeyHandler(service APIKeyServiceInterface) *APIKeyHandler {
	return &APIKeyHandler{service: service}
}

// createAPIKeyRequest はAPIキー作成のリクエストボディ。
type createAPIKeyRequest struct {
	Name string `json:"name"`
}

// apiKeyResponse はAPIキー一覧のレスポンス表現。キー値はマスクする。
type apiKeyResponse struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	LastUsedAt string `json:"last_used_at,omitempty"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at"`
}

// Create はAPIキーを発行する。キーの全文はこのレスポンスでのみ返される。
// POST /apikeys
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := realUserFromRequest(w, r)
	if !ok {
		return
	}

	var req createAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSONが不正です。"))
		return
	}
	if req.Name == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("キー名（name）は必須です。"))
		return
	}

	apiKey, err := h.service.GenerateAPIKey(r.Context(), userID, req.Name)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"api_key":   apiKey,
		"name":      req.Name,
		"timestamp": timestamp(),
	})
}

// List は自分のAPIキー一覧をマスク済みで返す。
// GET /apikeys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := realUserFromRequest(w, r)
	if !ok {
		return
	}

	keys, err := h.service.ListAPIKeys(r.Context(), userID)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	responses := make([]apiKeyResponse, 0, len(keys))
	for _, key := range keys {
		resp := apiKeyResponse{
			Key:       maskAPIKey(key.Key),
			Name:      key.Name,
			IsActive:  key.IsActive,
			CreatedAt: key.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if key.LastUsedAt != nil {
			resp.LastUsedAt = key.LastUsedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		responses = append(responses, resp)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"api_keys":  responses,
		"count":     len(responses),
		"timestamp": timestamp(),
	})
}

// Revoke は自分のAPIキーを論理無効化する。他ユーザーのキーは404を返す。
// DELETE /apikeys/{key}
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := realUserFromRequest(w, r)
	if !ok {
		return
	}

	target := chi.URLParam(r, "key")
	if target == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("APIキーは必須です。"))
		return
	}

	// 所有権の確認。他ユーザーのキーの存在は漏らさない。
	keys, err := h.service.ListAPIKeys(r.Context(), userID)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}
	owned := false
	for _, key := range keys {
		if key.Key == target {
			owned = true
			break
		}
	}
	if !owned {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError("APIキー"))
		return
	}

	if err := h.service.RevokeAPIKey(r.Context(), target); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "APIキーを無効化しました。",
		"timestamp": timestamp(),
	})
}

// realUserFromRequest はコンテキストから実ユーザーIDを取得する。
// 生のアクセストークン由来の擬似IDではAPIキー管理は行えない。
func realUserFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil || strings.HasPrefix(userID, "token:") {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return "", false
	}
	return userID, true
}

// maskAPIKey はAPIキーを先頭8文字と末尾4文字のみ見える形にマスクする。
func maskAPIKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:8] + "..." + key[len(key)-4:]
}
