// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/mailgate/internal/auth"
	"github.com/hitoshi/mailgate/internal/middleware"
	"github.com/hitoshi/mailgate/internal/model"
)

const (
	sessionCookieName = "session_token"
	oauthStateCookie  = "oauth_state"
)

// AuthServiceInterface はOAuthハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*auth.ExchangeResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (model.TokenPair, error)
	ValidateAccessToken(ctx context.Context, accessToken string) bool
}

// SessionInvalidator はログアウトに必要なインターフェース。
// credential.Storeの部分集合として定義する。
type SessionInvalidator interface {
	InvalidateSession(ctx context.Context, sessionToken string) error
}

// AuthMetrics は認証系メトリクスの記録インターフェース。
type AuthMetrics interface {
	RecordAuthExchange(success bool)
	RecordTokenRefresh(success bool)
}

// noopAuthMetrics は記録を行わないAuthMetrics。
type noopAuthMetrics struct{}

func (noopAuthMetrics) RecordAuthExchange(bool) {}
func (noopAuthMetrics) RecordTokenRefresh(bool) {}

// OAuthHandlerConfig はOAuthハンドラーの設定。
type OAuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// OAuthHandler はOAuth認証フロー関連のHTTPハンドラー。
type OAuthHandler struct {
	service  AuthServiceInterface
	sessions SessionInvalidator
	config   OAuthHandlerConfig
	metrics  AuthMetrics
}

// NewOAuthHandler はOAuthHandlerを生成する。metricsはnil可。
func NewOAuthHandler(service AuthServiceInterface, sessions SessionInvalidator, config OAuthHandlerConfig, metrics AuthMetrics) *OAuthHandler {
	if metrics == nil {
		metrics = noopAuthMetrics{}
	}
	return &OAuthHandler{
		service:  service,
		sessions: sessions,
		config:   config,
		metrics:  metrics,
	}
}

// GetAuthorizationURL は認可エンドポイントのURLを返す。
// GET /oauth/get_authorization_url
func (h *OAuthHandler) GetAuthorizationURL(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（コールバック時の検証用）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"auth_url":  h.service.AuthorizationURL(state),
		"state":     state,
		"timestamp": timestamp(),
	})
}

// GetCredentials は認可コードをトークンに交換し、セッションを発行する。
// GET /oauth/get_credentials?code=xxx&state=yyy
func (h *OAuthHandler) GetCredentials(w http.ResponseWriter, r *http.Request) {
	// stateの検証。Cookieを持たないAPIクライアントはスキップされる。
	if stateCookie, err := r.Cookie(oauthStateCookie); err == nil && stateCookie.Value != "" {
		if r.URL.Query().Get("state") != stateCookie.Value {
			slog.Warn("oauth state mismatch")
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("stateパラメータが一致しません。"))
			return
		}
		// stateクッキーを削除
		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	code := r.URL.Query().Get("code")
	result, err := h.service.ExchangeCode(r.Context(), code)
	if err != nil {
		h.metrics.RecordAuthExchange(false)
		slog.Error("code exchange failed", slog.String("error", err.Error()))
		middleware.WriteAPIError(w, err)
		return
	}
	h.metrics.RecordAuthExchange(true)

	// セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    result.SessionToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
		"expires_in":    result.Tokens.ExpiresIn,
		"token_type":    "Bearer",
		"user_id":       result.UserID,
		"email":         result.Identity.Email,
		"display_name":  result.Identity.DisplayName,
		"timestamp":     timestamp(),
	})
}

// refreshRequest は/oauth/refreshのリクエストボディ。
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh はリフレッシュトークンで新しいトークンを取得する。
// POST /oauth/refresh
func (h *OAuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSONが不正です。"))
		return
	}

	tokens, err := h.service.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		h.metrics.RecordTokenRefresh(false)
		middleware.WriteAPIError(w, err)
		return
	}
	h.metrics.RecordTokenRefresh(true)

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    tokens.ExpiresIn,
		"token_type":    "Bearer",
		"timestamp":     timestamp(),
	})
}

// validateRequest は/oauth/validateのリクエストボディ。
type validateRequest struct {
	AccessToken string `json:"access_token"`
}

// Validate はアクセストークンの有効性を確認する。無効な場合は401を返す。
// POST /oauth/validate
func (h *OAuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSONが不正です。"))
		return
	}
	if req.AccessToken == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("access_tokenは必須です。"))
		return
	}

	if !h.service.ValidateAccessToken(r.Context(), req.AccessToken) {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"timestamp": timestamp(),
	})
}

// Logout はセッションを論理無効化し、Cookieをクリアする。
// POST /oauth/logout
func (h *OAuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.sessions.InvalidateSession(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "ログアウトしました。",
		"timestamp": timestamp(),
	})
}

// generateState はコールバック検証用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// timestamp はレスポンス用のUTCタイムスタンプを返す。
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
