// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/mailgate/internal/credential"
	"github.com/hitoshi/mailgate/internal/model"
)

const sessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// accessTokenContextKey はリクエストコンテキストにGraphアクセストークンを格納するためのキー。
	accessTokenContextKey = contextKey("access_token")
)

// TokenResolver はセッション・ユーザーから有効なアクセストークンを解決する
// インターフェース。auth.Serviceの部分集合として定義する。
type TokenResolver interface {
	AccessTokenForSession(ctx context.Context, sessionToken string) (string, *model.UserInfo, error)
	AccessTokenForUser(ctx context.Context, userID string) (string, error)
}

// APIKeyValidator はAPIキーの検証に必要なインターフェース。
// credential.Storeの部分集合として定義する。
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, apiKey string) (*model.UserInfo, error)
}

// NewAuthMiddleware はリクエストの認証情報を解決するミドルウェアを返す。
// 優先順位は次の通り:
//  1. AuthorizationヘッダーのBearerトークンがAPIキー形式の場合、APIキー検証
//  2. それ以外のBearerトークンはGraphアクセストークンとしてそのまま通過
//  3. ヘッダーが無い場合はセッションCookieを検証
//
// いずれでも認証できない場合は401 Unauthorizedを返す。
// 解決したユーザーIDとアクセストークンをリクエストコンテキストに注入する。
func NewAuthMiddleware(resolver TokenResolver, apiKeys APIKeyValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if credential.IsAPIKey(token) {
					authenticateWithAPIKey(w, r, next, resolver, apiKeys, token)
					return
				}
				// APIキー形式でないBearerトークンはGraphアクセストークンとして扱う。
				// 有効性は上流呼び出し時に判明する。
				ctx := ContextWithUserID(r.Context(), tokenPrincipal(token))
				ctx = ContextWithAccessToken(ctx, token)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
				return
			}

			accessToken, user, err := resolver.AccessTokenForSession(r.Context(), cookie.Value)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			ctx := ContextWithUserID(r.Context(), user.UserID)
			ctx = ContextWithAccessToken(ctx, accessToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticateWithAPIKey はAPIキーを検証し、ユーザーのアクセストークンを解決する。
func authenticateWithAPIKey(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	resolver TokenResolver,
	apiKeys APIKeyValidator,
	apiKey string,
) {
	user, err := apiKeys.ValidateAPIKey(r.Context(), apiKey)
	if err != nil {
		slog.Error("failed to validate api key", slog.String("error", err.Error()))
		WriteInternalServerError(w)
		return
	}
	if user == nil {
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError())
		return
	}

	accessToken, err := resolver.AccessTokenForUser(r.Context(), user.UserID)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	ctx := ContextWithUserID(r.Context(), user.UserID)
	ctx = ContextWithAccessToken(ctx, accessToken)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// writeAuthError は認証エラーを適切なステータスコードで書き込む。
func writeAuthError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*model.APIError); ok {
		status := http.StatusUnauthorized
		if apiErr.Category == "storage" || apiErr.Category == "system" {
			status = http.StatusInternalServerError
		}
		WriteErrorResponse(w, status, apiErr)
		return
	}
	slog.Error("authentication failed", slog.String("error", err.Error()))
	WriteInternalServerError(w)
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}

// tokenPrincipal は生のアクセストークンからログ・レート制限用の識別子を導出する。
// トークン自体をログに残さないためハッシュの先頭のみを使用する。
func tokenPrincipal(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "token:" + hex.EncodeToString(sum[:8])
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// AccessTokenFromContext はリクエストコンテキストからGraphアクセストークンを取得する。
func AccessTokenFromContext(ctx context.Context) (string, error) {
	token, ok := ctx.Value(accessTokenContextKey).(string)
	if !ok || token == "" {
		return "", fmt.Errorf("access token not found in context")
	}
	return token, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithAccessToken はコンテキストにアクセストークンを注入する。
func ContextWithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenContextKey, token)
}
