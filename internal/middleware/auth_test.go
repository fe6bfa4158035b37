package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/mailgate/internal/model"
)

// --- モック定義 ---

type mockTokenResolver struct {
	accessTokenForSessionFn func(ctx context.Context, sessionToken string) (string, *model.UserInfo, error)
	accessTokenForUserFn    func(ctx context.Context, userID string) (string, error)
}

func (m *mockTokenResolver) AccessTokenForSession(ctx context.Context, sessionToken string) (string, *model.UserInfo, error) {
	if m.accessTokenForSessionFn != nil {
		return m.accessTokenForSessionFn(ctx, sessionToken)
	}
	return "", nil, model.NewAuthRequiredError()
}

func (m *mockTokenResolver) AccessTokenForUser(ctx context.Context, userID string) (string, error) {
	if m.accessTokenForUserFn != nil {
		return m.accessTokenForUserFn(ctx, userID)
	}
	return "", model.NewAuthRequiredError()
}

type mockAPIKeyValidator struct {
	validateAPIKeyFn func(ctx context.Context, apiKey string) (*model.UserInfo, error)
}

func (m *mockAPIKeyValidator) ValidateAPIKey(ctx context.Context, apiKey string) (*model.UserInfo, error) {
	if m.validateAPIKeyFn != nil {
		return m.validateAPIKeyFn(ctx, apiKey)
	}
	return nil, nil
}

var (
	_ TokenResolver   = (*mockTokenResolver)(nil)
	_ APIKeyValidator = (*mockAPIKeyValidator)(nil)
)

// captureHandler は認証ミドルウェア通過後のコンテキスト値を記録する。
type captureHandler struct {
	called      bool
	userID      string
	accessToken string
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.userID, _ = UserIDFromContext(r.Context())
	h.accessToken, _ = AccessTokenFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

// --- テスト ---

func TestAuthMiddleware_NoCredentials_Returns401(t *testing.T) {
	next := &captureHandler{}
	mw := NewAuthMiddleware(&mockTokenResolver{}, &mockAPIKeyValidator{})

	req := httptest.NewRequest(http.MethodGet, "/emails/list", nil)
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if next.called {
		t.Error("next handler must not be called")
	}
	if body := decodeErrorBody(t, rec); body.Code != model.ErrCodeAuthRequired {
		t.Errorf("code = %q, want AUTH_REQUIRED", body.Code)
	}
}

func TestAuthMiddleware_APIKey_ResolvesUserToken(t *testing.T) {
	resolver := &mockTokenResolver{
		accessTokenForUserFn: func(ctx context.Context, userID string) (string, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			return "graph-at", nil
		},
	}
	validator := &mockAPIKeyValidator{
		validateAPIKeyFn: func(ctx context.Context, apiKey string) (*model.UserInfo, error) {
			if apiKey != "mk_valid" {
				t.Errorf("apiKey = %q", apiKey)
			}
			return &model.UserInfo{UserID: "user-1", Email: "taro@example.com"}, nil
		},
	}

	next := &captureHandler{}
	mw := NewAuthMiddleware(resolver, validator)

	req := httptest.NewRequest(http.MethodGet, "/emails/list", nil)
	req.Header.Set("Authorization", "Bearer mk_valid")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if next.userID != "user-1" {
		t.Errorf("context userID = %q", next.userID)
	}
	if next.accessToken != "graph-at" {
		t.Errorf("context accessToken = %q", next.accessToken)
	}
}

func TestAuthMiddleware_UnknownAPIKey_Returns401(t *testing.T) {
	validator := &mockAPIKeyValidator{
		validateAPIKeyFn: func(ctx context.Context, apiKey string) (*model.UserInfo, error) {
			return nil, nil
		},
	}

	next := &captureHandler{}
	mw := NewAuthMiddleware(&mockTokenResolver{}, validator)

	req := httptest.NewRequest(http.MethodGet, "/emails/list", nil)
	req.Header.Set("Authorization", "Bearer mk_unknown")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if body := decodeErrorBody(t, rec); body.Code != model.ErrCodeTokenInvalid {
		t.Errorf("code = %q, want TOKEN_INVALID", body.Code)
	}
	if next.called {
		t.Error("next handler must not be called")
	}
}

func TestAuthMiddleware_RawBearerToken_PassesThrough(t *testing.T) {
	next := &captureHandler{}
	mw := NewAuthMiddleware(&mockTokenResolver{}, &mockAPIKeyValidator{})

	req := httptest.NewRequest(http.MethodGet, "/emails/list", nil)
	req.Header.Set("Authorization", "Bearer raw-graph-token")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if next.accessToken != "raw-graph-token" {
		t.Errorf("context accessToken = %q", next.accessToken)
	}
	// トークン自体はユーザーIDに露出しない
	if !strings.HasPrefix(next.userID, "token:") {
		t.Errorf("userID = %q, want token: prefix", next.userID)
	}
	if strings.Contains(next.userID, "raw-graph-token") {
		t.Error("raw token must not appear in the principal")
	}
}

func TestAuthMiddleware_RawBearerToken_StablePrincipal(t *testing.T) {
	run := func() string {
		next := &captureHandler{}
		mw := NewAuthMiddleware(&mockTokenResolver{}, &mockAPIKeyValidator{})
		req := httptest.NewRequest(http.MethodGet, "/emails/list", nil)
		req.Header.Set("Authorization", "Bearer same-token")
		rec := httptest.NewRecorder()
		mw(next).ServeHTTP(rec, req)
		return next.userID
	}

	if run() != run() {
		t.Error("same token should map to the same principal")
	}
}

func TestAuthMiddleware_SessionCookie_Resolves(t *testing.T) {
	resolver := &mockTokenResolver{
		accessTokenForSessionFn: func(ctx context.Context, sessionToken string) (string, *model.UserInfo, error) {
			if sessionToken != "sess-1" {
				t.Errorf("sessionToken = %q", sessionToken)
			}
			return "graph-at", &model.UserInfo{UserID: "user-1"}, nil
		},
	}

	next := &captureHandler{}
	mw := NewAuthMiddleware(resolver, &mockAPIKeyValidator{})

	req := httptest.NewRequest(http.MethodGet, "/emails/list", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "sess-1"})
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if next.userID != "user-1" || next.accessToken != "graph-at" {
		t.Errorf("userID = %q, accessToken = %q", next.userID, next.accessToken)
	}
}

func TestAuthMiddleware_ExpiredSession_Returns401(t *testing.T) {
	resolver := &mockTokenResolver{
		accessTokenForSessionFn: func(ctx context.Context, sessionToken string) (string, *model.UserInfo, error) {
			return "", nil, model.NewAuthRequiredError()
		},
	}

	next := &captureHandler{}
	mw := NewAuthMiddleware(resolver, &mockAPIKeyValidator{})

	req := httptest.NewRequest(http.MethodGet, "/emails/list", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "expired"})
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if next.called {
		t.Error("next handler must not be called")
	}
}

func TestAuthMiddleware_StorageFailure_Returns500(t *testing.T) {
	resolver := &mockTokenResolver{
		accessTokenForSessionFn: func(ctx context.Context, sessionToken string) (string, *model.UserInfo, error) {
			return "", nil, model.NewStorageError()
		},
	}

	mw := NewAuthMiddleware(resolver, &mockAPIKeyValidator{})

	req := httptest.NewRequest(http.MethodGet, "/emails/list", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "sess-1"})
	rec := httptest.NewRecorder()
	mw(&captureHandler{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestBearerToken_Parsing(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		wantOK bool
	}{
		{"通常のBearer", "Bearer abc123", "abc123", true},
		{"ヘッダーなし", "", "", false},
		{"Bearer以外のスキーム", "Basic abc123", "", false},
		{"トークンが空", "Bearer ", "", false},
		{"前後の空白はトリム", "Bearer  abc  ", "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, ok := bearerToken(req)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("bearerToken() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
