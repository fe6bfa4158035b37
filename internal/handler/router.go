package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/mailgate/internal/metrics"
	"github.com/hitoshi/mailgate/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenResolver     middleware.TokenResolver
	APIKeyValidator   middleware.APIKeyValidator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder

	// 認証
	AuthService        AuthServiceInterface
	SessionInvalidator SessionInvalidator
	OAuthConfig        OAuthHandlerConfig
	AuthMetrics        AuthMetrics

	// メール
	EmailService EmailServiceInterface

	// APIキー管理
	APIKeyService APIKeyServiceInterface

	// ヘルスチェック
	DB      Pinger
	Version string

	// メトリクス公開
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → [Auth → RateLimit(General)]
//
// OAuthルート・ヘルスチェック・/metricsは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))

	oauthHandler := NewOAuthHandler(deps.AuthService, deps.SessionInvalidator, deps.OAuthConfig, deps.AuthMetrics)
	emailHandler := NewEmailHandler(deps.EmailService)
	apiKeyHandler := NewAPIKeyHandler(deps.APIKeyService)
	healthHandler := NewHealthHandler(deps.DB, deps.Version)

	// --- 認証不要のルート ---

	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)

	if deps.MetricsGatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.MetricsGatherer).ServeHTTP)
	}

	// OAuth認証フロー
	r.Route("/oauth", func(r chi.Router) {
		r.Get("/get_authorization_url", oauthHandler.GetAuthorizationURL)
		r.Get("/get_credentials", oauthHandler.GetCredentials)
		r.Post("/refresh", oauthHandler.Refresh)
		r.Post("/validate", oauthHandler.Validate)
		r.Post("/logout", oauthHandler.Logout)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenResolver, deps.APIKeyValidator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// メール操作
		r.Route("/emails", func(r chi.Router) {
			r.Get("/list", emailHandler.List)
			r.Get("/folders/list", emailHandler.ListFolders)

			// 送信系は専用レート制限を追加
			r.With(deps.RateLimiter.SendMiddleware()).Post("/send", emailHandler.Send)

			r.Route("/drafts", func(r chi.Router) {
				r.Post("/", emailHandler.CreateDraft)
				r.Post("/{id}/attachments", emailHandler.AddAttachment)
				r.With(deps.RateLimiter.SendMiddleware()).Post("/{id}/send", emailHandler.SendDraft)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", emailHandler.Get)
				r.Patch("/", emailHandler.Update)
				r.Delete("/", emailHandler.Delete)
				r.Patch("/priority", emailHandler.Prioritize)
				r.Patch("/read", emailHandler.MarkRead)
			})
		})

		// APIキー管理
		r.Route("/apikeys", func(r chi.Router) {
			r.Post("/", apiKeyHandler.Create)
			r.Get("/", apiKeyHandler.List)
			r.Delete("/{key}", apiKeyHandler.Revoke)
		})
	})

	return r
}
