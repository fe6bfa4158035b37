// Package auth はOAuth認可コードフローとトークンライフサイクル管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/mailgate/internal/credential"
	"github.com/hitoshi/mailgate/internal/model"
)

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// AuthorizationURL は認可エンドポイントのURLを生成する。
	AuthorizationURL(state string) string
	// ExchangeCode は認可コードをトークンに交換する。
	ExchangeCode(ctx context.Context, code string) (model.TokenPair, error)
	// Refresh はリフレッシュトークングラントで新しいトークンを取得する。
	Refresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	// FetchProfile はアクセストークンで呼び出しユーザーのプロファイルを取得する。
	FetchProfile(ctx context.Context, accessToken string) (credential.Identity, error)
	// ValidateToken はアクセストークンの有効性を確認する。
	ValidateToken(ctx context.Context, accessToken string) bool
}

// CredentialStore は認証サービスが必要とする資格情報ストアのインターフェース。
// credential.Storeの部分集合として定義する。
type CredentialStore interface {
	SaveUserCredential(ctx context.Context, ident credential.Identity, tokens model.TokenPair) (string, error)
	CreateSession(ctx context.Context, userID string, duration time.Duration) (string, error)
	ValidateSession(ctx context.Context, sessionToken string) (model.SessionValidation, error)
	GetCredential(ctx context.Context, userID string) (*model.UserCredential, error)
	UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresIn int) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int           // セッション有効期間（秒）
	RefreshMargin time.Duration // 期限の何分前からリフレッシュするか
}

// ExchangeResult は認可コード交換の結果。
type ExchangeResult struct {
	UserID       string
	SessionToken string
	Identity     credential.Identity
	Tokens       model.TokenPair
}

// Service はトークンライフサイクル（交換・リフレッシュ・検証）を管理する。
// アクセストークンはFresh → NearExpiry（残り5分未満）→ Expiredと遷移し、
// NearExpiry/Expiredはリフレッシュによって再びFreshに戻る。
// リフレッシュ失敗時は再認可が必要となる。
type Service struct {
	oauth  OAuthProvider
	store  CredentialStore
	config ServiceConfig
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, store CredentialStore, config ServiceConfig) *Service {
	if config.RefreshMargin == 0 {
		config.RefreshMargin = 5 * time.Minute
	}
	return &Service{
		oauth:  oauth,
		store:  store,
		config: config,
	}
}

// AuthorizationURL は認可エンドポイントのURLを生成する。ログ以外の副作用はない。
func (s *Service) AuthorizationURL(state string) string {
	url := s.oauth.AuthorizationURL(state)
	slog.Info("generated authorization URL")
	return url
}

// ExchangeCode は認可コードをトークンに交換し、プロファイル取得・資格情報の
// 永続化・セッション発行までを行う。
// コードが空、プロバイダーがコードを拒否、レスポンスにアクセストークンまたは
// リフレッシュトークンが無い場合はAuthExchangeErrorを返す。
func (s *Service) ExchangeCode(ctx context.Context, code string) (*ExchangeResult, error) {
	if code == "" {
		return nil, model.NewAuthExchangeError("認可コードが指定されていません")
	}

	tokens, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		slog.Error("code exchange failed", slog.String("error", err.Error()))
		return nil, model.NewAuthExchangeError(err.Error())
	}
	if tokens.AccessToken == "" {
		return nil, model.NewAuthExchangeError("レスポンスにアクセストークンがありません")
	}
	if tokens.RefreshToken == "" {
		return nil, model.NewAuthExchangeError("レスポンスにリフレッシュトークンがありません")
	}

	ident, err := s.oauth.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		slog.Error("profile fetch failed", slog.String("error", err.Error()))
		return nil, model.NewAuthExchangeError("ユーザープロファイルの取得に失敗しました")
	}

	userID, err := s.store.SaveUserCredential(ctx, ident, tokens)
	if err != nil {
		return nil, fmt.Errorf("failed to persist credential: %w", err)
	}

	sessionToken, err := s.store.CreateSession(ctx, userID, time.Duration(s.config.SessionMaxAge)*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to establish session: %w", err)
	}

	slog.Info("exchanged authorization code",
		slog.String("user_id", userID),
		slog.String("email", ident.Email),
	)

	return &ExchangeResult{
		UserID:       userID,
		SessionToken: sessionToken,
		Identity:     ident,
		Tokens:       tokens,
	}, nil
}

// AccessTokenForUser は指定ユーザーの有効なアクセストークンを返す。
// 期限までRefreshMargin以上残っている場合は保存済みトークンをそのまま返し、
// それ以外はリフレッシュしてストアを更新してから返す。
// リフレッシュ不能な場合はAuthRequiredErrorを返す（再認可が必要）。
func (s *Service) AccessTokenForUser(ctx context.Context, userID string) (string, error) {
	cred, err := s.store.GetCredential(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return "", model.NewAuthRequiredError()
	}

	return s.freshAccessToken(ctx, userID, cred.AccessToken, cred.RefreshToken, cred.TokenExpiresAt)
}

// AccessTokenForSession はセッショントークンから有効なアクセストークンを解決する。
// セッションが見つからない・期限切れの場合はAuthRequiredErrorを返す。
func (s *Service) AccessTokenForSession(ctx context.Context, sessionToken string) (string, *model.UserInfo, error) {
	validation, err := s.store.ValidateSession(ctx, sessionToken)
	if err != nil {
		return "", nil, fmt.Errorf("failed to validate session: %w", err)
	}
	if validation.Status != model.SessionFound {
		return "", nil, model.NewAuthRequiredError()
	}

	user := validation.User
	token, err := s.freshAccessToken(ctx, user.UserID, user.AccessToken, user.RefreshToken, user.TokenExpiresAt)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// freshAccessToken は必要に応じてリフレッシュした有効なアクセストークンを返す。
// レスポンスに新しいリフレッシュトークンが無い場合は既存のものを維持する。
// 同一ユーザーの同時リフレッシュは排他せずlast-writer-winsとする。
func (s *Service) freshAccessToken(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) (string, error) {
	if time.Until(expiresAt) > s.config.RefreshMargin {
		return accessToken, nil
	}

	if refreshToken == "" {
		return "", model.NewAuthRequiredError()
	}

	tokens, err := s.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		slog.Warn("token refresh failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return "", model.NewAuthRequiredError()
	}
	if tokens.AccessToken == "" {
		return "", model.NewAuthRequiredError()
	}

	if err := s.store.UpdateTokens(ctx, userID, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresIn); err != nil {
		return "", fmt.Errorf("failed to store refreshed tokens: %w", err)
	}

	slog.Info("refreshed access token", slog.String("user_id", userID))
	return tokens.AccessToken, nil
}

// RefreshToken はリフレッシュトークングラントのステートレスなラッパー。
// レスポンスにアクセストークンまたはリフレッシュトークンが無い場合は
// AuthExchangeErrorを返す。ストアは更新しない。
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (model.TokenPair, error) {
	if refreshToken == "" {
		return model.TokenPair{}, model.NewValidationError("refresh_tokenは必須です。")
	}

	tokens, err := s.oauth.Refresh(ctx, refreshToken)
	if err != nil {
		slog.Error("token refresh failed", slog.String("error", err.Error()))
		return model.TokenPair{}, model.NewAuthExchangeError(err.Error())
	}
	if tokens.AccessToken == "" {
		return model.TokenPair{}, model.NewAuthExchangeError("レスポンスにアクセストークンがありません")
	}
	if tokens.RefreshToken == "" {
		return model.TokenPair{}, model.NewAuthExchangeError("レスポンスにリフレッシュトークンがありません")
	}

	slog.Info("refreshed access token (stateless)")
	return tokens, nil
}

// ValidateAccessToken はアクセストークンの有効性を確認する。
// ネットワーク障害も含め、確認できない場合は無効として扱う。
func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) bool {
	if accessToken == "" {
		return false
	}
	valid := s.oauth.ValidateToken(ctx, accessToken)
	if !valid {
		slog.Warn("access token validation failed")
	}
	return valid
}
