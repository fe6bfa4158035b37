// Package credential は資格情報・セッション・APIキーの発行と検証を提供する。
// 永続化は全てrepositoryパッケージを通して行い、本パッケージが3エンティティの
// 唯一の書き込み経路となる。
package credential

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/mailgate/internal/model"
	"github.com/hitoshi/mailgate/internal/repository"
)

// apiKeyPrefix はAPIキーの接頭辞。Bearerトークンとの識別に使用する。
const apiKeyPrefix = "mk_"

// Identity はIDプロバイダーから取得したユーザー識別情報を表す。
type Identity struct {
	ProviderUserID    string // Graph APIのユーザーID
	UserPrincipalName string
	Email             string
	DisplayName       string
}

// UserID はIdentityから安定したユーザー識別子を導出する。
// Graph APIのIDを優先し、無い場合はuserPrincipalNameのローカル部を使用する。
func (i Identity) UserID() string {
	if i.ProviderUserID != "" {
		return i.ProviderUserID
	}
	if idx := strings.Index(i.UserPrincipalName, "@"); idx > 0 {
		return i.UserPrincipalName[:idx]
	}
	return i.UserPrincipalName
}

// Store は資格情報ストア。全コンポーネントから参照渡しで利用される。
type Store struct {
	credRepo    repository.CredentialRepository
	sessionRepo repository.SessionRepository
	apiKeyRepo  repository.APIKeyRepository
}

// NewStore はStoreを生成する。
func NewStore(
	credRepo repository.CredentialRepository,
	sessionRepo repository.SessionRepository,
	apiKeyRepo repository.APIKeyRepository,
) *Store {
	return &Store{
		credRepo:    credRepo,
		sessionRepo: sessionRepo,
		apiKeyRepo:  apiKeyRepo,
	}
}

// SaveUserCredential は認可コード交換後の資格情報をUPSERTし、user_idを返す。
// token_expires_atは現在時刻 + expires_inで計算する。同一identityでの再実行は冪等。
func (s *Store) SaveUserCredential(ctx context.Context, ident Identity, tokens model.TokenPair) (string, error) {
	userID := ident.UserID()
	if userID == "" {
		return "", fmt.Errorf("identity has no usable user ID")
	}

	email := ident.Email
	if email == "" {
		email = ident.UserPrincipalName
	}

	now := time.Now()
	cred := &model.UserCredential{
		ID:             uuid.New().String(),
		UserID:         userID,
		Email:          email,
		DisplayName:    ident.DisplayName,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: now.Add(time.Duration(tokens.ExpiresIn) * time.Second),
		CreatedAt:      now,
	}

	if err := s.credRepo.Upsert(ctx, cred); err != nil {
		return "", fmt.Errorf("failed to save credential: %w", err)
	}

	slog.Info("saved user credential",
		slog.String("user_id", userID),
		slog.String("email", email),
	)
	return userID, nil
}

// CreateSession は暗号的に安全なセッショントークンを発行して永続化する。
// user_idが資格情報を参照していない場合は外部キー制約によりエラーとなる。
func (s *Store) CreateSession(ctx context.Context, userID string, duration time.Duration) (string, error) {
	token, err := generateOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:           uuid.New().String(),
		SessionToken: token,
		UserID:       userID,
		ExpiresAt:    now.Add(duration),
		CreatedAt:    now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("created session", slog.String("user_id", userID))
	return token, nil
}

// ValidateSession はセッショントークンを検証し、資格情報の投影を返す。
// 期限切れの場合は副作用としてセッションを無効化する（遅延クリーンアップ）。
// 繰り返し呼んでも結果は変わらない（冪等）。
func (s *Store) ValidateSession(ctx context.Context, sessionToken string) (model.SessionValidation, error) {
	session, cred, err := s.sessionRepo.FindWithCredential(ctx, sessionToken)
	if err != nil {
		return model.SessionValidation{}, fmt.Errorf("failed to validate session: %w", err)
	}
	if session == nil {
		return model.SessionValidation{Status: model.SessionNotFound}, nil
	}

	if session.ExpiresAt.Before(time.Now()) {
		if err := s.sessionRepo.Deactivate(ctx, sessionToken); err != nil {
			return model.SessionValidation{}, fmt.Errorf("failed to invalidate expired session: %w", err)
		}
		slog.Info("invalidated expired session", slog.String("user_id", session.UserID))
		return model.SessionValidation{Status: model.SessionExpired}, nil
	}

	return model.SessionValidation{
		Status: model.SessionFound,
		User:   projectUserInfo(cred),
	}, nil
}

// GenerateAPIKey は接頭辞付きのAPIキーを発行して永続化する。
func (s *Store) GenerateAPIKey(ctx context.Context, userID, name string) (string, error) {
	token, err := generateOpaqueToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	apiKey := apiKeyPrefix + token

	key := &model.APIKey{
		ID:        uuid.New().String(),
		Key:       apiKey,
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	if err := s.apiKeyRepo.Create(ctx, key); err != nil {
		return "", fmt.Errorf("failed to create api key: %w", err)
	}

	slog.Info("generated api key",
		slog.String("user_id", userID),
		slog.String("name", name),
	)
	return apiKey, nil
}

// ValidateAPIKey はAPIキーを検証し、資格情報の投影を返す。見つからない・
// 失効済みの場合はnilを返す。APIキーに有効期限はない。
// 検証成功時は副作用としてlast_used_atを更新する。
func (s *Store) ValidateAPIKey(ctx context.Context, apiKey string) (*model.UserInfo, error) {
	key, cred, err := s.apiKeyRepo.FindWithCredential(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to validate api key: %w", err)
	}
	if key == nil {
		return nil, nil
	}

	if err := s.apiKeyRepo.TouchLastUsed(ctx, apiKey); err != nil {
		return nil, fmt.Errorf("failed to record api key usage: %w", err)
	}

	return projectUserInfo(cred), nil
}

// IsAPIKey は与えられたトークンがAPIキーの形式かどうかを返す。
func IsAPIKey(token string) bool {
	return strings.HasPrefix(token, apiKeyPrefix)
}

// UpdateTokens はトークンと有効期限を上書きする。リフレッシュパス専用。
// 同時リフレッシュの競合はロックせずlast-writer-winsとする。
func (s *Store) UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresIn int) error {
	expiresAt := time.Now().Add(time.Duration(expiresIn) * time.Second)
	if err := s.credRepo.UpdateTokens(ctx, userID, accessToken, refreshToken, expiresAt); err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}
	return nil
}

// GetCredential は指定ユーザーの有効な資格情報を返す。見つからない場合はnilを返す。
func (s *Store) GetCredential(ctx context.Context, userID string) (*model.UserCredential, error) {
	cred, err := s.credRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return cred, nil
}

// InvalidateSession はセッションを論理無効化する。ログアウト時に使用する。
func (s *Store) InvalidateSession(ctx context.Context, sessionToken string) error {
	if err := s.sessionRepo.Deactivate(ctx, sessionToken); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// RevokeAPIKey はAPIキーを論理無効化する。
func (s *Store) RevokeAPIKey(ctx context.Context, apiKey string) error {
	if err := s.apiKeyRepo.Deactivate(ctx, apiKey); err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	return nil
}

// ListAPIKeys は指定ユーザーのAPIキー一覧を作成日時の降順で返す。
func (s *Store) ListAPIKeys(ctx context.Context, userID string) ([]*model.APIKey, error) {
	keys, err := s.apiKeyRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// projectUserInfo は資格情報から呼び出し側に返す投影を作る。
func projectUserInfo(cred *model.UserCredential) *model.UserInfo {
	return &model.UserInfo{
		UserID:         cred.UserID,
		Email:          cred.Email,
		DisplayName:    cred.DisplayName,
		AccessToken:    cred.AccessToken,
		RefreshToken:   cred.RefreshToken,
		TokenExpiresAt: cred.TokenExpiresAt,
	}
}

// generateOpaqueToken は暗号的に安全な不透明トークンを生成する。
func generateOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
