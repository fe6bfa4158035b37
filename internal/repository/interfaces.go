// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/mailgate/internal/model"
)

// CredentialRepository はユーザー資格情報の永続化インターフェース。
type CredentialRepository interface {
	// FindByUserID は指定user_idの有効な資格情報を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserCredential, error)

	// Upsert は資格情報をuser_idをキーにUPSERTする。
	// 既存レコードがある場合はemail/display_name/トークン/有効期限を上書きする。
	// 同一内容での再実行は冪等。
	Upsert(ctx context.Context, cred *model.UserCredential) error

	// UpdateTokens はトークンと有効期限を上書きする。リフレッシュパス専用。
	// refreshTokenが空の場合は既存のリフレッシュトークンを維持する。
	// 同時実行時はlast-writer-wins（後から書いた値が残る）。
	UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiresAt time.Time) error

	// Deactivate は資格情報を論理無効化する（is_active = false）。物理削除はしない。
	Deactivate(ctx context.Context, userID string) error
}

// SessionRepository はログインセッションの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。user_idが資格情報を参照していない場合は
	// 外部キー制約違反のエラーを返す。
	Create(ctx context.Context, session *model.Session) error

	// FindWithCredential はセッションを資格情報とJOINして取得する。
	// セッションまたは資格情報が無効（is_active = false）・不存在の場合はnil, nilを返す。
	// 有効期限の判定は呼び出し側で行う。
	FindWithCredential(ctx context.Context, sessionToken string) (*model.Session, *model.UserCredential, error)

	// Deactivate はセッションを論理無効化する（is_active = false）。物理削除はしない。
	Deactivate(ctx context.Context, sessionToken string) error

	// DeactivateByUserID は指定ユーザーの全セッションを論理無効化する。
	DeactivateByUserID(ctx context.Context, userID string) error
}

// APIKeyRepository はAPIキーの永続化インターフェース。
type APIKeyRepository interface {
	// Create はAPIキーを作成する。
	Create(ctx context.Context, key *model.APIKey) error

	// FindWithCredential はAPIキーを資格情報とJOINして取得する。
	// キーまたは資格情報が無効・不存在の場合はnil, nilを返す。
	FindWithCredential(ctx context.Context, apiKey string) (*model.APIKey, *model.UserCredential, error)

	// TouchLastUsed はlast_used_atを現在時刻に更新する。検証成功時の副作用として呼ばれる。
	TouchLastUsed(ctx context.Context, apiKey string) error

	// Deactivate はAPIキーを論理無効化する（is_active = false）。物理削除はしない。
	Deactivate(ctx context.Context, apiKey string) error

	// ListByUserID は指定ユーザーのAPIキー一覧を作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
}
