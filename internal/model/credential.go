// Package model はドメインモデルを定義する。
package model

import "time"

// UserCredential はMicrosoft Graph認証済みユーザーの資格情報を表す。
// user_idで一意。トークンは認可コード交換およびリフレッシュのたびに上書きされる。
type UserCredential struct {
	ID             string
	UserID         string
	Email          string
	DisplayName    string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session はブラウザとUserCredentialを紐付けるログインセッションを表す。
// ログイン時に発行され、ログアウトまたは期限切れ検出時に無効化される。
type Session struct {
	ID           string
	SessionToken string
	UserID       string
	ExpiresAt    time.Time
	IsActive     bool
	CreatedAt    time.Time
}

// APIKey はプログラムからのアクセス用の長命な資格情報を表す。
// 期限は持たず、明示的な失効のみで無効化される。
type APIKey struct {
	ID         string
	Key        string
	UserID     string
	Name       string
	LastUsedAt *time.Time
	IsActive   bool
	CreatedAt  time.Time
}

// TokenPair はIDプロバイダーが発行したトークンの組を表す。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // 秒
}

// UserInfo はセッション/APIキー検証時に返すユーザー情報の投影。
type UserInfo struct {
	UserID         string
	Email          string
	DisplayName    string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
}

// SessionStatus はセッション検証の結果種別を表す。
// 「見つからない」と「期限切れ」をエラーと区別するための明示的な結果型。
type SessionStatus int

const (
	// SessionFound は有効なセッションが見つかったことを示す。
	SessionFound SessionStatus = iota
	// SessionNotFound はセッションが存在しないか失効済みであることを示す。
	SessionNotFound
	// SessionExpired はセッションの有効期限が過ぎていたことを示す。
	// 検証の副作用としてセッションは無効化される。
	SessionExpired
)

// SessionValidation はセッション検証の結果を表す。
// StatusがSessionFoundの場合のみUserが設定される。
type SessionValidation struct {
	Status SessionStatus
	User   *UserInfo
}
