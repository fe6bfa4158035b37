package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, storage, system
	Action   string // ユーザー向け対処方法

	// UpstreamStatus は上流APIが返したステータスコード。upstreamカテゴリのみ設定される。
	UpstreamStatus int
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeAuthRequired   = "AUTH_REQUIRED"
	ErrCodeAuthExchange   = "AUTH_EXCHANGE_FAILED"
	ErrCodeTokenInvalid   = "TOKEN_INVALID"
	ErrCodeUpstream       = "UPSTREAM_ERROR"
	ErrCodeStorage        = "STORAGE_ERROR"
	ErrCodeSessionExpired = "SESSION_EXPIRED"
	ErrCodeNotFound       = "NOT_FOUND"
)

// NewValidationError はリクエスト項目の欠落・不正エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "リクエスト内容を確認して再度お試しください。",
	}
}

// NewAuthRequiredError は認証が必要なことを示すエラーを生成する。
func NewAuthRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthRequired,
		Message:  "認証が必要です。セッションまたはアクセストークンが無効です。",
		Category: "auth",
		Action:   "OAuth認証フローからやり直してください。",
	}
}

// NewAuthExchangeError はIDプロバイダーが認可コードまたは
// リフレッシュトークンを拒否した場合のエラーを生成する。
func NewAuthExchangeError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeAuthExchange,
		Message:  fmt.Sprintf("トークンの取得に失敗しました: %s", reason),
		Category: "auth",
		Action:   "認可コードの有効期限を確認し、認証フローからやり直してください。",
	}
}

// NewTokenInvalidError はアクセストークンが無効または期限切れの場合のエラーを生成する。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "アクセストークンが無効または期限切れです。",
		Category: "auth",
		Action:   "トークンをリフレッシュするか、認証フローからやり直してください。",
	}
}

// NewUpstreamError はMicrosoft Graph APIが非2xxを返した場合のエラーを生成する。
// upstreamMessageにはGraph APIのエラーメッセージを埋め込む。
func NewUpstreamError(statusCode int, upstreamMessage string) *APIError {
	return &APIError{
		Code:           ErrCodeUpstream,
		Message:        fmt.Sprintf("Microsoft Graph APIがエラーを返しました（status %d）: %s", statusCode, upstreamMessage),
		Category:       "upstream",
		Action:         "しばらく待ってから再度お試しください。",
		UpstreamStatus: statusCode,
	}
}

// NewStorageError は永続化層の失敗エラーを生成する。
func NewStorageError() *APIError {
	return &APIError{
		Code:     ErrCodeStorage,
		Message:  "データストアへのアクセスに失敗しました。",
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSessionExpiredError はセッション期限切れエラーを生成する。
func NewSessionExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionExpired,
		Message:  "セッションの有効期限が切れています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewNotFoundError は対象リソースが見つからない場合のエラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません。", resource),
		Category: "validation",
		Action:   "IDを確認してください。",
	}
}
