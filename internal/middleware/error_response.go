package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/mailgate/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// WriteAPIError はAPIErrorをカテゴリに応じたステータスコードで書き込む。
// ハンドラーのエラーパスで使用する。APIError以外のエラーは500として扱う。
func WriteAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*model.APIError)
	if !ok {
		WriteInternalServerError(w)
		return
	}
	WriteErrorResponse(w, statusForError(apiErr), apiErr)
}

// statusForError はAPIErrorのコード・カテゴリからHTTPステータスコードを決定する。
func statusForError(apiErr *model.APIError) int {
	switch apiErr.Code {
	case "VALIDATION_ERROR":
		return http.StatusBadRequest
	case "AUTH_REQUIRED", "TOKEN_INVALID", "SESSION_EXPIRED":
		return http.StatusUnauthorized
	case "NOT_FOUND":
		return http.StatusNotFound
	}
	switch apiErr.Category {
	case "validation":
		return http.StatusBadRequest
	case "auth":
		return http.StatusUnauthorized
	case "upstream":
		// 上流のステータスをそのまま伝播する。接続失敗などは502。
		if apiErr.UpstreamStatus >= 400 {
			return apiErr.UpstreamStatus
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
