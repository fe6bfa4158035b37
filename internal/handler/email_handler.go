package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mailgate/internal/graph"
	"github.com/hitoshi/mailgate/internal/middleware"
	"github.com/hitoshi/mailgate/internal/model"
)

// EmailServiceInterface はメールハンドラーが必要とするサービスインターフェース。
type EmailServiceInterface interface {
	ListEmails(ctx context.Context, accessToken string, opts graph.ListOptions) ([]*model.EmailSummary, error)
	GetEmail(ctx context.Context, accessToken, messageID string) (*model.EmailSummary, error)
	SendEmail(ctx context.Context, accessToken string, req *model.SendEmailRequest) error
	CreateDraft(ctx context.Context, accessToken string, req *model.CreateDraftRequest) (*model.EmailSummary, error)
	UpdateEmail(ctx context.Context, accessToken, messageID string, req *model.UpdateEmailRequest) (*model.EmailSummary, error)
	DeleteEmail(ctx context.Context, accessToken, messageID string) error
	AddAttachment(ctx context.Context, accessToken, messageID string, req *model.AttachmentRequest) error
	SendDraft(ctx context.Context, accessToken, messageID string) error
	Prioritize(ctx context.Context, accessToken, messageID string, level model.ImportanceLevel) error
	MarkRead(ctx context.Context, accessToken, messageID string, isRead bool) error
	ListFolders(ctx context.Context, accessToken string) ([]*model.FolderInfo, error)
}

// EmailHandler はメール操作のHTTPハンドラー。
// アクセストークンは認証ミドルウェアが解決済みのものをコンテキストから取得する。
type EmailHandler struct {
	service EmailServiceInterface
}

// NewEmailHandler はEmailHandlerを生成する。
func NewEmailHandler(service EmailServiceInterface) *EmailHandler {
	return &EmailHandler{service: service}
}

// List はメール一覧を返す。
// GET /emails/list?folder=&limit=&offset=&search=&include_body=&unread_only=
func (h *EmailHandler) List(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	opts := graph.ListOptions{
		Folder:      query.Get("folder"),
		Search:      query.Get("search"),
		IncludeBody: query.Get("include_body") == "true",
		UnreadOnly:  query.Get("unread_only") == "true",
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 100 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("limitは1から100の整数で指定してください。"))
			return
		}
		opts.Limit = limit
	}
	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest,
				model.NewValidationError("offsetは0以上の整数で指定してください。"))
			return
		}
		opts.Offset = offset
	}

	emails, err := h.service.ListEmails(r.Context(), accessToken, opts)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	if emails == nil {
		emails = []*model.EmailSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"emails":    emails,
		"count":     len(emails),
		"timestamp": timestamp(),
	})
}

// Get はメールを本文付きで返す。
// GET /emails/{id}
func (h *EmailHandler) Get(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	email, err := h.service.GetEmail(r.Context(), accessToken, chi.URLParam(r, "id"))
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":     email,
		"timestamp": timestamp(),
	})
}

// Send はメールを送信する。
// POST /emails/send
func (h *EmailHandler) Send(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	var req model.SendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSONが不正です。"))
		return
	}

	if err := h.service.SendEmail(r.Context(), accessToken, &req); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "メールを送信しました。",
		"timestamp": timestamp(),
	})
}

// CreateDraft は下書きを作成する。
// POST /emails/drafts
func (h *EmailHandler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	var req model.CreateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSONが不正です。"))
		return
	}

	draft, err := h.service.CreateDraft(r.Context(), accessToken, &req)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"draft":     draft,
		"timestamp": timestamp(),
	})
}

// Update はメールを部分更新する。
// PATCH /emails/{id}
func (h *EmailHandler) Update(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	var req model.UpdateEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSONが不正です。"))
		return
	}

	email, err := h.service.UpdateEmail(r.Context(), accessToken, chi.URLParam(r, "id"), &req)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":     email,
		"timestamp": timestamp(),
	})
}

// Delete はメールを削除する。
// DELETE /emails/{id}
func (h *EmailHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteEmail(r.Context(), accessToken, chi.URLParam(r, "id")); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "メールを削除しました。",
		"timestamp": timestamp(),
	})
}

// Prioritize はメールの重要度を変更する。
// PATCH /emails/{id}/priority
func (h *EmailHandler) Prioritize(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	var req model.PrioritizeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSONが不正です。"))
		return
	}

	if err := h.service.Prioritize(r.Context(), accessToken, chi.URLParam(r, "id"), req.PriorityLevel); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "重要度を変更しました。",
		"timestamp": timestamp(),
	})
}

// markReadRequest は既読状態変更のリクエストボディ。
type markReadRequest struct {
	IsRead *bool `json:"is_read"`
}

// MarkRead はメールの既読状態を変更する。
// PATCH /emails/{id}/read
func (h *EmailHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSONが不正です。"))
		return
	}
	if req.IsRead == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("is_readは必須です。"))
		return
	}

	if err := h.service.MarkRead(r.Context(), accessToken, chi.URLParam(r, "id"), *req.IsRead); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "既読状態を変更しました。",
		"timestamp": timestamp(),
	})
}

// AddAttachment は下書きに添付ファイルを追加する。
// POST /emails/drafts/{id}/attachments
func (h *EmailHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	var req model.AttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("リクエストボディのJSONが不正です。"))
		return
	}

	if err := h.service.AddAttachment(r.Context(), accessToken, chi.URLParam(r, "id"), &req); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   "添付ファイルを追加しました。",
		"timestamp": timestamp(),
	})
}

// SendDraft は既存の下書きを送信する。
// POST /emails/drafts/{id}/send
func (h *EmailHandler) SendDraft(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.SendDraft(r.Context(), accessToken, chi.URLParam(r, "id")); err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "下書きを送信しました。",
		"timestamp": timestamp(),
	})
}

// ListFolders はメールフォルダの一覧を返す。
// GET /emails/folders/list
func (h *EmailHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := tokenFromRequest(w, r)
	if !ok {
		return
	}

	folders, err := h.service.ListFolders(r.Context(), accessToken)
	if err != nil {
		middleware.WriteAPIError(w, err)
		return
	}

	if folders == nil {
		folders = []*model.FolderInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"folders":   folders,
		"count":     len(folders),
		"timestamp": timestamp(),
	})
}

// tokenFromRequest はコンテキストからアクセストークンを取得する。
// 取得できない場合は401を書き込んでfalseを返す。
func tokenFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, err := middleware.AccessTokenFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return "", false
	}
	return token, true
}
