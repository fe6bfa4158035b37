// Package graph はMicrosoft Graph APIのメール操作クライアントを提供する。
// 上流呼び出しは1リクエスト1回で、リトライは行わない。
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/mailgate/internal/model"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// Recorder はGraph API呼び出しの計測インターフェース。
type Recorder interface {
	RecordGraphRequest(operation, status string, duration time.Duration)
}

// noopRecorder は計測を行わないRecorder。
type noopRecorder struct{}

func (noopRecorder) RecordGraphRequest(string, string, time.Duration) {}

// ClientConfig はGraphクライアントの設定。
type ClientConfig struct {
	// BaseURL はテスト用のオーバーライド。未指定の場合は本番エンドポイント。
	BaseURL string
	// Timeout は外部呼び出しのタイムアウト。未指定の場合は30秒。
	Timeout time.Duration
	// Recorder はメトリクス記録先。未指定の場合は記録しない。
	Recorder Recorder
}

// Client はMicrosoft Graph APIのメール操作クライアント。
// アクセストークンは保持せず、呼び出し毎に受け取る。
type Client struct {
	baseURL    string
	httpClient *http.Client
	recorder   Recorder
}

// NewClient はClientを生成する。
func NewClient(config ClientConfig) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	recorder := config.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		recorder:   recorder,
	}
}

// ListOptions はメッセージ一覧取得のオプション。
type ListOptions struct {
	Folder      string // 空の場合は全メッセージ
	Limit       int
	Offset      int
	Search      string
	IncludeBody bool
	UnreadOnly  bool
}

// ListMessages はメッセージ一覧を取得する。
func (c *Client) ListMessages(ctx context.Context, accessToken string, opts ListOptions) ([]*model.EmailSummary, error) {
	path := "/me/messages"
	if opts.Folder != "" {
		path = "/me/mailFolders/" + url.PathEscape(opts.Folder) + "/messages"
	}

	query := url.Values{}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	query.Set("$top", strconv.Itoa(limit))
	if opts.Offset > 0 {
		query.Set("$skip", strconv.Itoa(opts.Offset))
	}

	fields := "id,subject,from,toRecipients,ccRecipients,receivedDateTime,bodyPreview,isRead,isDraft,hasAttachments,importance,conversationId,webLink"
	if opts.IncludeBody {
		fields += ",body"
	}
	query.Set("$select", fields)

	// $searchと$orderby/$filterは併用不可（Graph APIの制約）。
	if opts.Search != "" {
		query.Set("$search", `"`+opts.Search+`"`)
	} else {
		query.Set("$orderby", "receivedDateTime desc")
		if opts.UnreadOnly {
			query.Set("$filter", "isRead eq false")
		}
	}

	var list messageList
	if err := c.do(ctx, "list_messages", http.MethodGet, path+"?"+query.Encode(), accessToken, nil, &list); err != nil {
		return nil, err
	}

	summaries := make([]*model.EmailSummary, 0, len(list.Value))
	for i := range list.Value {
		summaries = append(summaries, list.Value[i].toSummary())
	}
	return summaries, nil
}

// GetMessage はメッセージを本文付きで取得する。
func (c *Client) GetMessage(ctx context.Context, accessToken, messageID string) (*model.EmailSummary, error) {
	var msg message
	path := "/me/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, "get_message", http.MethodGet, path, accessToken, nil, &msg); err != nil {
		return nil, err
	}
	return msg.toSummary(), nil
}

// SendMail はメールを送信する。送信済みアイテムに保存される。
func (c *Client) SendMail(ctx context.Context, accessToken string, req *model.SendEmailRequest) error {
	body := sendMailRequest{
		Message:         buildMessage(req),
		SaveToSentItems: true,
	}
	return c.do(ctx, "send_mail", http.MethodPost, "/me/sendMail", accessToken, body, nil)
}

// CreateDraft は下書きを作成し、作成されたメッセージを返す。
func (c *Client) CreateDraft(ctx context.Context, accessToken string, req *model.CreateDraftRequest) (*model.EmailSummary, error) {
	var created message
	if err := c.do(ctx, "create_draft", http.MethodPost, "/me/messages", accessToken, buildMessage(req), &created); err != nil {
		return nil, err
	}
	return created.toSummary(), nil
}

// UpdateMessage はメッセージを部分更新する。nilのフィールドは変更しない。
func (c *Client) UpdateMessage(ctx context.Context, accessToken, messageID string, req *model.UpdateEmailRequest) (*model.EmailSummary, error) {
	patch := message{}
	if req.Subject != nil {
		patch.Subject = *req.Subject
	}
	if req.BodyContent != nil {
		patch.Body = &itemBody{
			ContentType: graphContentType(req.BodyType),
			Content:     *req.BodyContent,
		}
	}
	if req.Importance != nil {
		patch.Importance = string(*req.Importance)
	}

	var updated message
	path := "/me/messages/" + url.PathEscape(messageID)
	if err := c.do(ctx, "update_message", http.MethodPatch, path, accessToken, patch, &updated); err != nil {
		return nil, err
	}
	return updated.toSummary(), nil
}

// DeleteMessage はメッセージを削除する（削除済みアイテムへ移動）。
func (c *Client) DeleteMessage(ctx context.Context, accessToken, messageID string) error {
	path := "/me/messages/" + url.PathEscape(messageID)
	return c.do(ctx, "delete_message", http.MethodDelete, path, accessToken, nil, nil)
}

// AddAttachment は下書きにファイル添付を追加する。
func (c *Client) AddAttachment(ctx context.Context, accessToken, messageID string, req *model.AttachmentRequest) error {
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	attachment := fileAttachment{
		ODataType:    "#microsoft.graph.fileAttachment",
		Name:         req.FileName,
		ContentType:  contentType,
		ContentBytes: req.FileContent,
	}
	path := "/me/messages/" + url.PathEscape(messageID) + "/attachments"
	return c.do(ctx, "add_attachment", http.MethodPost, path, accessToken, attachment, nil)
}

// SendDraft は既存の下書きを送信する。
func (c *Client) SendDraft(ctx context.Context, accessToken, messageID string) error {
	path := "/me/messages/" + url.PathEscape(messageID) + "/send"
	return c.do(ctx, "send_draft", http.MethodPost, path, accessToken, nil, nil)
}

// SetImportance はメッセージの重要度を変更する。
func (c *Client) SetImportance(ctx context.Context, accessToken, messageID string, level model.ImportanceLevel) error {
	patch := message{Importance: string(level)}
	path := "/me/messages/" + url.PathEscape(messageID)
	return c.do(ctx, "set_importance", http.MethodPatch, path, accessToken, patch, nil)
}

// MarkRead はメッセージの既読状態を変更する。
func (c *Client) MarkRead(ctx context.Context, accessToken, messageID string, isRead bool) error {
	patch := message{IsRead: &isRead}
	path := "/me/messages/" + url.PathEscape(messageID)
	return c.do(ctx, "mark_read", http.MethodPatch, path, accessToken, patch, nil)
}

// ListFolders はメールフォルダの一覧を取得する。
func (c *Client) ListFolders(ctx context.Context, accessToken string) ([]*model.FolderInfo, error) {
	var list mailFolderList
	if err := c.do(ctx, "list_folders", http.MethodGet, "/me/mailFolders?$top=50", accessToken, nil, &list); err != nil {
		return nil, err
	}

	folders := make([]*model.FolderInfo, 0, len(list.Value))
	for _, f := range list.Value {
		folders = append(folders, &model.FolderInfo{
			ID:               f.ID,
			DisplayName:      f.DisplayName,
			TotalItemCount:   f.TotalItemCount,
			UnreadItemCount:  f.UnreadItemCount,
			ChildFolderCount: f.ChildFolderCount,
		})
	}
	return folders, nil
}

// buildMessage は送信・下書きリクエストからGraphのmessageを構築する。
func buildMessage(req *model.SendEmailRequest) message {
	return message{
		Subject: req.Subject,
		Body: &itemBody{
			ContentType: graphContentType(req.BodyType),
			Content:     req.Body,
		},
		ToRecipients:  toRecipients(req.To),
		CcRecipients:  toRecipients(req.Cc),
		BccRecipients: toRecipients(req.Bcc),
		Importance:    string(req.Importance),
	}
}

// do はGraph APIへのリクエストを実行し、レスポンスをoutにデコードする。
// outがnilの場合はボディを読み捨てる。非2xxはUpstreamErrorに変換する。
func (c *Client) do(ctx context.Context, operation, method, path, accessToken string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recorder.RecordGraphRequest(operation, "error", time.Since(start))
		slog.Error("graph request failed",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		return model.NewUpstreamError(http.StatusBadGateway, "Graph APIへの接続に失敗しました")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recorder.RecordGraphRequest(operation, "error", time.Since(start))
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.recorder.RecordGraphRequest(operation, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("graph request returned error",
			slog.String("operation", operation),
			slog.Int("status", resp.StatusCode),
		)
		return upstreamError(resp.StatusCode, body)
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// upstreamError は上流のエラーレスポンスをAPIErrorに変換する。
func upstreamError(status int, body []byte) *model.APIError {
	var ge graphError
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error.Message != "" {
		return model.NewUpstreamError(status, ge.Error.Message)
	}
	return model.NewUpstreamError(status, string(body))
}
