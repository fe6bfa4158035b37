// Package email はGraph APIを介したメール操作のサービス層を提供する。
package email

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/mailgate/internal/graph"
	"github.com/hitoshi/mailgate/internal/model"
	"github.com/hitoshi/mailgate/internal/security"
)

// GraphClient はメール操作に必要なGraph APIクライアントのインターフェース。
type GraphClient interface {
	ListMessages(ctx context.Context, accessToken string, opts graph.ListOptions) ([]*model.EmailSummary, error)
	GetMessage(ctx context.Context, accessToken, messageID string) (*model.EmailSummary, error)
	SendMail(ctx context.Context, accessToken string, req *model.SendEmailRequest) error
	CreateDraft(ctx context.Context, accessToken string, req *model.CreateDraftRequest) (*model.EmailSummary, error)
	UpdateMessage(ctx context.Context, accessToken, messageID string, req *model.UpdateEmailRequest) (*model.EmailSummary, error)
	DeleteMessage(ctx context.Context, accessToken, messageID string) error
	AddAttachment(ctx context.Context, accessToken, messageID string, req *model.AttachmentRequest) error
	SendDraft(ctx context.Context, accessToken, messageID string) error
	SetImportance(ctx context.Context, accessToken, messageID string, level model.ImportanceLevel) error
	MarkRead(ctx context.Context, accessToken, messageID string, isRead bool) error
	ListFolders(ctx context.Context, accessToken string) ([]*model.FolderInfo, error)
}

// Service はメール操作のサービス層。リクエストの検証、Graph APIの呼び出し、
// レスポンスのHTML本文サニタイズを行う。
type Service struct {
	graph     GraphClient
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(graph GraphClient, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		graph:     graph,
		sanitizer: sanitizer,
	}
}

// ListEmails はメール一覧を取得する。HTML本文はサニタイズされる。
func (s *Service) ListEmails(ctx context.Context, accessToken string, opts graph.ListOptions) ([]*model.EmailSummary, error) {
	summaries, err := s.graph.ListMessages(ctx, accessToken, opts)
	if err != nil {
		return nil, err
	}
	for _, summary := range summaries {
		s.sanitizeBody(summary)
	}
	return summaries, nil
}

// GetEmail はメールを本文付きで取得する。HTML本文はサニタイズされる。
func (s *Service) GetEmail(ctx context.Context, accessToken, messageID string) (*model.EmailSummary, error) {
	if messageID == "" {
		return nil, model.NewValidationError("メッセージIDは必須です。")
	}
	summary, err := s.graph.GetMessage(ctx, accessToken, messageID)
	if err != nil {
		return nil, err
	}
	s.sanitizeBody(summary)
	return summary, nil
}

// SendEmail はメールを送信する。
func (s *Service) SendEmail(ctx context.Context, accessToken string, req *model.SendEmailRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if err := s.graph.SendMail(ctx, accessToken, req); err != nil {
		return err
	}
	slog.Info("sent email",
		slog.Int("recipients", len(req.To)+len(req.Cc)+len(req.Bcc)),
	)
	return nil
}

// CreateDraft は下書きを作成し、作成されたメッセージを返す。
func (s *Service) CreateDraft(ctx context.Context, accessToken string, req *model.CreateDraftRequest) (*model.EmailSummary, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	summary, err := s.graph.CreateDraft(ctx, accessToken, req)
	if err != nil {
		return nil, err
	}
	slog.Info("created draft", slog.String("message_id", summary.ID))
	return summary, nil
}

// UpdateEmail はメールを部分更新する。
func (s *Service) UpdateEmail(ctx context.Context, accessToken, messageID string, req *model.UpdateEmailRequest) (*model.EmailSummary, error) {
	if messageID == "" {
		return nil, model.NewValidationError("メッセージIDは必須です。")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	summary, err := s.graph.UpdateMessage(ctx, accessToken, messageID, req)
	if err != nil {
		return nil, err
	}
	s.sanitizeBody(summary)
	return summary, nil
}

// DeleteEmail はメールを削除する。
func (s *Service) DeleteEmail(ctx context.Context, accessToken, messageID string) error {
	if messageID == "" {
		return model.NewValidationError("メッセージIDは必須です。")
	}
	if err := s.graph.DeleteMessage(ctx, accessToken, messageID); err != nil {
		return err
	}
	slog.Info("deleted email", slog.String("message_id", messageID))
	return nil
}

// AddAttachment は下書きに添付ファイルを追加する。
func (s *Service) AddAttachment(ctx context.Context, accessToken, messageID string, req *model.AttachmentRequest) error {
	if messageID == "" {
		return model.NewValidationError("メッセージIDは必須です。")
	}
	if err := req.Validate(); err != nil {
		return err
	}
	return s.graph.AddAttachment(ctx, accessToken, messageID, req)
}

// SendDraft は既存の下書きを送信する。
func (s *Service) SendDraft(ctx context.Context, accessToken, messageID string) error {
	if messageID == "" {
		return model.NewValidationError("メッセージIDは必須です。")
	}
	if err := s.graph.SendDraft(ctx, accessToken, messageID); err != nil {
		return err
	}
	slog.Info("sent draft", slog.String("message_id", messageID))
	return nil
}

// Prioritize はメールの重要度を変更する。
func (s *Service) Prioritize(ctx context.Context, accessToken, messageID string, level model.ImportanceLevel) error {
	if messageID == "" {
		return model.NewValidationError("メッセージIDは必須です。")
	}
	if !level.Valid() {
		return model.NewValidationError("priority_levelにはlow、normal、highのいずれかを指定してください。")
	}
	return s.graph.SetImportance(ctx, accessToken, messageID, level)
}

// MarkRead はメールの既読状態を変更する。
func (s *Service) MarkRead(ctx context.Context, accessToken, messageID string, isRead bool) error {
	if messageID == "" {
		return model.NewValidationError("メッセージIDは必須です。")
	}
	return s.graph.MarkRead(ctx, accessToken, messageID, isRead)
}

// ListFolders はメールフォルダの一覧を取得する。
func (s *Service) ListFolders(ctx context.Context, accessToken string) ([]*model.FolderInfo, error) {
	return s.graph.ListFolders(ctx, accessToken)
}

// sanitizeBody はHTML本文をサニタイズする。テキスト本文は変更しない。
func (s *Service) sanitizeBody(summary *model.EmailSummary) {
	if summary == nil || summary.Body == nil {
		return
	}
	if strings.EqualFold(summary.Body.ContentType, "html") {
		summary.Body.Content = s.sanitizer.Sanitize(summary.Body.Content)
	}
}

// compile-time interface check
var _ GraphClient = (*graph.Client)(nil)
