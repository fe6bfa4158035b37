package email

import (
	"context"
	"testing"

	"github.com/hitoshi/mailgate/internal/graph"
	"github.com/hitoshi/mailgate/internal/model"
)

// --- モック定義 ---

type mockGraphClient struct {
	listMessagesFn  func(ctx context.Context, accessToken string, opts graph.ListOptions) ([]*model.EmailSummary, error)
	getMessageFn    func(ctx context.Context, accessToken, messageID string) (*model.EmailSummary, error)
	sendMailFn      func(ctx context.Context, accessToken string, req *model.SendEmailRequest) error
	createDraftFn   func(ctx context.Context, accessToken string, req *model.CreateDraftRequest) (*model.EmailSummary, error)
	updateMessageFn func(ctx context.Context, accessToken, messageID string, req *model.UpdateEmailRequest) (*model.EmailSummary, error)
	deleteMessageFn func(ctx context.Context, accessToken, messageID string) error
	addAttachmentFn func(ctx context.Context, accessToken, messageID string, req *model.AttachmentRequest) error
	sendDraftFn     func(ctx context.Context, accessToken, messageID string) error
	setImportanceFn func(ctx context.Context, accessToken, messageID string, level model.ImportanceLevel) error
	markReadFn      func(ctx context.Context, accessToken, messageID string, isRead bool) error
	listFoldersFn   func(ctx context.Context, accessToken string) ([]*model.FolderInfo, error)
}

func (m *mockGraphClient) ListMessages(ctx context.Context, accessToken string, opts graph.ListOptions) ([]*model.EmailSummary, error) {
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, accessToken, opts)
	}
	return nil, nil
}

func (m *mockGraphClient) GetMessage(ctx context.Context, accessToken, messageID string) (*model.EmailSummary, error) {
	if m.getMessageFn != nil {
		return m.getMessageFn(ctx, accessToken, messageID)
	}
	return &model.EmailSummary{ID: messageID}, nil
}

func (m *mockGraphClient) SendMail(ctx context.Context, accessToken string, req *model.SendEmailRequest) error {
	if m.sendMailFn != nil {
		return m.sendMailFn(ctx, accessToken, req)
	}
	return nil
}

func (m *mockGraphClient) CreateDraft(ctx context.Context, accessToken string, req *model.CreateDraftRequest) (*model.EmailSummary, error) {
	if m.createDraftFn != nil {
		return m.createDraftFn(ctx, accessToken, req)
	}
	return &model.EmailSummary{ID: "draft-1", IsDraft: true}, nil
}

func (m *mockGraphClient) UpdateMessage(ctx context.Context, accessToken, messageID string, req *model.UpdateEmailRequest) (*model.EmailSummary, error) {
	if m.updateMessageFn != nil {
		return m.updateMessageFn(ctx, accessToken, messageID, req)
	}
	return &model.EmailSummary{ID: messageID}, nil
}

func (m *mockGraphClient) DeleteMessage(ctx context.Context, accessToken, messageID string) error {
	if m.deleteMessageFn != nil {
		return m.deleteMessageFn(ctx, accessToken, messageID)
	}
	return nil
}

func (m *mockGraphClient) AddAttachment(ctx context.Context, accessToken, messageID string, req *model.AttachmentRequest) error {
	if m.addAttachmentFn != nil {
		return m.addAttachmentFn(ctx, accessToken, messageID, req)
	}
	return nil
}

func (m *mockGraphClient) SendDraft(ctx context.Context, accessToken, messageID string) error {
	if m.sendDraftFn != nil {
		return m.sendDraftFn(ctx, accessToken, messageID)
	}
	return nil
}

func (m *mockGraphClient) SetImportance(ctx context.Context, accessToken, messageID string, level model.ImportanceLevel) error {
	if m.setImportanceFn != nil {
		return m.setImportanceFn(ctx, accessToken, messageID, level)
	}
	return nil
}

func (m *mockGraphClient) MarkRead(ctx context.Context, accessToken, messageID string, isRead bool) error {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, accessToken, messageID, isRead)
	}
	return nil
}

func (m *mockGraphClient) ListFolders(ctx context.Context, accessToken string) ([]*model.FolderInfo, error) {
	if m.listFoldersFn != nil {
		return m.listFoldersFn(ctx, accessToken)
	}
	return nil, nil
}

var _ GraphClient = (*mockGraphClient)(nil)

// passthroughSanitizer は呼び出しを記録するサニタイザー。
type passthroughSanitizer struct {
	calls []string
}

func (s *passthroughSanitizer) Sanitize(rawHTML string) string {
	s.calls = append(s.calls, rawHTML)
	return "sanitized:" + rawHTML
}

// --- テスト ---

func TestGetEmail_SanitizesHTMLBody(t *testing.T) {
	client := &mockGraphClient{
		getMessageFn: func(ctx context.Context, accessToken, messageID string) (*model.EmailSummary, error) {
			return &model.EmailSummary{
				ID: messageID,
				Body: &model.EmailBody{
					ContentType: "html",
					Content:     "<script>alert(1)</script><p>本文</p>",
				},
			}, nil
		},
	}
	sanitizer := &passthroughSanitizer{}
	svc := NewService(client, sanitizer)

	email, err := svc.GetEmail(context.Background(), "at", "msg-1")
	if err != nil {
		t.Fatalf("GetEmail() error = %v", err)
	}
	if len(sanitizer.calls) != 1 {
		t.Fatalf("sanitizer calls = %d, want 1", len(sanitizer.calls))
	}
	if email.Body.Content != "sanitized:<script>alert(1)</script><p>本文</p>" {
		t.Errorf("body = %q", email.Body.Content)
	}
}

func TestGetEmail_TextBodyNotSanitized(t *testing.T) {
	client := &mockGraphClient{
		getMessageFn: func(ctx context.Context, accessToken, messageID string) (*model.EmailSummary, error) {
			return &model.EmailSummary{
				ID:   messageID,
				Body: &model.EmailBody{ContentType: "text", Content: "plain"},
			}, nil
		},
	}
	sanitizer := &passthroughSanitizer{}
	svc := NewService(client, sanitizer)

	email, err := svc.GetEmail(context.Background(), "at", "msg-1")
	if err != nil {
		t.Fatalf("GetEmail() error = %v", err)
	}
	if len(sanitizer.calls) != 0 {
		t.Error("text body should not be sanitized")
	}
	if email.Body.Content != "plain" {
		t.Errorf("body = %q", email.Body.Content)
	}
}

func TestGetEmail_EmptyID_ValidationError(t *testing.T) {
	svc := NewService(&mockGraphClient{}, &passthroughSanitizer{})

	_, err := svc.GetEmail(context.Background(), "at", "")
	assertValidationError(t, err)
}

func TestSendEmail_AppliesDefaults(t *testing.T) {
	var sent *model.SendEmailRequest
	client := &mockGraphClient{
		sendMailFn: func(ctx context.Context, accessToken string, req *model.SendEmailRequest) error {
			sent = req
			return nil
		},
	}
	svc := NewService(client, &passthroughSanitizer{})

	req := &model.SendEmailRequest{
		To:      []string{"hanako@example.com"},
		Subject: "件名",
		Body:    "本文",
	}
	if err := svc.SendEmail(context.Background(), "at", req); err != nil {
		t.Fatalf("SendEmail() error = %v", err)
	}
	if sent.BodyType != model.BodyTypeText {
		t.Errorf("body type = %q, want text default", sent.BodyType)
	}
	if sent.Importance != model.ImportanceNormal {
		t.Errorf("importance = %q, want normal default", sent.Importance)
	}
}

func TestSendEmail_NoRecipients_ValidationError(t *testing.T) {
	called := false
	client := &mockGraphClient{
		sendMailFn: func(ctx context.Context, accessToken string, req *model.SendEmailRequest) error {
			called = true
			return nil
		},
	}
	svc := NewService(client, &passthroughSanitizer{})

	err := svc.SendEmail(context.Background(), "at", &model.SendEmailRequest{Subject: "s", Body: "b"})
	assertValidationError(t, err)
	if called {
		t.Error("invalid request must not reach the upstream")
	}
}

func TestUpdateEmail_RequiresAtLeastOneField(t *testing.T) {
	svc := NewService(&mockGraphClient{}, &passthroughSanitizer{})

	_, err := svc.UpdateEmail(context.Background(), "at", "msg-1", &model.UpdateEmailRequest{})
	assertValidationError(t, err)
}

func TestPrioritize_InvalidLevel_ValidationError(t *testing.T) {
	svc := NewService(&mockGraphClient{}, &passthroughSanitizer{})

	err := svc.Prioritize(context.Background(), "at", "msg-1", model.ImportanceLevel("urgent"))
	assertValidationError(t, err)
}

func TestPrioritize_ValidLevel_Delegates(t *testing.T) {
	var gotLevel model.ImportanceLevel
	client := &mockGraphClient{
		setImportanceFn: func(ctx context.Context, accessToken, messageID string, level model.ImportanceLevel) error {
			gotLevel = level
			return nil
		},
	}
	svc := NewService(client, &passthroughSanitizer{})

	if err := svc.Prioritize(context.Background(), "at", "msg-1", model.ImportanceHigh); err != nil {
		t.Fatalf("Prioritize() error = %v", err)
	}
	if gotLevel != model.ImportanceHigh {
		t.Errorf("level = %q", gotLevel)
	}
}

func TestListEmails_SanitizesEachHTMLBody(t *testing.T) {
	client := &mockGraphClient{
		listMessagesFn: func(ctx context.Context, accessToken string, opts graph.ListOptions) ([]*model.EmailSummary, error) {
			return []*model.EmailSummary{
				{ID: "1", Body: &model.EmailBody{ContentType: "HTML", Content: "<b>a</b>"}},
				{ID: "2"},
				{ID: "3", Body: &model.EmailBody{ContentType: "html", Content: "<i>b</i>"}},
			}, nil
		},
	}
	sanitizer := &passthroughSanitizer{}
	svc := NewService(client, sanitizer)

	emails, err := svc.ListEmails(context.Background(), "at", graph.ListOptions{})
	if err != nil {
		t.Fatalf("ListEmails() error = %v", err)
	}
	if len(emails) != 3 {
		t.Fatalf("len = %d", len(emails))
	}
	if len(sanitizer.calls) != 2 {
		t.Errorf("sanitizer calls = %d, want 2", len(sanitizer.calls))
	}
}

func TestAddAttachment_MissingContent_ValidationError(t *testing.T) {
	svc := NewService(&mockGraphClient{}, &passthroughSanitizer{})

	err := svc.AddAttachment(context.Background(), "at", "draft-1", &model.AttachmentRequest{FileName: "a.txt"})
	assertValidationError(t, err)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("error type = %T, want *model.APIError", err)
	}
	if apiErr.Code != model.ErrCodeValidation {
		t.Errorf("code = %q, want VALIDATION_ERROR", apiErr.Code)
	}
}
