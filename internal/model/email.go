package model

// ImportanceLevel はメールの重要度を表す。
type ImportanceLevel string

const (
	ImportanceLow    ImportanceLevel = "low"
	ImportanceNormal ImportanceLevel = "normal"
	ImportanceHigh   ImportanceLevel = "high"
)

// Valid は重要度が定義済みの値かどうかを返す。
func (l ImportanceLevel) Valid() bool {
	switch l {
	case ImportanceLow, ImportanceNormal, ImportanceHigh:
		return true
	}
	return false
}

// BodyType はメール本文のコンテンツタイプを表す。
type BodyType string

const (
	BodyTypeText BodyType = "text"
	BodyTypeHTML BodyType = "html"
)

// Valid は本文タイプが定義済みの値かどうかを返す。
func (t BodyType) Valid() bool {
	return t == BodyTypeText || t == BodyTypeHTML
}

// EmailAddress はメールアドレスと表示名の組を表す。
type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// EmailBody はメール本文を表す。
type EmailBody struct {
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// EmailSummary はメール一覧・詳細のレスポンスに使用するメール表現。
// 本文はinclude_body指定時のみ設定される。
type EmailSummary struct {
	ID               string         `json:"id"`
	Subject          string         `json:"subject"`
	From             *EmailAddress  `json:"from,omitempty"`
	ToRecipients     []EmailAddress `json:"to_recipients"`
	CcRecipients     []EmailAddress `json:"cc_recipients,omitempty"`
	ReceivedDateTime string         `json:"received_datetime,omitempty"`
	SentDateTime     string         `json:"sent_datetime,omitempty"`
	BodyPreview      string         `json:"body_preview,omitempty"`
	Body             *EmailBody     `json:"body,omitempty"`
	IsRead           bool           `json:"is_read"`
	IsDraft          bool           `json:"is_draft"`
	HasAttachments   bool           `json:"has_attachments"`
	Importance       string         `json:"importance"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	WebLink          string         `json:"web_link,omitempty"`
}

// FolderInfo はメールフォルダの情報を表す。
type FolderInfo struct {
	ID               string `json:"id"`
	DisplayName      string `json:"display_name"`
	TotalItemCount   int    `json:"total_item_count"`
	UnreadItemCount  int    `json:"unread_item_count"`
	ChildFolderCount int    `json:"child_folder_count"`
}

// SendEmailRequest はメール送信リクエストを表す。
type SendEmailRequest struct {
	To         []string        `json:"to"`
	Cc         []string        `json:"cc,omitempty"`
	Bcc        []string        `json:"bcc,omitempty"`
	Subject    string          `json:"subject"`
	Body       string          `json:"body"`
	BodyType   BodyType        `json:"body_type,omitempty"`
	Importance ImportanceLevel `json:"importance,omitempty"`
}

// Validate は送信リクエストの必須項目と列挙値を検証する。
func (r *SendEmailRequest) Validate() *APIError {
	if len(r.To) == 0 {
		return NewValidationError("宛先（to）は1件以上指定してください。")
	}
	if r.Subject == "" {
		return NewValidationError("件名（subject）は必須です。")
	}
	if r.BodyType == "" {
		r.BodyType = BodyTypeText
	}
	if !r.BodyType.Valid() {
		return NewValidationError("body_typeにはtextまたはhtmlを指定してください。")
	}
	if r.Importance == "" {
		r.Importance = ImportanceNormal
	}
	if !r.Importance.Valid() {
		return NewValidationError("importanceにはlow、normal、highのいずれかを指定してください。")
	}
	return nil
}

// CreateDraftRequest は下書き作成リクエストを表す。送信リクエストと同形。
type CreateDraftRequest = SendEmailRequest

// UpdateEmailRequest はメール更新リクエストを表す。
// nilのフィールドは変更しない部分更新。
type UpdateEmailRequest struct {
	Subject     *string          `json:"subject,omitempty"`
	BodyContent *string          `json:"body_content,omitempty"`
	BodyType    BodyType         `json:"body_type,omitempty"`
	Importance  *ImportanceLevel `json:"importance,omitempty"`
}

// Validate は更新リクエストを検証する。少なくとも1項目の指定が必要。
func (r *UpdateEmailRequest) Validate() *APIError {
	if r.Subject == nil && r.BodyContent == nil && r.Importance == nil {
		return NewValidationError("subject、body_content、importanceのいずれかを指定してください。")
	}
	if r.BodyType == "" {
		r.BodyType = BodyTypeText
	}
	if !r.BodyType.Valid() {
		return NewValidationError("body_typeにはtextまたはhtmlを指定してください。")
	}
	if r.Importance != nil && !r.Importance.Valid() {
		return NewValidationError("importanceにはlow、normal、highのいずれかを指定してください。")
	}
	return nil
}

// AttachmentRequest は下書きへの添付ファイル追加リクエストを表す。
// FileContentはBase64エンコードされたファイル内容。
type AttachmentRequest struct {
	FileName    string `json:"file_name"`
	FileContent string `json:"file_content"`
	ContentType string `json:"content_type,omitempty"`
}

// Validate は添付リクエストの必須項目を検証する。
func (r *AttachmentRequest) Validate() *APIError {
	if r.FileName == "" {
		return NewValidationError("添付ファイル名（file_name）は必須です。")
	}
	if r.FileContent == "" {
		return NewValidationError("添付ファイル内容（file_content）は必須です。")
	}
	return nil
}

// PrioritizeEmailRequest はメールの重要度変更リクエストを表す。
type PrioritizeEmailRequest struct {
	PriorityLevel ImportanceLevel `json:"priority_level"`
}
