package graph

import "github.com/hitoshi/mailgate/internal/model"

// emailAddress はGraph APIのemailAddressオブジェクト。
type emailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// recipient はGraph APIのrecipientオブジェクト。
type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

// itemBody はGraph APIのitemBodyオブジェクト。
type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// message はGraph APIのmessageリソース。
type message struct {
	ID               string      `json:"id,omitempty"`
	Subject          string      `json:"subject,omitempty"`
	From             *recipient  `json:"from,omitempty"`
	ToRecipients     []recipient `json:"toRecipients,omitempty"`
	CcRecipients     []recipient `json:"ccRecipients,omitempty"`
	BccRecipients    []recipient `json:"bccRecipients,omitempty"`
	ReceivedDateTime string      `json:"receivedDateTime,omitempty"`
	SentDateTime     string      `json:"sentDateTime,omitempty"`
	BodyPreview      string      `json:"bodyPreview,omitempty"`
	Body             *itemBody   `json:"body,omitempty"`
	IsRead           *bool       `json:"isRead,omitempty"`
	IsDraft          *bool       `json:"isDraft,omitempty"`
	HasAttachments   *bool       `json:"hasAttachments,omitempty"`
	Importance       string      `json:"importance,omitempty"`
	ConversationID   string      `json:"conversationId,omitempty"`
	WebLink          string      `json:"webLink,omitempty"`
}

// messageList はメッセージ一覧レスポンス。
type messageList struct {
	Value []message `json:"value"`
}

// mailFolder はGraph APIのmailFolderリソース。
type mailFolder struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	TotalItemCount   int    `json:"totalItemCount"`
	UnreadItemCount  int    `json:"unreadItemCount"`
	ChildFolderCount int    `json:"childFolderCount"`
}

// mailFolderList はフォルダ一覧レスポンス。
type mailFolderList struct {
	Value []mailFolder `json:"value"`
}

// sendMailRequest はsendMailアクションのリクエストボディ。
type sendMailRequest struct {
	Message         message `json:"message"`
	SaveToSentItems bool    `json:"saveToSentItems"`
}

// fileAttachment は添付ファイル追加のリクエストボディ。
type fileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType,omitempty"`
	ContentBytes string `json:"contentBytes"`
}

// graphError はGraph APIのエラーレスポンス。
type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// toSummary はGraphのmessageをAPIレスポンス表現に変換する。
func (m *message) toSummary() *model.EmailSummary {
	s := &model.EmailSummary{
		ID:               m.ID,
		Subject:          m.Subject,
		ToRecipients:     toAddresses(m.ToRecipients),
		CcRecipients:     toAddresses(m.CcRecipients),
		ReceivedDateTime: m.ReceivedDateTime,
		SentDateTime:     m.SentDateTime,
		BodyPreview:      m.BodyPreview,
		Importance:       m.Importance,
		ConversationID:   m.ConversationID,
		WebLink:          m.WebLink,
	}
	if m.From != nil {
		s.From = &model.EmailAddress{
			Name:    m.From.EmailAddress.Name,
			Address: m.From.EmailAddress.Address,
		}
	}
	if m.Body != nil {
		s.Body = &model.EmailBody{
			ContentType: m.Body.ContentType,
			Content:     m.Body.Content,
		}
	}
	if m.IsRead != nil {
		s.IsRead = *m.IsRead
	}
	if m.IsDraft != nil {
		s.IsDraft = *m.IsDraft
	}
	if m.HasAttachments != nil {
		s.HasAttachments = *m.HasAttachments
	}
	return s
}

func toAddresses(rs []recipient) []model.EmailAddress {
	if len(rs) == 0 {
		return nil
	}
	addrs := make([]model.EmailAddress, 0, len(rs))
	for _, r := range rs {
		addrs = append(addrs, model.EmailAddress{
			Name:    r.EmailAddress.Name,
			Address: r.EmailAddress.Address,
		})
	}
	return addrs
}

func toRecipients(addrs []string) []recipient {
	if len(addrs) == 0 {
		return nil
	}
	rs := make([]recipient, 0, len(addrs))
	for _, a := range addrs {
		rs = append(rs, recipient{EmailAddress: emailAddress{Address: a}})
	}
	return rs
}

// graphContentType はAPIの本文タイプをGraph APIの表現に変換する。
func graphContentType(t model.BodyType) string {
	if t == model.BodyTypeHTML {
		return "HTML"
	}
	return "Text"
}
