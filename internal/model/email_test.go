package model

import "testing"

func TestSendEmailRequestValidate(t *testing.T) {
	tests := []struct {
		name     string
		req      SendEmailRequest
		wantErr  bool
		wantCode string
	}{
		{
			name: "有効なリクエスト",
			req: SendEmailRequest{
				To:      []string{"hanako@example.com"},
				Subject: "件名",
				Body:    "本文",
			},
		},
		{
			name:     "宛先なしはエラー",
			req:      SendEmailRequest{Subject: "s", Body: "b"},
			wantErr:  true,
			wantCode: ErrCodeValidation,
		},
		{
			name:     "件名なしはエラー",
			req:      SendEmailRequest{To: []string{"a@example.com"}, Body: "b"},
			wantErr:  true,
			wantCode: ErrCodeValidation,
		},
		{
			name: "不正なbody_typeはエラー",
			req: SendEmailRequest{
				To: []string{"a@example.com"}, Subject: "s", Body: "b",
				BodyType: BodyType("markdown"),
			},
			wantErr:  true,
			wantCode: ErrCodeValidation,
		},
		{
			name: "不正なimportanceはエラー",
			req: SendEmailRequest{
				To: []string{"a@example.com"}, Subject: "s", Body: "b",
				Importance: ImportanceLevel("urgent"),
			},
			wantErr:  true,
			wantCode: ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if err.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", err.Code, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}

func TestSendEmailRequestValidate_AppliesDefaults(t *testing.T) {
	req := SendEmailRequest{
		To:      []string{"a@example.com"},
		Subject: "s",
		Body:    "b",
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if req.BodyType != BodyTypeText {
		t.Errorf("BodyType = %q, want text", req.BodyType)
	}
	if req.Importance != ImportanceNormal {
		t.Errorf("Importance = %q, want normal", req.Importance)
	}
}

func TestUpdateEmailRequestValidate(t *testing.T) {
	subject := "新しい件名"
	invalid := ImportanceLevel("urgent")

	tests := []struct {
		name    string
		req     UpdateEmailRequest
		wantErr bool
	}{
		{"件名のみの更新は有効", UpdateEmailRequest{Subject: &subject}, false},
		{"全項目nilはエラー", UpdateEmailRequest{}, true},
		{"不正なimportanceはエラー", UpdateEmailRequest{Importance: &invalid}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAttachmentRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     AttachmentRequest
		wantErr bool
	}{
		{"有効なリクエスト", AttachmentRequest{FileName: "a.pdf", FileContent: "QUJD"}, false},
		{"ファイル名なしはエラー", AttachmentRequest{FileContent: "QUJD"}, true},
		{"内容なしはエラー", AttachmentRequest{FileName: "a.pdf"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestImportanceLevelValid(t *testing.T) {
	for _, level := range []ImportanceLevel{ImportanceLow, ImportanceNormal, ImportanceHigh} {
		if !level.Valid() {
			t.Errorf("%q should be valid", level)
		}
	}
	for _, level := range []ImportanceLevel{"", "urgent", "LOW"} {
		if level.Valid() {
			t.Errorf("%q should be invalid", level)
		}
	}
}

func TestBodyTypeValid(t *testing.T) {
	if !BodyTypeText.Valid() || !BodyTypeHTML.Valid() {
		t.Error("text and html should be valid")
	}
	if BodyType("markdown").Valid() || BodyType("").Valid() {
		t.Error("unknown body types should be invalid")
	}
}
