// internal/api/handlers/requests.go
// 請求格式與草稿組裝

package handlers

import (
	"encoding/base64"
	"fmt"
	"strings"

	"mail-merge/internal/config"
	"mail-merge/internal/models"
	"mail-merge/internal/recipients"
	"mail-merge/internal/services"
)

// AttachmentRequest 附件請求 (內容為 base64)
type AttachmentRequest struct {
	Filename    string `json:"filename" binding:"required"`
	Content     string `json:"content" binding:"required"`
	ContentType string `json:"content_type"`
}

// DraftRequest 發送草稿
// smtp 未填寫主機時使用已儲存的設定，密碼一律由請求提供
type DraftRequest struct {
	SMTP        models.SMTPConfig   `json:"smtp"`
	Template    string              `json:"template,omitempty"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	Attachments []AttachmentRequest `json:"attachments,omitempty"`
}

// RecipientsRequest 收件人資料 (CSV 內容)
type RecipientsRequest struct {
	CSV         string `json:"csv" binding:"required"`
	Delimiter   string `json:"delimiter,omitempty"`
	EmailColumn string `json:"email_column,omitempty"`
	NameColumn  string `json:"name_column,omitempty"`
}

// draftResolver 將請求轉為發送草稿
type draftResolver struct {
	cfg       *config.Config
	templates *services.TemplateStore
	configs   *services.ConfigStore
}

func (r *draftResolver) resolve(req *DraftRequest) (*models.Draft, error) {
	draft := &models.Draft{
		Config:  req.SMTP,
		Subject: req.Subject,
		Body:    req.Body,
	}

	if strings.TrimSpace(draft.Config.Server) == "" && r.configs != nil {
		saved, err := r.configs.Load()
		if err != nil {
			return nil, err
		}
		password := draft.Config.Password
		draft.Config = saved.SMTP
		draft.Config.Password = password
		if draft.Subject == "" && req.Template == "" {
			draft.Subject = saved.Subject
		}
	}

	if req.Template != "" {
		tmpl, err := r.lookupTemplate(req.Template)
		if err != nil {
			return nil, err
		}
		if draft.Subject == "" {
			draft.Subject = tmpl.Subject
		}
		if draft.Body == "" {
			draft.Body = tmpl.Body
		}
	}

	atts, err := r.decodeAttachments(req.Attachments)
	if err != nil {
		return nil, err
	}
	draft.Attachments = atts

	return draft, nil
}

// lookupTemplate 先找已儲存的範本，再找內建範本
func (r *draftResolver) lookupTemplate(name string) (models.Template, error) {
	if r.templates != nil {
		if t, ok := r.templates.Get(name); ok {
			return t, nil
		}
	}
	if t, ok := services.Builtins()[name]; ok {
		return t, nil
	}
	return models.Template{}, models.NewValidationError("template", fmt.Sprintf("template %q not found", name))
}

func (r *draftResolver) decodeAttachments(reqs []AttachmentRequest) ([]models.Attachment, error) {
	maxBytes := r.cfg.MaxAttachmentSizeMB * 1024 * 1024

	atts := make([]models.Attachment, 0, len(reqs))
	for _, a := range reqs {
		content, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return nil, models.NewValidationError("attachments",
				fmt.Sprintf("invalid base64 content for %s", a.Filename))
		}
		if maxBytes > 0 && len(content) > maxBytes {
			return nil, models.NewValidationError("attachments",
				fmt.Sprintf("%s exceeds maximum size of %dMB", a.Filename, r.cfg.MaxAttachmentSizeMB))
		}
		atts = append(atts, models.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     content,
		})
	}
	return atts, nil
}

// loadTable 解析請求中的 CSV
func loadTable(req *RecipientsRequest) (*models.Table, error) {
	delimiter, err := recipients.ParseDelimiter(req.Delimiter)
	if err != nil {
		return nil, err
	}
	return recipients.Load(strings.NewReader(req.CSV), recipients.Options{
		Delimiter:   delimiter,
		EmailColumn: req.EmailColumn,
		NameColumn:  req.NameColumn,
	})
}
