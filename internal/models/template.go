// internal/models/template.go
// 郵件範本、附件與發送草稿資料模型

package models

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Template 郵件範本 (主旨與內容皆可包含 {欄位} 變數)
type Template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Attachment 附件
// Content 為空且 Path 有值時，於組信時才讀取檔案
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Content     []byte `json:"-"`
	Path        string `json:"path,omitempty"`
}

// NewFileAttachment 建立檔案附件 (延遲讀取)
func NewFileAttachment(path string) Attachment {
	return Attachment{
		Filename: filepath.Base(path),
		Path:     path,
	}
}

// Data 取得附件內容
func (a *Attachment) Data() ([]byte, error) {
	if a.Content != nil {
		return a.Content, nil
	}
	if a.Path == "" {
		return nil, fmt.Errorf("attachment %s has no content", a.Filename)
	}
	content, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %s: %w", a.Filename, err)
	}
	return content, nil
}

// MIMEType 取得 content type，未指定時依副檔名判斷
func (a *Attachment) MIMEType() string {
	if a.ContentType != "" {
		return a.ContentType
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(a.Filename))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Draft 發送草稿
// 取代介面層的全域狀態，以指標傳入發送引擎
type Draft struct {
	Config      SMTPConfig   `json:"config"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Template 回傳草稿目前的主旨與內容
func (d *Draft) Template() Template {
	return Template{Subject: d.Subject, Body: d.Body}
}

// ApplyTemplate 套用範本
func (d *Draft) ApplyTemplate(t Template) {
	d.Subject = t.Subject
	d.Body = t.Body
}

// ValidateContent 檢查主旨與內容不可空白
func (d *Draft) ValidateContent() error {
	if strings.TrimSpace(d.Subject) == "" {
		return NewValidationError("subject", "email subject is required")
	}
	if strings.TrimSpace(d.Body) == "" {
		return NewValidationError("body", "email content is required")
	}
	return nil
}
