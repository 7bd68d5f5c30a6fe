// internal/models/captured.go
// SMTP Sink 收到的郵件

package models

import "time"

// CapturedMessage SMTP Sink 收到並解析後的郵件
type CapturedMessage struct {
	ID          string               `json:"id"`
	From        string               `json:"from"`
	To          []string             `json:"to"`
	Subject     string               `json:"subject"`
	ReplyTo     string               `json:"reply_to,omitempty"`
	MessageID   string               `json:"message_id,omitempty"`
	HTML        string               `json:"html,omitempty"`
	Text        string               `json:"text,omitempty"`
	Attachments []CapturedAttachment `json:"attachments,omitempty"`
	Username    string               `json:"username,omitempty"` // AUTH 使用的帳號
	Size        int                  `json:"size"`
	Raw         []byte               `json:"-"`
	ReceivedAt  time.Time            `json:"received_at"`
}

// CapturedAttachment 收到的附件
type CapturedAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Content     []byte `json:"-"`
}
