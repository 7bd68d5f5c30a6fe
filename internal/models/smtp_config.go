// internal/models/smtp_config.go
// SMTP 連線設定資料模型

package models

import (
	"net"
	"strconv"
	"strings"
)

// SMTPConfig SMTP 連線設定
// Password 只存在於本次執行期間，不會寫入設定檔
type SMTPConfig struct {
	Server      string `json:"smtp_server"`
	Port        int    `json:"smtp_port"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	SenderEmail string `json:"sender_email"`
	ReplyTo     string `json:"reply_to_email,omitempty"`
}

// Addr 回傳 host:port
func (c *SMTPConfig) Addr() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// WithoutPassword 回傳移除密碼後的副本
func (c SMTPConfig) WithoutPassword() SMTPConfig {
	c.Password = ""
	return c
}

// Validate 檢查發送所需欄位
// Reply-To 為選填
func (c *SMTPConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Server) == "":
		return NewValidationError("smtp_server", "SMTP server is required")
	case c.Port <= 0 || c.Port > 65535:
		return NewValidationError("smtp_port", "SMTP port must be between 1 and 65535")
	case strings.TrimSpace(c.Username) == "":
		return NewValidationError("username", "SMTP username is required")
	case c.Password == "":
		return NewValidationError("password", "SMTP password is required")
	case strings.TrimSpace(c.SenderEmail) == "":
		return NewValidationError("sender_email", "sender email is required")
	case !IsPlausibleEmail(c.SenderEmail):
		return NewValidationError("sender_email", "sender email is not a valid address")
	case c.ReplyTo != "" && !IsPlausibleEmail(c.ReplyTo):
		return NewValidationError("reply_to_email", "reply-to email is not a valid address")
	}
	return nil
}

// SMTPPreset 常用 SMTP 服務預設值
type SMTPPreset struct {
	Name   string `json:"name"`
	Server string `json:"smtp_server"`
	Port   int    `json:"smtp_port"`
}

// SMTPPresets 內建預設 (皆為 587 STARTTLS)
var SMTPPresets = []SMTPPreset{
	{Name: "aws-ses", Server: "email-smtp.ap-south-1.amazonaws.com", Port: 587},
	{Name: "gmail", Server: "smtp.gmail.com", Port: 587},
	{Name: "outlook", Server: "smtp-mail.outlook.com", Port: 587},
}

// FindPreset 依名稱取得預設值
func FindPreset(name string) (SMTPPreset, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range SMTPPresets {
		if p.Name == name {
			return p, true
		}
	}
	return SMTPPreset{}, false
}

// Apply 將預設值套用到設定
func (p SMTPPreset) Apply(c *SMTPConfig) {
	c.Server = p.Server
	c.Port = p.Port
}

// MaskSecret 遮罩密碼 (顯示前4後4碼)
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}
