// internal/models/errors.go
// 錯誤分類 - FormatError / ValidationError / SendError

package models

import (
	"errors"
	"fmt"
)

// FormatError 收件人表格無法解析
// 僅終止載入動作，不影響程序
type FormatError struct {
	Line int // 發生錯誤的行號 (0 表示未知)
	Err  error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid tabular data at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("invalid tabular data: %v", e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ValidationError 發送前檢查失敗 (設定欄位缺漏、主旨/內容空白、欄位對應錯誤)
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError 建立 ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// SendReason 發送失敗原因分類
type SendReason string

const (
	ReasonConnection   SendReason = "connection"
	ReasonAuth         SendReason = "auth"
	ReasonRecipient    SendReason = "recipient"
	ReasonTransmission SendReason = "transmission"
	ReasonAttachment   SendReason = "attachment"
	ReasonTimeout      SendReason = "timeout"
)

// SendError 單封郵件發送失敗
// 批次模式下記錄在該列結果中，不中斷整批發送
type SendError struct {
	Reason SendReason
	Err    error
}

// Error 回傳底層錯誤訊息 (批次結果直接顯示給使用者)
func (e *SendError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// NewSendError 建立 SendError
func NewSendError(reason SendReason, err error) *SendError {
	return &SendError{Reason: reason, Err: err}
}

// IsValidationError 判斷是否為 ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsFormatError 判斷是否為 FormatError
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// SendReasonOf 取得錯誤的發送失敗原因，非 SendError 時歸類為 transmission
func SendReasonOf(err error) SendReason {
	var se *SendError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ReasonTransmission
}
