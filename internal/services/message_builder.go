// internal/services/message_builder.go
// MIME 組信 - HTML 內容加附件 (multipart/mixed)

package services

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"

	"mail-merge/internal/models"
)

// BuildMessage 組出完整郵件並寫入 w
// 附件讀取失敗時回傳 reason 為 attachment 的 SendError
func BuildMessage(w io.Writer, cfg *models.SMTPConfig, to, subject, html string, atts []models.Attachment) error {
	// 先讀取所有附件，避免寫到一半才失敗
	contents := make([][]byte, len(atts))
	for i := range atts {
		data, err := atts[i].Data()
		if err != nil {
			return models.NewSendError(models.ReasonAttachment, err)
		}
		contents[i] = data
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: cfg.SenderEmail}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	if cfg.ReplyTo != "" {
		h.SetAddressList("Reply-To", []*mail.Address{{Address: cfg.ReplyTo}})
	}
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return fmt.Errorf("failed to generate message id: %w", err)
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("failed to create mail writer: %w", err)
	}

	var ih mail.InlineHeader
	ih.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	bw, err := mw.CreateSingleInline(ih)
	if err != nil {
		return fmt.Errorf("failed to create body part: %w", err)
	}
	if _, err := io.WriteString(bw, html); err != nil {
		return fmt.Errorf("failed to write body: %w", err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("failed to close body part: %w", err)
	}

	for i := range atts {
		var ah mail.AttachmentHeader
		ah.SetContentType(atts[i].MIMEType(), nil)
		ah.SetFilename(atts[i].Filename)

		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return fmt.Errorf("failed to create attachment part %s: %w", atts[i].Filename, err)
		}
		if _, err := aw.Write(contents[i]); err != nil {
			return fmt.Errorf("failed to write attachment %s: %w", atts[i].Filename, err)
		}
		if err := aw.Close(); err != nil {
			return fmt.Errorf("failed to close attachment part %s: %w", atts[i].Filename, err)
		}
	}

	return mw.Close()
}

// buildMessageBytes 組信並回傳位元組
func buildMessageBytes(cfg *models.SMTPConfig, to, subject, html string, atts []models.Attachment) ([]byte, error) {
	var buf bytes.Buffer
	if err := BuildMessage(&buf, cfg, to, subject, html, atts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
