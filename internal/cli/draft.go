// internal/cli/draft.go
// 草稿參數 - SMTP 設定、主旨內容與附件

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mail-merge/internal/models"
	"mail-merge/internal/recipients"
	"mail-merge/internal/services"
)

// smtpFlags SMTP 設定參數，未指定的欄位沿用已儲存的設定
type smtpFlags struct {
	preset        string
	server        string
	port          int
	username      string
	sender        string
	replyTo       string
	passwordStdin bool
}

func (f *smtpFlags) register(cmd *cobra.Command, withPassword bool) {
	cmd.Flags().StringVar(&f.preset, "preset", "", "provider preset (aws-ses, gmail, outlook)")
	cmd.Flags().StringVar(&f.server, "server", "", "SMTP server host")
	cmd.Flags().IntVar(&f.port, "port", 0, "SMTP server port")
	cmd.Flags().StringVar(&f.username, "username", "", "SMTP username")
	cmd.Flags().StringVar(&f.sender, "sender", "", "sender email address")
	cmd.Flags().StringVar(&f.replyTo, "reply-to", "", "reply-to email address")
	if withPassword {
		cmd.Flags().BoolVar(&f.passwordStdin, "password-stdin", false, "read the SMTP password from stdin (default $SMTP_PASSWORD)")
	}
}

// apply 依序套用已儲存設定、預設值與參數
func (f *smtpFlags) apply(cmd *cobra.Command, cfg *models.SMTPConfig) error {
	if f.preset != "" {
		preset, ok := models.FindPreset(f.preset)
		if !ok {
			return models.NewValidationError("preset", fmt.Sprintf("unknown preset %q", f.preset))
		}
		preset.Apply(cfg)
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.Server = strings.TrimSpace(f.server)
	}
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("username") {
		cfg.Username = strings.TrimSpace(f.username)
	}
	if flags.Changed("sender") {
		cfg.SenderEmail = strings.TrimSpace(f.sender)
	}
	if flags.Changed("reply-to") {
		cfg.ReplyTo = strings.TrimSpace(f.replyTo)
	}
	return nil
}

// password 讀取密碼，不會寫入任何檔案
func (f *smtpFlags) password(cmd *cobra.Command) (string, error) {
	if f.passwordStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	return os.Getenv("SMTP_PASSWORD"), nil
}

// contentFlags 主旨、內容與附件參數
type contentFlags struct {
	template    string
	subject     string
	body        string
	bodyFile    string
	attachments []string
}

func (f *contentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.template, "template", "t", "", "saved or built-in template name")
	cmd.Flags().StringVarP(&f.subject, "subject", "s", "", "email subject (overrides the template)")
	cmd.Flags().StringVar(&f.body, "body", "", "HTML body (overrides the template)")
	cmd.Flags().StringVar(&f.bodyFile, "body-file", "", "read the HTML body from a file")
	cmd.Flags().StringArrayVarP(&f.attachments, "attach", "a", nil, "attach a file (repeatable)")
}

// draftOptions 組裝發送草稿所需的參數
type draftOptions struct {
	smtp    smtpFlags
	content contentFlags
}

func (o *draftOptions) register(cmd *cobra.Command) {
	o.smtp.register(cmd, true)
	o.content.register(cmd)
}

// build 組裝草稿：已儲存設定 -> 預設值 -> 參數，主旨未指定時沿用上次的主旨
func (o *draftOptions) build(cmd *cobra.Command, a *app) (*models.Draft, error) {
	saved, err := a.configStore().Load()
	if err != nil {
		return nil, err
	}

	draft := &models.Draft{Config: saved.SMTP}
	if err := o.smtp.apply(cmd, &draft.Config); err != nil {
		return nil, err
	}
	if draft.Config.Password, err = o.smtp.password(cmd); err != nil {
		return nil, err
	}

	if o.content.template != "" {
		tmpl, err := lookupTemplate(a.templateStore(), o.content.template)
		if err != nil {
			return nil, err
		}
		draft.ApplyTemplate(tmpl)
	} else {
		draft.Subject = saved.Subject
	}

	if o.content.subject != "" {
		draft.Subject = o.content.subject
	}
	if o.content.bodyFile != "" {
		data, err := os.ReadFile(o.content.bodyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		draft.Body = string(data)
	}
	if o.content.body != "" {
		draft.Body = o.content.body
	}

	maxBytes := int64(a.cfg.MaxAttachmentSizeMB) * 1024 * 1024
	for _, path := range o.content.attachments {
		info, err := os.Stat(path)
		if err != nil {
			return nil, models.NewValidationError("attachments", fmt.Sprintf("cannot read attachment %s", path))
		}
		if maxBytes > 0 && info.Size() > maxBytes {
			return nil, models.NewValidationError("attachments",
				fmt.Sprintf("%s exceeds maximum size of %dMB", path, a.cfg.MaxAttachmentSizeMB))
		}
		draft.Attachments = append(draft.Attachments, models.NewFileAttachment(path))
	}

	return draft, nil
}

// lookupTemplate 先找已儲存的範本，再找內建範本
func lookupTemplate(store *services.TemplateStore, name string) (models.Template, error) {
	if t, ok := store.Get(name); ok {
		return t, nil
	}
	if t, ok := services.Builtins()[name]; ok {
		return t, nil
	}
	return models.Template{}, models.NewValidationError("template", fmt.Sprintf("template %q not found", name))
}

// tableFlags 收件人表格參數
type tableFlags struct {
	csv         string
	delimiter   string
	emailColumn string
	nameColumn  string
}

func (f *tableFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.csv, "csv", "", "recipient CSV file with a header row (required)")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "field delimiter (default: detected)")
	cmd.Flags().StringVar(&f.emailColumn, "email-column", "", "column holding the email address (default: detected)")
	cmd.Flags().StringVar(&f.nameColumn, "name-column", "", "column holding the recipient name (default: detected)")
	_ = cmd.MarkFlagRequired("csv")
}

func (f *tableFlags) load() (*models.Table, error) {
	delimiter, err := recipients.ParseDelimiter(f.delimiter)
	if err != nil {
		return nil, err
	}
	return recipients.LoadFile(f.csv, recipients.Options{
		Delimiter:   delimiter,
		EmailColumn: f.emailColumn,
		NameColumn:  f.nameColumn,
	})
}
