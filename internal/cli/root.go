// internal/cli/root.go
// 命令列介面 - 根命令與共用依賴

package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mail-merge/internal/config"
	"mail-merge/internal/logger"
	"mail-merge/internal/services"
)

// app 命令共用的設定與服務
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	sender services.MailSender // 非 nil 時取代依設定建立的發送服務

	configFile    string
	templatesFile string
	verbose       bool
}

// Execute 執行命令列
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd 建立根命令
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mailmerge",
		Short: "Personalized bulk email from a CSV file",
		Long: `mailmerge sends one personalized HTML email per row of a CSV file.

Placeholders such as {Name} in the subject and body are replaced with the
value of the matching column. Emails are sent one at a time over SMTP
(STARTTLS + AUTH PLAIN) or through SendGrid.

The SMTP password is never stored. Provide it through the SMTP_PASSWORD
environment variable or with --password-stdin.

Example:
  mailmerge config preset gmail                       # Use the Gmail preset
  mailmerge config save --username me@gmail.com --sender me@gmail.com
  mailmerge preview --csv list.csv --template welcome # Check row 1
  mailmerge check                                     # Test the connection
  mailmerge send --csv list.csv --template welcome    # Send to everyone`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configFile, "config-file", "", "saved SMTP settings (default $CONFIG_FILE or config.json)")
	rootCmd.PersistentFlags().StringVar(&a.templatesFile, "templates-file", "", "saved templates (default $TEMPLATES_FILE or templates.json)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newSendCmd(a))
	rootCmd.AddCommand(newPreviewCmd(a))
	rootCmd.AddCommand(newTestCmd(a))
	rootCmd.AddCommand(newCheckCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newTemplatesCmd(a))
	rootCmd.AddCommand(newTokenCmd(a))

	return rootCmd
}

// setup 載入設定並建立日誌 (日誌輸出到 stderr)
func (a *app) setup() {
	a.cfg = config.Load()
	if a.configFile != "" {
		a.cfg.ConfigFile = a.configFile
	}
	if a.templatesFile != "" {
		a.cfg.TemplatesFile = a.templatesFile
	}

	if a.logger == nil {
		level := a.cfg.LogLevel
		if a.verbose {
			level = "debug"
		}
		a.logger = logger.New(a.cfg.Env, level, a.cfg.LogFile, true)
	}
}

func (a *app) dispatcher() *services.Dispatcher {
	sender := a.sender
	if sender == nil {
		sender = services.NewDefaultMailRouter(a.cfg, a.logger)
	}
	return services.NewDispatcher(a.cfg, sender, a.logger)
}

func (a *app) configStore() *services.ConfigStore {
	return services.NewConfigStore(a.cfg.ConfigFile, a.logger)
}

func (a *app) templateStore() *services.TemplateStore {
	return services.NewTemplateStore(a.cfg.TemplatesFile, a.logger)
}
