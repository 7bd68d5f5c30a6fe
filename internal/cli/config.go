// internal/cli/config.go
// 設定命令 - 儲存與顯示 SMTP 設定

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mail-merge/internal/models"
	"mail-merge/internal/services"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the saved SMTP settings",
		Long: `Manage the saved SMTP settings (server, port, username, sender,
reply-to and the last subject). The password is never written to disk.`,
	}

	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigSaveCmd(a))
	cmd.AddCommand(newConfigPresetCmd(a))

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the saved settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := a.configStore().Load()
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), a.cfg.ConfigFile, saved)
			return nil
		},
	}
}

func newConfigSaveCmd(a *app) *cobra.Command {
	var (
		smtp    smtpFlags
		subject string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Update the saved settings",
		Long: `Update the saved settings. Only the flags given are changed, the
rest of the saved settings are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.configStore()
			saved, err := store.Load()
			if err != nil {
				return err
			}
			if err := smtp.apply(cmd, &saved.SMTP); err != nil {
				return err
			}
			if cmd.Flags().Changed("subject") {
				saved.Subject = subject
			}
			if saved.SMTP.ReplyTo != "" && !models.IsPlausibleEmail(saved.SMTP.ReplyTo) {
				return models.NewValidationError("reply_to_email", "reply-to email is not a valid address")
			}

			if err := store.Save(saved.SMTP, saved.Subject); err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), a.cfg.ConfigFile, saved)
			return nil
		},
	}

	smtp.register(cmd, false)
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "default subject")

	return cmd
}

func newConfigPresetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preset [name]",
		Short: "List presets, or apply one to the saved settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, p := range models.SMTPPresets {
					fmt.Fprintf(out, "%-10s %s:%d\n", p.Name, p.Server, p.Port)
				}
				return nil
			}

			saved, err := a.configStore().ApplyPreset(args[0])
			if err != nil {
				return err
			}
			printConfig(out, a.cfg.ConfigFile, saved)
			return nil
		},
	}
}

func printConfig(out io.Writer, path string, saved *services.SavedConfig) {
	c := saved.SMTP
	fmt.Fprintf(out, "Settings (%s)\n", path)
	fmt.Fprintf(out, "  smtp_server:    %s\n", c.Server)
	fmt.Fprintf(out, "  smtp_port:      %d\n", c.Port)
	fmt.Fprintf(out, "  username:       %s\n", c.Username)
	fmt.Fprintf(out, "  sender_email:   %s\n", c.SenderEmail)
	fmt.Fprintf(out, "  reply_to_email: %s\n", c.ReplyTo)
	fmt.Fprintf(out, "  subject:        %s\n", saved.Subject)
}
