// internal/cli/send.go
// 發送命令 - send / preview / test / check

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mail-merge/internal/merge"
	"mail-merge/internal/models"
	"mail-merge/internal/recipients"
)

func newSendCmd(a *app) *cobra.Command {
	var (
		draft  draftOptions
		table  tableFlags
		delay  time.Duration
		dryRun bool
		report string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one personalized email per CSV row",
		Long: `Send one personalized email per row of the CSV file, in file order,
one at a time. Rows without a valid email address are skipped. A failed
email is recorded and the run continues with the next row.

Press Ctrl-C to stop: the email in flight completes and no further emails
are sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := draft.build(cmd, a)
			if err != nil {
				return err
			}
			t, err := table.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("delay") {
				a.cfg.SendDelay = delay
			}

			dispatcher := a.dispatcher()
			if err := dispatcher.Validate(d, t); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary := recipients.Summarize(t, 0)
			fmt.Fprintf(out, "Recipients: %d rows, %d with a valid address (email column %q)\n",
				summary.Total, summary.Sendable, summary.EmailColumn)

			if dryRun {
				printDryRun(out, t, d)
				return nil
			}

			// 讓已儲存的主旨與下次啟動一致
			if err := a.configStore().Save(d.Config, d.Subject); err != nil {
				a.logger.Sugar().Warnf("Failed to remember subject: %v", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			run, err := dispatcher.SendAll(ctx, d, t, progressPrinter(out))
			if err != nil {
				return err
			}

			printSummary(out, run)
			if report != "" {
				if err := writeReport(report, run); err != nil {
					return err
				}
				fmt.Fprintf(out, "Report written to %s\n", report)
			}

			if _, failed := run.Counts(); failed > 0 {
				return fmt.Errorf("%d email(s) failed", failed)
			}
			return nil
		},
	}

	draft.register(cmd)
	table.register(cmd)
	cmd.Flags().DurationVar(&delay, "delay", 0, "wait between emails (default $SEND_DELAY_MS or 2s)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render every email without sending")
	cmd.Flags().StringVar(&report, "report", "", "write the results as JSON to this file")

	return cmd
}

// progressPrinter 每取得一筆結果輸出一行
func progressPrinter(out io.Writer) func(models.RunStatus) {
	printed := 0
	return func(s models.RunStatus) {
		for ; printed < len(s.Results); printed++ {
			r := s.Results[printed]
			remaining := s.Total - s.Skipped - len(s.Results)
			if r.Status == models.StatusSent {
				fmt.Fprintf(out, "  sent    %-40s (remaining %d)\n", r.Email, remaining)
			} else {
				fmt.Fprintf(out, "  FAILED  %-40s [%s] %s\n", r.Email, r.Reason, r.Error)
			}
		}
	}
}

func printSummary(out io.Writer, run *models.Run) {
	sent, failed := run.Counts()
	state := "Completed"
	if run.State == models.RunStopped {
		state = "Stopped"
	}
	fmt.Fprintf(out, "%s: %d sent, %d failed, %d skipped (of %d)\n", state, sent, failed, run.Skipped, run.Total)

	if failed == 0 {
		return
	}
	fmt.Fprintln(out, "Failed recipients:")
	for _, r := range run.Results {
		if r.Status == models.StatusFailed {
			fmt.Fprintf(out, "  %s (%s): %s\n", r.Email, r.Reason, r.Error)
		}
	}
}

func writeReport(path string, run *models.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func printDryRun(out io.Writer, t *models.Table, d *models.Draft) {
	for i, row := range t.Rows {
		email := t.Email(row)
		if !models.IsPlausibleEmail(email) {
			fmt.Fprintf(out, "  skip    row %d (no valid email)\n", i+1)
			continue
		}
		fmt.Fprintf(out, "  would send  %-40s %s\n", email, merge.Render(d.Subject, row.Fields()))
	}
}

func newPreviewCmd(a *app) *cobra.Command {
	var (
		draft  draftOptions
		table  tableFlags
		row    int
		sendTo string
	)

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the personalized email for one CSV row",
		Long: `Render the subject and body for one row of the CSV file.

With --send-to the rendered email is also sent to that address instead of
the row's own recipient, which is useful to check the final result in a
real inbox.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := draft.build(cmd, a)
			if err != nil {
				return err
			}
			t, err := table.load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary := recipients.Summarize(t, 0)
			fmt.Fprintf(out, "Columns:   %s\n", strings.Join(summary.Columns, ", "))
			fmt.Fprintf(out, "Variables: %s\n", strings.Join(merge.Variables(t.Columns), " "))
			fmt.Fprintf(out, "Rows:      %d (%d with a valid address)\n\n", summary.Total, summary.Sendable)

			var p merge.Preview
			if sendTo != "" {
				p, err = a.dispatcher().SendPreviewRow(cmd.Context(), d, t, row-1, sendTo)
			} else {
				p, err = merge.RenderPreview(t, row-1, d.Template())
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "To:      %s\n", p.To)
			fmt.Fprintf(out, "Name:    %s\n", p.Name)
			fmt.Fprintf(out, "Subject: %s\n\n%s\n", p.Subject, p.Body)
			if len(p.Unresolved) > 0 {
				fmt.Fprintf(out, "\nWarning: no column for %s\n", strings.Join(merge.Variables(p.Unresolved), " "))
			}
			if sendTo != "" {
				fmt.Fprintf(out, "\nPreview sent to %s\n", sendTo)
			}
			return nil
		},
	}

	draft.register(cmd)
	table.register(cmd)
	cmd.Flags().IntVar(&row, "row", 1, "row number to preview (1 = first data row)")
	cmd.Flags().StringVar(&sendTo, "send-to", "", "also send the rendered email to this address")

	return cmd
}

func newTestCmd(a *app) *cobra.Command {
	var (
		draft draftOptions
		to    string
		name  string
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Send a single test email without a CSV file",
		Long: `Send the subject and body to one address. {Name} is replaced with
--name, or with the address when no name is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := draft.build(cmd, a)
			if err != nil {
				return err
			}
			if err := a.dispatcher().SendTest(cmd.Context(), d, to, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test email sent to %s\n", to)
			return nil
		},
	}

	draft.register(cmd)
	cmd.Flags().StringVar(&to, "to", "", "recipient address (required)")
	cmd.Flags().StringVar(&name, "name", "", "value for {Name}")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var smtp smtpFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Test the connection and login without sending",
		RunE: func(cmd *cobra.Command, args []string) error {
			saved, err := a.configStore().Load()
			if err != nil {
				return err
			}
			cfg := saved.SMTP
			if err := smtp.apply(cmd, &cfg); err != nil {
				return err
			}
			if cfg.Password, err = smtp.password(cmd); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			dispatcher := a.dispatcher()
			if err := dispatcher.TestConnection(ctx, &cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Connection OK (%s, %s as %s)\n",
				dispatcher.Sender().Name(), cfg.Addr(), cfg.Username)
			return nil
		},
	}

	smtp.register(cmd, true)
	return cmd
}
