// internal/cli/templates.go
// 範本命令 - 列出、顯示、儲存與刪除範本

package cli

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mail-merge/internal/merge"
	"mail-merge/internal/models"
	"mail-merge/internal/services"
)

func newTemplatesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "Manage saved email templates",
	}

	cmd.AddCommand(newTemplatesListCmd(a))
	cmd.AddCommand(newTemplatesShowCmd(a))
	cmd.AddCommand(newTemplatesSaveCmd(a))
	cmd.AddCommand(newTemplatesDeleteCmd(a))
	cmd.AddCommand(newTemplatesBuiltinCmd(a))

	return cmd
}

func newTemplatesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved and built-in templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			store := a.templateStore()
			saved := store.List()

			fmt.Fprintln(out, "Saved:")
			if len(saved) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for _, name := range store.Names() {
				fmt.Fprintf(out, "  %-24s %s\n", name, saved[name].Subject)
			}

			fmt.Fprintln(out, "Built-in:")
			builtins := services.Builtins()
			for _, name := range sortedNames(builtins) {
				fmt.Fprintf(out, "  %-24s %s\n", name, builtins[name].Subject)
			}
			return nil
		},
	}
}

func newTemplatesShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a template and its placeholders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := lookupTemplate(a.templateStore(), args[0])
			if err != nil {
				return err
			}

			placeholders := merge.Placeholders(tmpl.Subject + "\n" + tmpl.Body)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Subject:      %s\n", tmpl.Subject)
			fmt.Fprintf(out, "Placeholders: %s\n\n", strings.Join(merge.Variables(placeholders), " "))
			fmt.Fprintln(out, tmpl.Body)
			return nil
		},
	}
}

func newTemplatesSaveCmd(a *app) *cobra.Command {
	var (
		subject  string
		body     string
		bodyFile string
	)

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save (or replace) a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if bodyFile != "" {
				data, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("failed to read body file: %w", err)
				}
				body = string(data)
			}

			if err := a.templateStore().Save(args[0], models.Template{Subject: subject, Body: body}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %q saved\n", strings.TrimSpace(args[0]))
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "template subject")
	cmd.Flags().StringVar(&body, "body", "", "HTML body")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "read the HTML body from a file")

	return cmd
}

func newTemplatesDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.templateStore().Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template %q deleted\n", args[0])
			return nil
		},
	}
}

func newTemplatesBuiltinCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "builtin [name]",
		Short: "List built-in templates, or copy one into the saved templates",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			builtins := services.Builtins()

			if len(args) == 0 {
				for _, name := range sortedNames(builtins) {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			tmpl, ok := builtins[args[0]]
			if !ok {
				return models.NewValidationError("template", fmt.Sprintf("no built-in template %q", args[0]))
			}
			if err := a.templateStore().Save(args[0], tmpl); err != nil {
				return err
			}
			fmt.Fprintf(out, "Template %q saved\n", args[0])
			return nil
		},
	}
}

func sortedNames(templates map[string]models.Template) []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
