package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/doctrack/doctrack/internal/app"
	"github.com/doctrack/doctrack/internal/document/service"
	"github.com/doctrack/doctrack/internal/reminder"
)

func remindCmd() *cobra.Command {
	var req reminder.Request
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send reminders for documents due within --days",
		Long: `Send one reminder per document that expires within --days (overdue
documents included) and print the dispatch result as JSON.

Meant for cron: the command is not subject to the reminders rate limit.

Examples:
  doctrack remind
  doctrack remind --days 7 --mode webhook --target https://hooks.example/doc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.TrustedDispatcher().Send(cmd.Context(), "cli", req)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().IntVar(&req.Days, "days", service.DefaultExpiringDays, "look-ahead window in days (1-365)")
	cmd.Flags().StringVar(&req.Mode, "mode", string(reminder.ModeEmail), "delivery mode: email or webhook")
	cmd.Flags().StringVar(&req.Target, "target", "", "email address or webhook URL (defaults from config)")
	return cmd
}
