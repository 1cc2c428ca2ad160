package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/doctrack/doctrack/internal/storage"
)

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Manage the reminder outbox",
	}
	cmd.AddCommand(outboxArchiveCmd())
	return cmd
}

func outboxArchiveCmd() *cobra.Command {
	var expires time.Duration
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Upload a snapshot of the outbox file to MinIO",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.NewMinIOStorage(cmd.Context(), cfg.MinIO)
			if err != nil {
				return err
			}
			key, err := store.ArchiveOutbox(cmd.Context(), cfg.Reminder.OutboxPath, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %s to %s/%s\n", cfg.Reminder.OutboxPath, cfg.MinIO.Bucket, key)

			if expires > 0 {
				link, err := store.GetPresignedURL(cmd.Context(), key, expires)
				if err != nil {
					return fmt.Errorf("presign %s: %w", key, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), link)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&expires, "link-expires", 24*time.Hour, "print a presigned download link valid this long (0 disables)")
	return cmd
}
