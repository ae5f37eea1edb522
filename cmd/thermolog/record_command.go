package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"thermolog/internal/queue"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var (
		record queue.LogRecord
		at     string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a temperature log entry",
		Long: "Record a temperature log entry. The entry is stored locally first and " +
			"delivered on the next sync, so this works offline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			record.Timestamp = time.Now()
			if value := strings.TrimSpace(at); value != "" {
				parsed, err := time.Parse(time.RFC3339, value)
				if err != nil {
					return fmt.Errorf("parse --at: expected RFC3339 timestamp: %w", err)
				}
				record.Timestamp = parsed
			}
			if err := record.Validate(); err != nil {
				return err
			}

			api, viaDaemon, err := ctx.openQueueAPI()
			if err != nil {
				return err
			}
			defer api.Close()

			entry, err := api.Record(cmd.Context(), record)
			if err != nil {
				return fmt.Errorf("record entry: %w", err)
			}
			if asJSON {
				return writeJSON(cmd, entry)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recorded entry #%d for %s (%.2f)\n", entry.ID, entry.Record.SubjectID, entry.Record.Value)
			if !viaDaemon {
				fmt.Fprintln(out, "Daemon not running; entry will sync on the next `thermolog sync` or daemon start")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&record.SubjectID, "subject", "", "Subject being measured (fridge, freezer, probe id)")
	cmd.Flags().Float64Var(&record.Value, "value", 0, "Temperature reading")
	cmd.Flags().StringVar(&record.Actor, "actor", "", "Person or device recording the entry")
	cmd.Flags().StringVar(&record.Status, "status", "", "Optional status (ok, warning, alarm)")
	cmd.Flags().StringVar(&record.Note, "note", "", "Optional free-text note")
	cmd.Flags().StringVar(&at, "at", "", "Reading time as RFC3339 (defaults to now)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the stored entry as JSON")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("value")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}
