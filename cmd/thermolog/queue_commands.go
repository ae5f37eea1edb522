package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"thermolog/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the local entry queue",
	}
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueCountCommand(ctx))
	queueCmd.AddCommand(newQueueCompactCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))
	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var states []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued entries (pending first by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := ctx.openQueueAPI()
			if err != nil {
				return err
			}
			defer api.Close()

			entries, err := api.List(cmd.Context(), states)
			if err != nil {
				return err
			}
			if asJSON {
				if entries == nil {
					entries = []queue.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}
			fmt.Fprint(out, renderTable(
				[]string{"ID", "Subject", "Value", "Actor", "Status", "Taken", "Queued", "State"},
				entryRows(entries, time.Now()),
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&states, "state", nil, "Filter by sync state (pending, synced)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func entryRows(entries []queue.Entry, now time.Time) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(entry.ID, 10),
			entry.Record.SubjectID,
			strconv.FormatFloat(entry.Record.Value, 'f', 2, 64),
			entry.Record.Actor,
			entry.Record.Status,
			entry.Record.Timestamp.Local().Format("2006-01-02 15:04"),
			humanize.RelTime(entry.CreatedAt, now, "ago", "from now"),
			entry.SyncState.String(),
		})
	}
	return rows
}

func newQueueCountCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print the number of entries waiting to sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := ctx.openQueueAPI()
			if err != nil {
				return err
			}
			defer api.Close()

			count, err := api.CountPending(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]int{"pending": count})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending\n", count)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newQueueCompactCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Remove entries that have already been synced",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := ctx.openQueueAPI()
			if err != nil {
				return err
			}
			defer api.Close()

			removed, err := api.Compact(cmd.Context())
			if err != nil {
				return fmt.Errorf("compact queue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d synced entries\n", removed)
			return nil
		},
	}
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check queue database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, _, err := ctx.openQueueAPI()
			if err != nil {
				return err
			}
			defer api.Close()

			health, err := api.Health(cmd.Context())
			if err != nil && health.Error == "" {
				return err
			}
			if asJSON {
				return writeJSON(cmd, health)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
			fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
			fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
			fmt.Fprintf(out, "Schema version: %d (expected %d)\n", health.SchemaVersion, health.ExpectedVersion)
			fmt.Fprintf(out, "Entries table: %s\n", yesNo(health.TableExists))
			fmt.Fprintf(out, "Pending index: %s\n", yesNo(health.IndexExists))
			fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
			fmt.Fprintf(out, "Entries: %d total, %d pending\n", health.TotalEntries, health.PendingEntries)
			if health.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", health.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
