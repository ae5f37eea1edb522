package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"thermolog/internal/logging"
	"thermolog/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		filter logs.Filter
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()
			emit := func(line string) {
				if filter.Match(line) {
					fmt.Fprintln(out, line)
				}
			}

			tail, offset, err := logs.Last(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				emit(line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 0, emit)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().Int64Var(&filter.EntryID, "entry", 0, "Only show records for this entry id")
	cmd.Flags().StringVar(&filter.EventType, "event", "", "Only show records with this event_type")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}
