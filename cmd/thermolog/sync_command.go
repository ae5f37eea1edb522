package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"thermolog/internal/config"
	"thermolog/internal/connectivity"
	"thermolog/internal/daemon"
	"thermolog/internal/ipc"
	"thermolog/internal/logging"
	"thermolog/internal/queue"
	"thermolog/internal/remote"
	"thermolog/internal/syncer"
)

type syncOutput struct {
	Result       syncer.SweepResult `json:"result"`
	PendingCount int                `json:"pending_count"`
	PendingKnown bool               `json:"pending_known"`
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var local, asJSON, verbose bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Deliver pending entries to the remote endpoint now",
		Long: "Run one sweep. Without --local the request goes to the running daemon; " +
			"with --local the sweep runs in this process under the same coordinator lock.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				out syncOutput
				err error
			)
			if local {
				cfg, cfgErr := ctx.ensureConfig()
				if cfgErr != nil {
					return cfgErr
				}
				out, err = runLocalSweep(cmd.Context(), cfg, verbose)
			} else {
				err = ctx.withClient(func(client *ipc.Client) error {
					resp, callErr := client.SyncNow()
					if callErr != nil {
						return callErr
					}
					out = syncOutput{Result: resp.Result, PendingCount: resp.PendingCount, PendingKnown: resp.PendingKnown}
					return nil
				})
				if err != nil {
					return fmt.Errorf("%w (or run `thermolog sync --local`)", err)
				}
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, out)
			}
			printSweep(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "Run the sweep in this process instead of the daemon")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log each delivery to stderr (with --local)")
	return cmd
}

func runLocalSweep(ctx context.Context, cfg *config.Config, verbose bool) (syncOutput, error) {
	lock, err := daemon.AcquireLock(cfg.LockPath())
	if err != nil {
		if errors.Is(err, daemon.ErrLocked) {
			return syncOutput{}, fmt.Errorf("%w; use `thermolog sync` to ask the daemon instead", err)
		}
		return syncOutput{}, err
	}
	defer lock.Unlock()

	level := "warn"
	if verbose {
		level = "info"
	}
	logger, err := logging.New(logging.Options{Level: level, Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return syncOutput{}, err
	}

	client, err := remote.NewClient(cfg.Remote)
	if err != nil {
		if errors.Is(err, remote.ErrNotConfigured) {
			return syncOutput{}, fmt.Errorf("%w: set remote.endpoint or THERMOLOG_REMOTE_ENDPOINT", err)
		}
		return syncOutput{}, err
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return syncOutput{}, fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()

	observer := connectivity.FromConfig(cfg.Connectivity, logger)
	if monitor, ok := observer.(*connectivity.LinkMonitor); ok {
		monitor.Refresh("cli")
	}

	coord := syncer.New(store, client, observer,
		syncer.WithLogger(logger),
		syncer.WithRequestTimeout(cfg.RequestTimeout()),
	)
	out := syncOutput{Result: coord.Sweep(ctx)}
	if count, err := store.CountPending(ctx); err == nil {
		out.PendingCount = count
		out.PendingKnown = true
	}
	return out, nil
}

func printSweep(w io.Writer, out syncOutput) {
	r := out.Result
	switch {
	case r.Skipped:
		fmt.Fprintf(w, "Sync skipped: %s\n", skipReasonText(r.SkipReason))
	case r.Aborted:
		fmt.Fprintf(w, "Sync stopped at entry #%d after delivering %d of %d: %s\n", r.FailedEntryID, r.Synced, r.Synced+r.Pending, r.Error)
	case r.Attempted == 0:
		fmt.Fprintln(w, "Nothing to sync")
	default:
		fmt.Fprintf(w, "Delivered %d entries in %s\n", r.Synced, r.Duration().Round(time.Millisecond))
	}
	if r.Compacted > 0 {
		fmt.Fprintf(w, "Removed %d synced entries\n", r.Compacted)
	}
	if r.CompactError != "" {
		fmt.Fprintf(w, "Compaction deferred: %s\n", r.CompactError)
	}
	if out.PendingKnown {
		fmt.Fprintf(w, "%d pending\n", out.PendingCount)
	} else {
		fmt.Fprintln(w, "Pending count unavailable")
	}
}

func skipReasonText(reason string) string {
	switch reason {
	case syncer.SkipOffline:
		return "offline"
	case syncer.SkipInProgress:
		return "another sync is already running"
	case syncer.SkipNotConfigured:
		return "remote endpoint not configured"
	default:
		return reason
	}
}
