package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"thermolog/internal/daemonctl"
	"thermolog/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the thermolog daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), 10*time.Second)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the thermolog daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), cfg, 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, queue, and daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report, err := daemonctl.BuildStatusReport(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, report)
			}
			stdout := cmd.OutOrStdout()
			renderStatusReport(stdout, report, shouldColorize(stdout), time.Now())
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatusReport(w io.Writer, report *daemonctl.StatusReport, colorize bool, now time.Time) {
	st := report.Daemon
	for _, line := range renderSectionHeader("Thermolog", colorize) {
		fmt.Fprintln(w, line)
	}
	for _, line := range daemonLines(st, now) {
		fmt.Fprintln(w, renderStatusLine(line.label, line.kind, line.detail, colorize))
	}
	fmt.Fprintln(w)

	for _, line := range renderSectionHeader("Checks", colorize) {
		fmt.Fprintln(w, line)
	}
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusWarn
		}
		fmt.Fprintln(w, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
}

type statusLine struct {
	label  string
	kind   statusKind
	detail string
}

func daemonLines(st ipc.StatusResponse, now time.Time) []statusLine {
	lines := make([]statusLine, 0, 6)
	if st.Running {
		lines = append(lines, statusLine{"Daemon", statusOK, fmt.Sprintf("Running (pid %d)", st.PID)})
		if st.Online {
			lines = append(lines, statusLine{"Connectivity", statusOK, "Online (" + st.ConnectivityMode + ")"})
		} else {
			lines = append(lines, statusLine{"Connectivity", statusWarn, "Offline (" + st.ConnectivityMode + ")"})
		}
	} else {
		lines = append(lines, statusLine{"Daemon", statusWarn, "Not running (run `thermolog start`)"})
	}

	switch {
	case !st.PendingKnown:
		lines = append(lines, statusLine{"Pending", statusError, "Unknown (queue unreadable)"})
	case st.PendingCount == 0:
		lines = append(lines, statusLine{"Pending", statusOK, "0"})
	default:
		lines = append(lines, statusLine{"Pending", statusInfo, fmt.Sprintf("%d waiting to sync", st.PendingCount)})
	}
	if st.Syncing {
		lines = append(lines, statusLine{"Sync", statusInfo, "In progress"})
	}
	if last := st.LastSweep; last != nil && !last.FinishedAt.IsZero() {
		when := humanize.RelTime(last.FinishedAt, now, "ago", "from now")
		switch {
		case last.Skipped:
			lines = append(lines, statusLine{"Last sync", statusInfo, "Skipped (" + skipReasonText(last.SkipReason) + ") " + when})
		case last.Aborted:
			lines = append(lines, statusLine{"Last sync", statusWarn, fmt.Sprintf("Stopped at entry #%d %s: %s", last.FailedEntryID, when, last.Error)})
		default:
			lines = append(lines, statusLine{"Last sync", statusOK, fmt.Sprintf("Delivered %d %s", last.Synced, when)})
		}
	}

	if st.RemoteConfigured {
		lines = append(lines, statusLine{"Remote", statusOK, st.Endpoint})
	} else {
		lines = append(lines, statusLine{"Remote", statusWarn, "Not configured (entries stay queued)"})
	}
	if st.APIAddress != "" {
		lines = append(lines, statusLine{"HTTP API", statusInfo, st.APIAddress})
	}
	return lines
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the thermolog daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			socket := ""
			if ctx.socketFlag != nil {
				socket = strings.TrimSpace(*ctx.socketFlag)
			}
			return runDaemon(cmd.Context(), cfg, logLevel, socket)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	return cmd
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}
	if ctx.socketFlag != nil {
		opts.SocketPath = strings.TrimSpace(*ctx.socketFlag)
	}
	return opts
}
