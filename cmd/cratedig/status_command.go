package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"cratedig/internal/api"
	"cratedig/internal/apiclient"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, provider, queue and slot status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				stdout := cmd.OutOrStdout()
				for _, line := range statusLines(status, shouldColorize(stdout)) {
					fmt.Fprintln(stdout, line)
				}
				return nil
			})
		},
	}
}

func statusLines(status api.DaemonStatus, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d, since %s)", status.PID, status.StartedAt), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	lines = append(lines,
		renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize),
		renderStatusLine("History", statusInfo, status.HistoryDBPath, colorize),
	)
	if status.EventsDropped > 0 {
		lines = append(lines, renderStatusLine("Events dropped", statusWarn, strconv.FormatUint(status.EventsDropped, 10), colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Providers", colorize)...)
	if len(status.Providers) == 0 {
		lines = append(lines, renderStatusLine("Providers", statusError, "none configured", colorize))
	}
	for _, p := range status.Providers {
		kind, detail := providerStatus(p)
		lines = append(lines, renderStatusLine(p.Name, kind, detail, colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Work", colorize)...)
	queueKind, queueDetail := queueStatus(status.Queue)
	lines = append(lines,
		renderStatusLine("Queue", queueKind, queueDetail, colorize),
		renderStatusLine("Slots", statusInfo, fmt.Sprintf("%d busy of %d running (desired %d)", status.Slots.Busy, status.Slots.Running, status.Slots.Desired), colorize),
	)
	return lines
}
