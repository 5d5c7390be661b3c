package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cratedig/internal/api"
	"cratedig/internal/apiclient"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var release bool
	var lines int

	cmd := &cobra.Command{
		Use:   "history [--release <artist-id> <release-folder>]",
		Short: "Show recent download attempts, or one release in detail",
		Args: func(cmd *cobra.Command, args []string) error {
			if release {
				return cobra.ExactArgs(2)(cmd, args)
			}
			return cobra.NoArgs(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if release {
					return showReleaseHistory(cmd, ctx, client, args[0], args[1], lines)
				}
				entries, err := client.History(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.HistoryResponse{Entries: entries})
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No finished attempts yet")
					return nil
				}
				fmt.Fprint(out, renderTable(historyColumns, historyRows(entries)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum attempts to show")
	cmd.Flags().BoolVar(&release, "release", false, "Show the latest attempt at one release with its log")
	cmd.Flags().IntVar(&lines, "lines", 30, "Release log lines to show with --release")
	return cmd
}

func historyRows(entries []api.HistoryEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		finished := api.ParseTime(entry.Timestamp).Add(time.Duration(entry.TotalMs) * time.Millisecond)
		when := ""
		if !finished.IsZero() {
			when = finished.Local().Format("2006-01-02 15:04")
		}
		provider := entry.ProviderUsed
		if provider == "" {
			provider = "-"
		}
		rows = append(rows, []string{
			when,
			releaseLabel(entry.ArtistName, entry.ArtistID, entry.ReleaseTitle, entry.ReleaseFolder),
			entry.Outcome,
			provider,
			formatDuration(time.Duration(entry.TotalMs) * time.Millisecond),
			entry.ErrorMessage,
		})
	}
	return rows
}

func showReleaseHistory(cmd *cobra.Command, ctx *commandContext, client *apiclient.Client, artistID, folder string, lines int) error {
	resp, err := client.ReleaseHistory(cmd.Context(), artistID, folder, lines)
	if apiclient.IsNotFound(err) {
		return fmt.Errorf("no history for %s/%s", artistID, folder)
	}
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, resp)
	}
	if resp.Entry == nil {
		return errors.New("daemon returned an empty history entry")
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	entry := resp.Entry

	for _, line := range renderSectionHeader(releaseLabel(entry.ArtistName, entry.ArtistID, entry.ReleaseTitle, entry.ReleaseFolder), colorize) {
		fmt.Fprintln(out, line)
	}
	kind, outcome := attemptStatus(*entry)
	fmt.Fprintln(out, renderStatusLine("Outcome", kind, outcome, colorize))
	if entry.ProviderUsed != "" {
		fmt.Fprintln(out, renderStatusLine("Provider", statusInfo, entry.ProviderUsed, colorize))
	}
	if entry.ErrorMessage != "" {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, entry.ErrorMessage, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Slot", statusInfo, fmt.Sprintf("%d", entry.SlotID), colorize))
	fmt.Fprintln(out, renderStatusLine("Total", statusInfo, formatDuration(time.Duration(entry.TotalMs)*time.Millisecond), colorize))

	if len(entry.Transitions) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(entry.Transitions))
		for _, tr := range entry.Transitions {
			rows = append(rows, []string{
				tr.From + " -> " + tr.To,
				api.ParseTime(tr.At).Local().Format("15:04:05"),
				formatDuration(time.Duration(tr.DurationMs) * time.Millisecond),
			})
		}
		fmt.Fprint(out, renderTable(transitionColumns, rows))
	}

	if len(resp.Log) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Release log", colorize) {
			fmt.Fprintln(out, line)
		}
		fmt.Fprintln(out, strings.Join(resp.Log, "\n"))
	}
	return nil
}
