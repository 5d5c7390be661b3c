package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cratedig/internal/api"
	"cratedig/internal/apiclient"
)

func newSlotsCommand(ctx *commandContext) *cobra.Command {
	slotsCmd := &cobra.Command{
		Use:   "slots",
		Short: "Inspect and resize the worker slots",
	}
	slotsCmd.AddCommand(newSlotsShowCommand(ctx))
	slotsCmd.AddCommand(newSlotsResizeCommand(ctx))
	return slotsCmd
}

func newSlotsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show every slot and the release it is working",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Slots(cmd.Context())
				if err != nil {
					return err
				}
				return printSlots(cmd, ctx, resp)
			})
		},
	}
}

func newSlotsResizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resize <count>",
		Short: "Change the slot count (0-32); busy slots finish before retiring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid slot count %q", args[0])
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Resize(cmd.Context(), count)
				if err != nil {
					return err
				}
				if !ctx.jsonOutput() {
					fmt.Fprintf(cmd.OutOrStdout(), "Slot count set to %d\n", resp.Desired)
				}
				return printSlots(cmd, ctx, resp)
			})
		},
	}
}

func printSlots(cmd *cobra.Command, ctx *commandContext, resp api.SlotsResponse) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	if len(resp.Slots) == 0 {
		fmt.Fprintf(out, "No slots running (desired %d)\n", resp.Desired)
		return nil
	}
	fmt.Fprint(out, renderTable(slotColumns, slotRows(resp.Slots)))
	return nil
}

func slotRows(slots []api.Slot) [][]string {
	rows := make([][]string, 0, len(slots))
	for _, slot := range slots {
		release := "-"
		if slot.Current != nil {
			release = releaseLabel(slot.Current.ArtistName, slot.Current.ArtistID, slot.Current.ReleaseTitle, slot.Current.ReleaseFolder)
		}
		status, tracks, provider := "-", "-", "-"
		if p := slot.Progress; p != nil {
			status = p.Status
			if p.TotalTracks > 0 {
				tracks = fmt.Sprintf("%d/%d", p.CompletedTracks, p.TotalTracks)
			}
			if p.CurrentProvider != "" {
				provider = p.CurrentProvider
				if p.TotalProviders > 0 {
					provider = fmt.Sprintf("%s (%d/%d)", p.CurrentProvider, p.CurrentProviderIndex, p.TotalProviders)
				}
			}
		}
		active := yesNo(slot.Active)
		if !slot.Active && slot.Working {
			active = "retiring"
		}
		rows = append(rows, []string{
			strconv.Itoa(slot.ID),
			slot.State,
			active,
			release,
			status,
			tracks,
			provider,
			formatRelative(slot.LastActivityAt),
		})
	}
	return rows
}

func releaseLabel(artistName, artistID, title, folder string) string {
	artist := strings.TrimSpace(artistName)
	if artist == "" {
		artist = artistID
	}
	if strings.TrimSpace(title) == "" {
		title = folder
	}
	return artist + " - " + title
}
