package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cratedig/internal/apiclient"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <artist-id> [release-folder]",
		Short: "Cancel a release, or every release of an artist",
		Long: "With a release folder, cancels that release if a slot is working it and drops it from the queue. " +
			"Without one, cancels every active release of the artist and drops all of its queued releases.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var folder string
			if len(args) == 2 {
				folder = args[1]
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Cancel(cmd.Context(), args[0], folder)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.Cancelled == 0 && resp.Removed == 0 {
					fmt.Fprintln(out, "Nothing to cancel")
					return nil
				}
				fmt.Fprintf(out, "Cancelled %d active, removed %d queued\n", resp.Cancelled, resp.Removed)
				return nil
			})
		},
	}
}
