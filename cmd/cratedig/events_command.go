package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cratedig/internal/api"
	"cratedig/internal/apiclient"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var limit int
	var topic string

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent daemon events",
		Long:  "Prints the newest events from the daemon's replay buffer. With --follow, keeps long-polling for new events until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Events(runCtx, apiclient.EventsQuery{Limit: limit, Tail: true, Topic: topic})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if err := printEvents(out, ctx.jsonOutput(), resp.Events); err != nil {
					return err
				}
				if !follow {
					return nil
				}
				since := resp.Next
				for {
					resp, err := client.Events(runCtx, apiclient.EventsQuery{Since: since, Wait: true, Topic: topic})
					if err != nil {
						if errors.Is(err, context.Canceled) || runCtx.Err() != nil {
							return nil
						}
						return err
					}
					if err := printEvents(out, ctx.jsonOutput(), resp.Events); err != nil {
						return err
					}
					if resp.Next > since {
						since = resp.Next
					}
				}
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of recent events to show first")
	cmd.Flags().StringVar(&topic, "topic", "", "Only show topics with this prefix (queue, slots, history, progress.)")
	return cmd
}

func printEvents(out io.Writer, asJSON bool, evts []api.Event) error {
	for _, evt := range evts {
		if asJSON {
			line, err := jsonLine(evt)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, line)
			continue
		}
		fmt.Fprintf(out, "%6d %s %-8s %-22s %s\n", evt.Sequence, evt.Timestamp, evt.Topic, evt.Type, string(evt.Data))
	}
	return nil
}
