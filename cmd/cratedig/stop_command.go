package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cratedig/internal/apiclient"
	"cratedig/internal/daemonctl"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon; active releases return to the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				result, err := daemonctl.Stop(cmd.Context(), client, cfg.PIDPath(), grace)
				if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
					fmt.Fprintln(out, "Daemon is not running")
					return nil
				}
				if err != nil {
					return err
				}
				if result.ForcedKill {
					fmt.Fprintf(out, "Daemon (pid %d) did not stop within %s and was killed\n", result.PID, grace)
					return nil
				}
				fmt.Fprintf(out, "Daemon (pid %d) stopped\n", result.PID)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 30*time.Second, "How long to wait for a clean shutdown before killing the daemon")
	return cmd
}
