package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cratedig/internal/api"
	"cratedig/internal/apiclient"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the download queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearArtistCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var item api.QueueItem
	var front bool
	var fromFile string

	cmd := &cobra.Command{
		Use:   "add [artist-id release-folder]",
		Short: "Queue a release for download",
		Long: "Queue one release by artist id and release folder, or a batch from a JSON file " +
			"holding an array of queue items (use - for stdin).",
		Args: func(cmd *cobra.Command, args []string) error {
			if fromFile != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []api.QueueItem
			if fromFile != "" {
				loaded, err := readQueueItems(fromFile, cmd)
				if err != nil {
					return err
				}
				items = loaded
			} else {
				item.ArtistID = args[0]
				item.ReleaseFolder = args[1]
				items = []api.QueueItem{item}
			}
			if len(items) == 0 {
				return errors.New("no releases to queue")
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				results, err := client.Enqueue(cmd.Context(), items, front)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.EnqueueResponse{Results: results})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(enqueueColumns, enqueueRows(results)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&item.ArtistName, "artist-name", "", "Artist display name")
	cmd.Flags().StringVar(&item.ReleaseTitle, "title", "", "Release title")
	cmd.Flags().StringVar(&item.Year, "year", "", "Release year")
	cmd.Flags().IntVar(&item.ExpectedTracks, "tracks", 0, "Expected track count")
	cmd.Flags().BoolVar(&item.Force, "force", false, "Bypass the failure cooldown")
	cmd.Flags().BoolVar(&front, "front", false, "Insert at the head of the queue")
	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read queue items from a JSON file")
	return cmd
}

func readQueueItems(path string, cmd *cobra.Command) ([]api.QueueItem, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = readAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read queue items: %w", err)
	}
	var items []api.QueueItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse queue items: %w", err)
	}
	return items, nil
}

func enqueueRows(results []api.EnqueueResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		outcome := "queued"
		if !res.Accepted {
			outcome = "rejected: " + res.Reason
		}
		rows = append(rows, []string{res.ArtistID, res.ReleaseFolder, outcome, res.QueueKey})
	}
	return rows
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued releases in pull order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				snap, err := client.Queue(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, snap)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d queued, %d in flight, capacity %d\n", snap.Length, snap.InFlight, snap.Capacity)
				if len(snap.Items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(queueColumns, queueRows(snap.Items)))
				if remaining := snap.Length - len(snap.Items); remaining > 0 {
					fmt.Fprintf(out, "... %d more\n", remaining)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum releases to list (0 for all)")
	return cmd
}

func queueRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for i, item := range items {
		artist := strings.TrimSpace(item.ArtistName)
		if artist == "" {
			artist = item.ArtistID
		}
		title := strings.TrimSpace(item.ReleaseTitle)
		if title == "" {
			title = item.ReleaseFolder
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			artist,
			title,
			item.Year,
			yesNo(item.Force),
			formatRelative(item.EnqueuedAt),
			item.QueueKey,
		})
	}
	return rows
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <queue-key>...",
		Short: "Remove queued releases by queue key",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				var missing []string
				for _, key := range args {
					err := client.Remove(cmd.Context(), key)
					switch {
					case err == nil:
						fmt.Fprintf(out, "Removed %s\n", key)
					case apiclient.IsNotFound(err):
						missing = append(missing, key)
					default:
						return err
					}
				}
				if len(missing) > 0 {
					return fmt.Errorf("not queued: %s", strings.Join(missing, ", "))
				}
				return nil
			})
		},
	}
}

func newQueueClearArtistCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-artist <artist-id>",
		Short: "Drop every queued release of an artist and cancel its active downloads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Cancel(cmd.Context(), args[0], "")
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d queued, cancelled %d active\n", resp.Removed, resp.Cancelled)
				return nil
			})
		},
	}
}
