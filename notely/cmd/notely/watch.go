package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"notely/notely/notesync/remote"
	"notely/notely/types"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print changes to your notes as they happen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, tokens, err := connect()
		if err != nil {
			return err
		}
		if _, err := client.Notes(ctx); err != nil {
			return err
		}
		go client.Cache().Run(ctx)

		fmt.Println("Watching for changes. Press Ctrl+C to stop.")
		return remote.Watch(ctx, apiURL, tokens, func(ev types.NoteEvent) {
			client.HandleRemoteChange(ev)
			fmt.Printf("note %d %s\n", ev.NoteID, ev.Type)
		})
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
