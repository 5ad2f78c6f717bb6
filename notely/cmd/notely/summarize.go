package main

import (
	"errors"
	"fmt"

	"notely/notely/notesync"

	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [id]",
	Short: "Summarize a note with AI and save the summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, _, err := connectLoaded(cmd.Context())
		if err != nil {
			return err
		}
		res, err := client.SummarizeAndSave(cmd.Context(), id)
		var notSaved *notesync.SummaryNotSavedError
		if errors.As(err, &notSaved) {
			fmt.Printf("Generated summary: %s\n", notSaved.Summary)
		}
		if err != nil {
			return err
		}
		fmt.Println("Summary saved.")
		fmt.Println(res.Summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
