package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"notely/notely/notesync"

	"github.com/spf13/cobra"
)

var (
	listJSON  bool
	noteTitle string
	editTitle string
	editBody  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your notes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, notes, err := connectLoaded(cmd.Context())
		if err != nil {
			return err
		}
		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(notes)
		}
		if len(notes) == 0 {
			fmt.Println("No notes yet.")
			return nil
		}
		for _, n := range notes {
			printNote(n)
		}
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Create a note",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := connectLoaded(cmd.Context())
		if err != nil {
			return err
		}
		in := notesync.NewNote{Content: strings.Join(args, " ")}
		if cmd.Flags().Changed("title") {
			in.Title = &noteTitle
		}
		note, err := client.CreateNote(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Printf("Note created: %d\n", note.ID)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Change the title or content of a note",
	Long:  `Edit updates only the fields you pass. An empty --title removes the title.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		var patch notesync.NotePatch
		if cmd.Flags().Changed("title") {
			patch.Title = &editTitle
		}
		if cmd.Flags().Changed("content") {
			patch.Content = &editBody
		}
		client, _, err := connectLoaded(cmd.Context())
		if err != nil {
			return err
		}
		note, err := client.UpdateNote(cmd.Context(), id, patch)
		if err != nil {
			return err
		}
		fmt.Println("Note updated.")
		printNote(note)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete [id]",
	Aliases: []string{"rm"},
	Short:   "Delete a note",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		client, _, err := connectLoaded(cmd.Context())
		if err != nil {
			return err
		}
		if err := client.DeleteNote(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Note deleted: %d\n", id)
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a note id", notesync.ErrValidationFailed, s)
	}
	return id, nil
}

func printNote(n notesync.Note) {
	fmt.Printf("[%d] %s  (%s)\n", n.ID, n.DisplayTitle(), n.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("    %s\n", n.Content)
	if n.Summary != nil {
		fmt.Printf("    Summary: %s\n", *n.Summary)
	}
}

func init() {
	rootCmd.AddCommand(listCmd, addCmd, editCmd, deleteCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	addCmd.Flags().StringVar(&noteTitle, "title", "", "Note title")
	editCmd.Flags().StringVar(&editTitle, "title", "", "New title (empty removes it)")
	editCmd.Flags().StringVar(&editBody, "content", "", "New content")
}
