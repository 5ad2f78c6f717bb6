package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"notely/notely/notesync"

	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Work with your notes interactively",
	Long:  `Shell keeps one session and cache open, so repeated commands do not refetch.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		client, _, err := connect()
		if err != nil {
			return err
		}
		go client.Cache().Run(ctx)

		fmt.Println("Commands: list, add <content>, title <id> <title>, edit <id> <content>, rm <id>, summarize <id>, exit")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("notely> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "exit" || line == "quit" {
				return nil
			}
			if line == "" {
				continue
			}
			if err := runShellLine(ctx, client, line); err != nil {
				fmt.Println(notesync.Message(err))
			}
		}
	},
}

func runShellLine(ctx context.Context, client *notesync.Client, line string) error {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch verb {
	case "list", "ls":
		notes, err := client.Notes(ctx)
		if err != nil {
			return err
		}
		for _, n := range notes {
			printNote(n)
		}
		return nil
	case "add":
		note, err := client.CreateNote(ctx, notesync.NewNote{Content: rest})
		if err != nil {
			return err
		}
		fmt.Printf("Note created: %d\n", note.ID)
		return nil
	case "title", "edit":
		idArg, value, _ := strings.Cut(rest, " ")
		id, err := parseID(idArg)
		if err != nil {
			return err
		}
		var patch notesync.NotePatch
		if verb == "title" {
			patch.Title = &value
		} else {
			patch.Content = &value
		}
		if _, err := client.Notes(ctx); err != nil {
			return err
		}
		note, err := client.UpdateNote(ctx, id, patch)
		if err != nil {
			return err
		}
		printNote(note)
		return nil
	case "rm", "delete":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		if _, err := client.Notes(ctx); err != nil {
			return err
		}
		return client.DeleteNote(ctx, id)
	case "summarize":
		id, err := parseID(rest)
		if err != nil {
			return err
		}
		if _, err := client.Notes(ctx); err != nil {
			return err
		}
		res, err := client.SummarizeAndSave(ctx, id)
		if err != nil {
			return err
		}
		fmt.Println(res.Summary)
		return nil
	default:
		fmt.Printf("unknown command %q\n", verb)
		return nil
	}
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
