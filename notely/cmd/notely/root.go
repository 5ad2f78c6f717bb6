// Command notely is a terminal client for the notely service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"notely/notely/config"
	"notely/notely/notesync"
	"notely/notely/notesync/remote"
	"notely/notely/utils/logging"

	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	apiURL string
	token  string
)

var rootCmd = &cobra.Command{
	Use:   "notely",
	Short: "Take notes and summarize them with the notely service",
	Long: `notely keeps your notes on the notely server. Every command acts as the user
named by the access token (--token or NOTELY_TOKEN).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func main() {
	logging.InitLogger()
	cfg = config.LoadConfig()
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", cfg.APIURL, "Base URL of the notely server")
	rootCmd.PersistentFlags().StringVar(&token, "token", cfg.Token, "Access token of the signed-in user")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(notesync.Message(err))
		os.Exit(1)
	}
}

// connect returns a client signed in with --token. A missing token leaves it signed
// out, which every note operation reports as unauthenticated.
func connect() (*notesync.Client, *remote.TokenSession, error) {
	client, tokens := remote.Connect(apiURL, &http.Client{Timeout: notesync.DefaultRemoteTimeout}, notesync.Options{
		SummarizeTimeout: cfg.SummarizeTimeout,
		Cache: notesync.CacheOptions{
			StaleTime: cfg.CacheStaleTime,
			GCTime:    cfg.CacheGCTime,
		},
	})
	if token == "" {
		return client, tokens, nil
	}
	if _, err := tokens.SignIn(token); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", notesync.ErrUnauthenticated, err)
	}
	return client, tokens, nil
}

// connectLoaded also loads the notes so commands addressing a note by id can find it.
func connectLoaded(ctx context.Context) (*notesync.Client, []notesync.Note, error) {
	client, _, err := connect()
	if err != nil {
		return nil, nil, err
	}
	notes, err := client.Notes(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client, notes, nil
}
