package remote

import (
	"net/http"

	"notely/notely/notesync"
)

// Connect builds a notesync.Client backed by the notely service at baseURL. The returned
// TokenSession is bound to the client's session context; signing in through it switches
// the client's principal.
func Connect(baseURL string, hc *http.Client, opts notesync.Options) (*notesync.Client, *TokenSession) {
	if hc == nil {
		hc = http.DefaultClient
	}
	tokens := NewTokenSession()
	client := notesync.NewClient(
		NewNotesClient(baseURL, tokens, hc),
		NewSummarizeClient(baseURL, hc),
		opts,
	)
	tokens.Bind(client.Session())
	return client, tokens
}
