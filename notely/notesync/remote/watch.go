package remote

import (
	"context"
	"net/http"
	"strings"

	"notely/notely/notesync"
	"notely/notely/types"
	"notely/notely/utils/logging"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// Watch subscribes to /notes/events and passes every event to handle until ctx is done
// or the server closes the feed. A normal close or a cancelled ctx returns nil.
func Watch(ctx context.Context, baseURL string, tokens TokenSource, handle func(types.NoteEvent)) error {
	token := tokens.Token()
	if token == "" {
		return notesync.ErrUnauthenticated
	}
	url := "ws" + strings.TrimPrefix(strings.TrimRight(baseURL, "/"), "http") + "/notes/events"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		return err
	}
	defer conn.CloseNow()
	logging.AppLogger.Info("notely change feed connected", zap.String("url", url))

	for {
		var ev types.NoteEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			logging.ErrorLogger.Error("notely change feed read error", zap.Error(err))
			return err
		}
		handle(ev)
	}
}
