package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-battle-net/internal/hub"
)

const (
	watchBuffer  = 8
	writeTimeout = 3 * time.Second
)

// WatchStatus streams every status change to a WebSocket as JSON until
// either side goes away. Slow watchers are dropped by the hub.
func WatchStatus(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Debug("watch accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		// Watchers only listen; CloseRead handles the peer's close frame.
		ctx := conn.CloseRead(r.Context())

		id := uuid.NewString()
		out := make(chan hub.Status, watchBuffer)
		select {
		case h.Inbox() <- hub.Watch{ID: id, Outbox: out}:
		case <-ctx.Done():
			return
		}
		defer func() {
			select {
			case h.Inbox() <- hub.Unwatch{ID: id}:
			case <-time.After(writeTimeout):
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-out:
				if !ok {
					conn.Close(websocket.StatusTryAgainLater, "too slow")
					return
				}
				if err := write(ctx, conn, st); err != nil {
					log.Debug("watch write failed", zap.String("watcher", id), zap.Error(err))
					return
				}
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, st hub.Status) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, st)
}
