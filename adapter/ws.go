package adapter

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// closeWait bounds how long the close frame may take to write.
const closeWait = time.Second

// Watch ties conn to a session context derived from ctx. When the session
// ends, a close frame is sent and conn is closed. Callers defer the returned
// cancel so the watcher exits with the session, not with the subscription.
func Watch(ctx context.Context, conn *websocket.Conn) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		// WriteControl may run concurrently with the session's own writes.
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeWait))
		conn.Close()
	}()
	return ctx, cancel
}
