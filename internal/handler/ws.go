package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const liveWriteTimeout = 10 * time.Second

// liveMessage - сообщение потока: snapshot при подключении, затем update на каждое изменение
type liveMessage struct {
	Type  string `json:"type"`
	Item  any    `json:"item,omitempty"`
	Items any    `json:"items,omitempty"`
	Time  string `json:"time"`
}

// LiveWS отдает live-состояние по websocket
func (h *Handler) LiveWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.logger.WithError(err).Warn("Websocket handshake failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	// подписка до снимка, чтобы не потерять изменения между ними
	sub := h.services.Live.Subscribe()
	defer sub.Close()

	ctx := conn.CloseRead(c.Request.Context())
	if err := writeLive(ctx, conn, liveMessage{Type: "snapshot", Items: h.services.Live.Snapshot()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-sub.Updates():
			if !ok {
				conn.Close(websocket.StatusGoingAway, "сервер остановлен")
				return
			}
			if err := writeLive(ctx, conn, liveMessage{Type: "update", Item: h.services.Live.Decorate(view)}); err != nil {
				h.logger.WithError(err).Debug("Live subscriber disconnected")
				return
			}
		}
	}
}

func writeLive(ctx context.Context, conn *websocket.Conn, msg liveMessage) error {
	ctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()

	msg.Time = time.Now().UTC().Format(time.RFC3339)
	return wsjson.Write(ctx, conn, msg)
}
