package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/geo/r3"
	"github.com/gorilla/websocket"
	"github.com/jaennil/guide_helper/backend/pointcloud/internal/infrastructure/http/v1/dto"
)

const (
	eventBuffer       = 1024
	writeTimeout      = 5 * time.Second
	defaultStreamIdle = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Events streams scene changes over a websocket. The first message is a
// snapshot of the scene; clients may send {"type":"position"} messages to
// move the camera.
func (h *Handler) Events(c *gin.Context) {
	l := requestLogger(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	snapshot, sub := h.scene.Subscribe(eventBuffer)
	defer sub.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	first, err := json.Marshal(dto.ServerMessage{Type: "snapshot", Snapshot: snapshot})
	if err != nil {
		l.Error("failed to encode scene snapshot", "error", err)
		return
	}

	idle := h.streamIdle
	_ = conn.SetReadDeadline(time.Now().Add(idle))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(idle))
	})

	writeErr := make(chan error, 1)
	go func() {
		ping := time.NewTicker(idle * 9 / 10)
		defer ping.Stop()

		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, first); err != nil {
			writeErr <- err
			return
		}
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					writeErr <- err
					return
				}
			case ev, ok := <-sub.C:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
						time.Now().Add(time.Second))
					writeErr <- nil
					return
				}
				b, err := json.Marshal(dto.ServerMessage{Type: string(ev.Type), Event: &ev})
				if err != nil {
					writeErr <- err
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	l.Info("scene stream opened", "remote", c.Request.RemoteAddr, "objects", len(snapshot))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(idle))

		var m dto.ClientMessage
		if err := json.Unmarshal(msg, &m); err != nil || m.Type != "position" {
			continue
		}
		if err := h.validate.Struct(m); err != nil {
			l.Debug("rejected stream position", "error", err)
			continue
		}
		h.viewer.SetPosition(r3.Vector{X: m.X, Y: m.Y, Z: m.Z})
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))

	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}

	l.Info("scene stream closed", "remote", c.Request.RemoteAddr)
}
