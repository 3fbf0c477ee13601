package realtime

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type WebSocketConn struct {
	Conn *websocket.Conn
}

func NewWebSocketConn(c *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{Conn: c}
}

// Serve expects the upgrade route to sit behind the JWT middleware so that
// "userId" is already in the connection locals.
func Serve(hub *Hub, log *zap.Logger) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		raw, _ := c.Locals("userId").(string)
		userID, err := uuid.Parse(raw)
		if err != nil {
			log.Warn("ws: missing user", zap.String("userId", raw))
			_ = c.Close()
			return
		}

		client := &Client{
			ID:     uuid.NewString(),
			UserID: userID,
			Conn:   NewWebSocketConn(c),
			Send:   make(chan []byte, 256),
		}

		hub.RegisterClient(client)
		defer hub.UnregisterClient(client)

		go func() {
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Debug("ws write", zap.Stringer("user", userID), zap.Error(err))
					return
				}
			}
		}()

		// Reads only keep the connection alive; clients push over HTTP.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				log.Debug("ws closed", zap.Stringer("user", userID), zap.Error(err))
				return
			}
		}
	}
}
