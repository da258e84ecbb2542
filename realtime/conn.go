package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MrEthical07/goFleet/broadcast"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// conn is one authenticated websocket. It satisfies broadcast.Channel.
type conn struct {
	ws       *websocket.Conn
	send     chan []byte
	userID   string
	tenantID string

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn, userID, tenantID string, buffer int) *conn {
	return &conn{
		ws:       ws,
		send:     make(chan []byte, buffer),
		userID:   userID,
		tenantID: tenantID,
	}
}

// Send queues msg for the write pump without blocking.
func (c *conn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return broadcast.ErrChannelClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return broadcast.ErrChannelFull
	}
}

// Close stops the write pump, which then sends a close frame.
func (c *conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *conn) writePump(cfg Config, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("websocket write failed", zap.String("user_id", c.userID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type clientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// readPump blocks until the peer goes away or stops answering pings.
func (c *conn) readPump(ctx context.Context, cfg Config, pub broadcast.Publisher, logger *zap.Logger) {
	c.ws.SetReadLimit(cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read failed", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Debug("ignoring malformed frame", zap.String("user_id", c.userID), zap.Error(err))
			continue
		}
		if frame.Type == broadcast.TypeHeartbeat {
			pub.Publish(ctx, c.tenantID, broadcast.Event{
				Type:    broadcast.TypeDeviceHeartbeat,
				Payload: frame.Payload,
			})
		}
	}
}
