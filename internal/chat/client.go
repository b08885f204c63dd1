package chat

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

var (
	errClientClosed   = errors.New("client closed")
	errSendBufferFull = errors.New("send buffer full")
)

// Client is one websocket connection speaking the chat protocol.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan any
	closed chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// Send enqueues an event for the write pump. A closed client or a full
// buffer reports an error so the hub prunes the connection.
func (c *Client) Send(event any) error {
	select {
	case <-c.closed:
		return errClientClosed
	default:
	}
	select {
	case c.send <- event:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *Client) markClosed() {
	c.once.Do(func() { close(c.closed) })
}

// ServeWs handles the websocket upgrade and runs the client loop. The token
// is validated before the upgrade; chat identity itself is the one asserted
// at joinChat, matching the wire protocol.
func ServeWs(hub *Hub, logger *zap.Logger, validateToken func(token string) (userID string, err error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		if _, err := validateToken(token); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			send:   make(chan any, sendBufferSize),
			closed: make(chan struct{}),
			logger: logger,
		}
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.markClosed()
		c.hub.ConnectionClosed(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var in Inbound
		if err := c.conn.ReadJSON(&in); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		switch in.Action {
		case ActionJoinChat:
			c.hub.Join(c, in.BroadcastID, in.UserID, in.UserName, in.IsHost)
		case ActionSendMessage:
			if err := c.hub.SendMessage(c, in.BroadcastID, in.UserID, in.Message); err != nil {
				_ = c.Send(newErrorEvent(err.Error()))
			}
		case ActionLeaveChat:
			c.hub.Leave(c, in.BroadcastID)
		default:
			c.logger.Warn("unknown chat action", zap.String("action", in.Action))
			_ = c.Send(newErrorEvent("unknown action"))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		c.markClosed()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
