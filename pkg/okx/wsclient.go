package okx

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WSClient handles the websocket connection to the OKX public feed and
// message routing. Keep-alive pings from upstream are answered inline; every
// other message goes to the registered handler.
type WSClient struct {
	url     string
	args    []SubscriptionArg
	conn    *websocket.Conn
	handler func([]byte)
	logger  *zap.Logger
}

func NewWSClient(url string, args []SubscriptionArg, logger *zap.Logger) *WSClient {
	return &WSClient{
		url:    url,
		args:   args,
		logger: logger,
	}
}

// SetMessageHandler sets the function to handle incoming data messages.
func (c *WSClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// Connect establishes the websocket connection and subscribes to the
// configured candle channels. It does not start the listener.
func (c *WSClient) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		c.logger.Error("failed to connect to websocket", zap.String("url", c.url), zap.Error(err))
		return err
	}
	c.conn = conn
	c.logger.Info("websocket connected", zap.String("url", c.url))

	return c.subscribe()
}

func (c *WSClient) subscribe() error {
	subMsg := map[string]interface{}{
		"op":   "subscribe",
		"args": c.args,
	}
	if err := c.conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("websocket subscribe failed: %w", err)
	}
	return nil
}

// Listen reads messages until the connection drops, then reconnects and
// resubscribes indefinitely.
func (c *WSClient) Listen() {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Error("websocket read error", zap.Error(err))

			for {
				time.Sleep(3 * time.Second)
				if err := c.reconnectAndResubscribe(); err != nil {
					c.logger.Warn("retrying reconnect...")
					continue
				}
				c.logger.Info("reconnected successfully")
				break
			}
			continue
		}

		if c.replyPing(msg) {
			continue
		}
		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// replyPing answers an upstream {"ping": n} with {"pong": n} immediately and
// reports whether msg was a ping.
func (c *WSClient) replyPing(msg []byte) bool {
	var ping struct {
		Ping *int64 `json:"ping"`
	}
	if err := json.Unmarshal(msg, &ping); err != nil || ping.Ping == nil {
		return false
	}
	if err := c.conn.WriteJSON(map[string]int64{"pong": *ping.Ping}); err != nil {
		c.logger.Warn("failed to send pong", zap.Error(err))
	}
	return true
}

func (c *WSClient) reconnectAndResubscribe() error {
	newConn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}

	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = newConn

	return c.subscribe()
}

// Close tears the connection down; the listener's reconnect loop is expected
// to be abandoned with the process.
func (c *WSClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
