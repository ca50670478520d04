package wire

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leonardotrapani/factstream/internal/model"
)

const closeTimeout = 2 * time.Second

// Client speaks the streaming protocol to a factstream server
type Client struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closed  bool
}

// Dial connects to a stream endpoint such as ws://localhost:8000/api/stream
func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			log.Printf("wire: dial failed with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Start sends a start command. A nil format keeps the server's defaults.
func (c *Client) Start(format *model.AudioFormatUpdate) error {
	return c.writeJSON(Command{Command: CommandStart, AudioFormat: format})
}

func (c *Client) Stop() error {
	return c.writeJSON(Command{Command: CommandStop})
}

// SendAudio sends one binary audio frame
func (c *Client) SendAudio(chunk []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

// Read blocks for the next server message
func (c *Client) Read() (Message, error) {
	var m Message
	if err := c.conn.ReadJSON(&m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// Close sends a close frame and releases the connection
func (c *Client) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
	return c.conn.Close()
}

// IsNormalClose reports whether err is the server closing the stream cleanly
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
