package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"monarcade/internal/logger"
	"monarcade/internal/transport"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second

	maxFrameSize = 64 * 1024
	sendBuffer   = 256
)

// Client is one websocket session holding one relay address.
type Client struct {
	Addr string
	Conn *websocket.Conn
	Hub  *Hub

	send chan transport.Frame
	done chan struct{}

	corrMu         sync.Mutex
	correspondents map[string]struct{}
}

func NewClient(addr string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		Addr:           addr,
		Conn:           conn,
		Hub:            hub,
		send:           make(chan transport.Frame, sendBuffer),
		done:           make(chan struct{}),
		correspondents: make(map[string]struct{}),
	}
}

// Run registers the session and pumps frames until the socket dies. The
// welcome (or the refusal) is always the first frame the peer sees.
func (c *Client) Run(ctx context.Context) {
	if err := c.Hub.Register(ctx, c); err != nil {
		logger.Info("address claim refused", "addr", c.Addr, "error", err)
		_ = c.writeFrame(transport.Frame{
			Kind:   transport.KindError,
			Reason: transport.ReasonAddressTaken,
		})
		c.Conn.Close()
		return
	}
	c.enqueue(transport.Frame{Kind: transport.KindWelcome})

	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		close(c.done)
	}()

	c.Conn.SetReadLimit(maxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			logger.Debug("relay read closed", "addr", c.Addr, "error", err)
			return
		}
		var f transport.Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			logger.Warn("unparsable frame dropped", "addr", c.Addr, "error", err)
			continue
		}
		c.Hub.Route(c, f)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			if err := c.writeFrame(f); err != nil {
				logger.Debug("relay write failed", "addr", c.Addr, "error", err)
				return
			}
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeFrame(f transport.Frame) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(f)
}

// enqueue never blocks the hub; a peer that stops draining loses frames,
// which the room protocol recovers from with a snapshot resync.
func (c *Client) enqueue(f transport.Frame) {
	select {
	case <-c.done:
	case c.send <- f:
	default:
		logger.Warn("send queue full, frame dropped", "addr", c.Addr, "kind", f.Kind)
	}
}

func (c *Client) addCorrespondent(addr string) {
	c.corrMu.Lock()
	c.correspondents[addr] = struct{}{}
	c.corrMu.Unlock()
}

func (c *Client) dropCorrespondent(addr string) {
	c.corrMu.Lock()
	delete(c.correspondents, addr)
	c.corrMu.Unlock()
}

func (c *Client) correspondentList() []string {
	c.corrMu.Lock()
	defer c.corrMu.Unlock()
	out := make([]string, 0, len(c.correspondents))
	for a := range c.correspondents {
		out = append(out, a)
	}
	return out
}
