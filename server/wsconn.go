package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a websocket to the broker's transport contract. Gorilla
// allows at most one concurrent writer, so data frames and keepalive pings
// share a mutex. The ping loop also polices liveness: a peer that stops
// answering pings misses its read deadline and the broker tears the session
// down through the normal read-error path.
type wsConn struct {
	ws        *websocket.Conn
	writeWait time.Duration

	mu   sync.Mutex
	quit chan struct{}
	once sync.Once
}

func newWSConn(ws *websocket.Conn, writeWait, pongWait time.Duration) *wsConn {
	c := &wsConn{
		ws:        ws,
		writeWait: writeWait,
		quit:      make(chan struct{}),
	}

	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.pingLoop(pongWait * 9 / 10)
	return c
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.quit) })
	return c.ws.Close()
}

func (c *wsConn) pingLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-c.quit:
			return
		}
	}
}
