package broker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

// memConn is an in-process duplex transport. The broker reads what the test
// writes with push and writes what the test reads with next.
type memConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newMemConn() *memConn {
	return &memConn{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

var errConnClosed = errors.New("connection closed")

func (c *memConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *memConn) WriteMessage(data []byte) error {
	select {
	case c.out <- data:
		return nil
	case <-c.closed:
		return errConnClosed
	}
}

func (c *memConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// push sends a raw frame as the client.
func (c *memConn) push(t *testing.T, raw string) {
	t.Helper()
	select {
	case c.in <- []byte(raw):
	case <-time.After(time.Second):
		t.Fatal("broker is not draining the connection")
	}
}

// next returns the next frame the broker wrote, as the client sees it.
func (c *memConn) next(t *testing.T) gjson.Result {
	t.Helper()
	select {
	case data := <-c.out:
		return gjson.ParseBytes(data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
		return gjson.Result{}
	}
}

// until discards frames until pred matches one, failing the test on timeout.
func (c *memConn) until(t *testing.T, pred func(gjson.Result) bool) gjson.Result {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-c.out:
			if frame := gjson.ParseBytes(data); pred(frame) {
				return frame
			}
		case <-deadline:
			t.Fatal("timed out waiting for a matching frame")
			return gjson.Result{}
		}
	}
}

// quiet asserts that no frame arrives within the grace period.
func (c *memConn) quiet(t *testing.T, grace time.Duration) {
	t.Helper()
	select {
	case data := <-c.out:
		t.Fatalf("expected silence, got %s", data)
	case <-time.After(grace):
	}
}

func status(s string) func(gjson.Result) bool {
	return func(frame gjson.Result) bool {
		return frame.Get("type").String() == "system" && frame.Get("payload.status").String() == s
	}
}

func messageOn(topic string) func(gjson.Result) bool {
	return func(frame gjson.Result) bool {
		return frame.Get("type").String() == "message" && frame.Get("topic").String() == topic
	}
}

func errorFrame(frame gjson.Result) bool {
	return frame.Get("type").String() == "error"
}

func stateUpdate(frame gjson.Result) bool {
	return frame.Get("type").String() == "system" && frame.Get("payload.type").String() == "state_update"
}

// welcome consumes the connection welcome and returns the assigned id.
func welcome(t *testing.T, c *memConn) string {
	t.Helper()
	frame := c.until(t, func(frame gjson.Result) bool {
		return frame.Get("type").String() == "system" && frame.Get("payload.id").Exists() &&
			frame.Get("payload.message").Exists()
	})
	return frame.Get("payload.id").String()
}
