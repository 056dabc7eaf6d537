// Package eventlog keeps the broker's append-only record of inbound protocol
// frames. Every record is written as one JSON object per line to a durable
// file and retained in a bounded in-memory ring for history replay. The file
// is an audit artifact, not a source of truth for live state.
package eventlog

import (
	"io"
	"log/slog"
	"os"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/casualjim/agora/pkg/slogx"
	"github.com/casualjim/agora/wire"
)

// DefaultCapacity bounds how many records the in-memory ring retains for
// replay. The file on disk keeps growing regardless.
const DefaultCapacity = 1000

// Log is an append-only event log with a bounded replay window. All methods
// are safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	out  io.WriteCloser
	ring []wire.Record
	next int
	full bool
}

// Open creates or appends to the JSONL log file at path. The ring retains up
// to capacity records for replay; capacity <= 0 selects DefaultCapacity.
func Open(path string, capacity int) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l := NewMemory(capacity)
	l.out = f
	return l, nil
}

// NewMemory returns a log without a backing file. Used in tests and for
// brokers that only need replay, not a durable artifact.
func NewMemory(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{ring: make([]wire.Record, capacity)}
}

// Append records one inbound frame. Write errors on the backing file are
// logged and swallowed: losing an audit line must not fail dispatch.
func (l *Log) Append(rec wire.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ring[l.next] = rec
	l.next++
	if l.next == len(l.ring) {
		l.next = 0
		l.full = true
	}

	if l.out == nil {
		return
	}
	line, err := json.Marshal(rec)
	if err != nil {
		slog.Warn("failed to encode log record", slogx.Error(err), slogx.LoggerName("eventlog"))
		return
	}
	if _, err := l.out.Write(append(line, '\n')); err != nil {
		slog.Warn("failed to append log record", slogx.Error(err), slogx.LoggerName("eventlog"))
	}
}

// Tail returns the most recent n records in arrival order. It returns fewer
// when the log holds fewer, and at most the ring capacity.
func (l *Log) Tail(n int) []wire.Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	size := l.next
	if l.full {
		size = len(l.ring)
	}
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}

	out := make([]wire.Record, 0, n)
	start := l.next - n
	if start < 0 {
		start += len(l.ring)
	}
	for i := range n {
		out = append(out, l.ring[(start+i)%len(l.ring)])
	}
	return out
}

// Len reports how many records the replay window currently holds.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return len(l.ring)
	}
	return l.next
}

// Close closes the backing file, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		return nil
	}
	err := l.out.Close()
	l.out = nil
	return err
}
