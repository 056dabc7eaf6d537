package broker

import (
	"sync"
)

// Handle is the stable per-connection key used by the subscription index.
// Handles never change for the lifetime of a connection, unlike the
// participant's identity string.
type Handle uint64

// Conn is the duplex byte-stream transport a participant is attached over.
// ReadMessage blocks until a full frame arrives; both Read and Write return
// an error once the underlying transport is closed.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Participant is one connected session: a stable handle, a mutable identity,
// and the outbound side of its transport.
type Participant struct {
	handle Handle
	conn   Conn

	mu       sync.RWMutex
	id       string
	elevated bool

	send chan []byte
	quit chan struct{}
	once sync.Once

	// detach guards the broker-side cleanup so UnsubscribeAll runs exactly
	// once no matter which loop notices the close first.
	detach sync.Once
}

func newParticipant(handle Handle, id string, conn Conn, queueSize int) *Participant {
	return &Participant{
		handle: handle,
		conn:   conn,
		id:     id,
		send:   make(chan []byte, queueSize),
		quit:   make(chan struct{}),
	}
}

// Handle returns the stable connection handle.
func (p *Participant) Handle() Handle { return p.handle }

// ID returns the participant's current identity.
func (p *Participant) ID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.id
}

// Elevated reports whether the participant holds the admin identity.
func (p *Participant) Elevated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.elevated
}

// setIdentity rewrites the identity and elevation in one step, so concurrent
// fan-outs never observe a half-applied identify.
func (p *Participant) setIdentity(id string, elevated bool) {
	p.mu.Lock()
	p.id = id
	p.elevated = elevated
	p.mu.Unlock()
}

// deliver enqueues an already-serialized frame for the writer goroutine. It
// never blocks: a full queue means the consumer is not keeping up, and the
// caller is expected to evict it.
func (p *Participant) deliver(data []byte) bool {
	select {
	case <-p.quit:
		return false
	case p.send <- data:
		return true
	default:
		return false
	}
}

// writeLoop drains the outbound queue onto the transport. It owns all writes
// to the connection; a write error terminates the session.
func (p *Participant) writeLoop(onDead func(*Participant)) {
	for {
		select {
		case data := <-p.send:
			if err := p.conn.WriteMessage(data); err != nil {
				onDead(p)
				return
			}
		case <-p.quit:
			return
		}
	}
}

// close shuts the transport down exactly once. Safe to call from any
// goroutine, including the write loop itself.
func (p *Participant) close() {
	p.once.Do(func() {
		close(p.quit)
		_ = p.conn.Close()
	})
}
