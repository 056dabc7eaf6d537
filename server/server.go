package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fogfish/opts"
	"github.com/gorilla/websocket"

	"github.com/casualjim/agora/broker"
	"github.com/casualjim/agora/pkg/slogx"
)

const (
	DefaultAddr = ":8080"
	DefaultPath = "/ws"

	defaultWriteWait = 10 * time.Second
	defaultPongWait  = 55 * time.Second
	defaultReadLimit = 1 << 20
)

// Server construction options.
var (
	// WithAddr sets the listen address.
	WithAddr = opts.ForName[Server, string]("addr")
	// WithPath sets the websocket endpoint path.
	WithPath = opts.ForName[Server, string]("path")
	// WithWriteWait bounds how long a single frame write may take.
	WithWriteWait = opts.ForName[Server, time.Duration]("writeWait")
	// WithPongWait bounds how long a peer may go without answering pings.
	WithPongWait = opts.ForName[Server, time.Duration]("pongWait")
	// WithReadLimit caps the size of a single inbound frame.
	WithReadLimit = opts.ForName[Server, int64]("readLimit")
)

// WithCheckOrigin overrides the upgrade origin policy. The default accepts
// every origin, which suits simulations where agents connect from anywhere.
func WithCheckOrigin(check func(*http.Request) bool) opts.Option[Server] {
	return opts.Type[Server](func(s *Server) error {
		if check == nil {
			return errors.New("origin check is required")
		}
		s.checkOrigin = check
		return nil
	})
}

// Server accepts websocket connections and hands them to a broker.
type Server struct {
	addr        string
	path        string
	writeWait   time.Duration
	pongWait    time.Duration
	readLimit   int64
	checkOrigin func(*http.Request) bool

	broker     *broker.Broker
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// New builds a server front for the given broker.
func New(b *broker.Broker, options ...opts.Option[Server]) *Server {
	s := &Server{
		addr:        DefaultAddr,
		path:        DefaultPath,
		writeWait:   defaultWriteWait,
		pongWait:    defaultPongWait,
		readLimit:   defaultReadLimit,
		checkOrigin: func(*http.Request) bool { return true },
		broker:      b,
	}
	if err := opts.Apply(s, options); err != nil {
		panic(err)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.serveWS)
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the routing mux, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	slog.Info("listening",
		slog.String("addr", s.addr), slog.String("path", s.path), slogx.LoggerName("server"))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, then tears down the broker sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.broker.Shutdown(ctx))
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed",
			slogx.Error(err), slog.String("remote", r.RemoteAddr), slogx.LoggerName("server"))
		return
	}
	ws.SetReadLimit(s.readLimit)

	// the handler returns while the session lives on, so the request context
	// must not cancel the read loop
	s.broker.Attach(context.WithoutCancel(r.Context()), newWSConn(ws, s.writeWait, s.pongWait))
}
