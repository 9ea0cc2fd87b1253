// Package server implements the multi-room chat server.
//
// Concurrency overview
// --------------------
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Accept loop (one per listener: TCP, optional WS)       │
//	│  Accepts connections; spawns one session goroutine each.│
//	└───────────────────┬─────────────────────────────────────┘
//	                    │
//	                    ▼
//	┌─────────────────────────────────────────────────────────┐
//	│  Session goroutine (per connection)                     │
//	│  Login handshake, then a sender loop (commands →        │
//	│  Registry/Room) or a receiver loop (Queue → connection).│
//	└─────────────────────────────────────────────────────────┘
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Registry (sync.Mutex)  name → Room, find-or-create     │
//	│  Room     (sync.Mutex)  members, broadcast              │
//	│  Queue    (mutex+token) per-user pending deliveries     │
//	└─────────────────────────────────────────────────────────┘
//
//	┌─────────────────────────────────────────────────────────┐
//	│  Relay (optional, NATS)                                 │
//	│  Mirrors broadcasts between server instances.           │
//	└─────────────────────────────────────────────────────────┘
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"roomchat/internal/chat"
	"roomchat/internal/relay"
	"roomchat/internal/transport"
)

// Relay mirrors local broadcasts to other server instances.
type Relay interface {
	Publish(room, sender, text string) error
	Subscribe(deliver relay.DeliverFunc) error
}

// Option configures a Server.
type Option func(*Server)

// WithRelay enables cross-instance broadcast mirroring.
func WithRelay(r Relay) Option {
	return func(s *Server) { s.relay = r }
}

// Server ties together the listeners, the room Registry and the sessions.
type Server struct {
	cfg    Config
	rooms  *Registry
	relay  Relay
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners []transport.Listener
	closing   bool

	sessions sync.WaitGroup
}

// New creates a Server.  cfg is sanitized; a nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Server {
	cfg.Sanitize()
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		rooms:  NewRegistry(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rooms returns the server's room registry.
func (s *Server) Rooms() *Registry { return s.rooms }

// ListenAndServe opens the configured listeners and runs their accept loops.
// A listen failure is returned immediately.  It returns nil after Shutdown,
// or the first accept error otherwise.
func (s *Server) ListenAndServe() error {
	tcp, err := transport.ListenTCP(s.cfg.Addr, s.cfg.WriteTimeout)
	if err != nil {
		return err
	}
	lns := []transport.Listener{tcp}

	if s.cfg.WebSocket.Addr != "" {
		ws, err := transport.ListenWebSocket(s.cfg.WebSocket.Addr, transport.WSOptions{
			Path:           s.cfg.WebSocket.Path,
			AllowedOrigins: s.cfg.WebSocket.AllowedOrigins,
			WriteTimeout:   s.cfg.WriteTimeout,
		})
		if err != nil {
			tcp.Close()
			return err
		}
		lns = append(lns, ws)
	}

	if s.relay != nil {
		if err := s.relay.Subscribe(s.deliverRemote); err != nil {
			for _, ln := range lns {
				ln.Close()
			}
			return err
		}
	}

	// An accept failure on one listener takes the others down with it.
	var g errgroup.Group
	for _, ln := range lns {
		g.Go(func() error {
			err := s.Serve(ln)
			if err != nil {
				for _, other := range lns {
					other.Close()
				}
			}
			return err
		})
	}
	return g.Wait()
}

// Serve accepts connections on ln and runs one detached session goroutine
// per connection.  An accept failure ends the loop: it returns nil when the
// server is shutting down and the error otherwise.
func (s *Server) Serve(ln transport.Listener) error {
	if !s.track(ln) {
		ln.Close()
		return nil
	}
	s.logger.Info("listening", "addr", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shuttingDown() {
				return nil
			}
			s.logger.Error("accept failed", "addr", ln.Addr(), "error", err)
			return fmt.Errorf("server: accept on %s: %w", ln.Addr(), err)
		}
		if s.shuttingDown() {
			conn.Close()
			continue
		}

		s.sessions.Add(1)
		go s.serveConn(conn)
	}
}

// serveConn runs one session.  The connection is closed when the server
// shuts down so a session blocked in Receive unblocks.
func (s *Server) serveConn(conn transport.Conn) {
	defer s.sessions.Done()

	stop := context.AfterFunc(s.ctx, func() { conn.Close() })
	defer stop()

	newSession(s, conn).run(s.ctx)
}

// broadcast fans text out to the local room and, if configured, to other
// instances.
func (s *Server) broadcast(room *chat.Room, sender, text string) {
	n := room.Broadcast(sender, text)
	s.logger.Debug("broadcast", "room", room.Name(), "sender", sender, "recipients", n)

	if s.relay == nil {
		return
	}
	if err := s.relay.Publish(room.Name(), sender, text); err != nil {
		s.logger.Warn("relay publish failed", "room", room.Name(), "error", err)
	}
}

// deliverRemote injects a broadcast relayed from another instance.
func (s *Server) deliverRemote(room, sender, text string) {
	s.rooms.FindOrCreate(room).Broadcast(sender, text)
}

// Shutdown stops accepting, ends every session and waits for them to finish
// or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	lns := s.listeners
	s.listeners = nil
	s.mu.Unlock()

	var errs []error
	for _, ln := range lns {
		if err := ln.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("server: waiting for sessions: %w", ctx.Err()))
	}
	return errors.Join(errs...)
}

func (s *Server) track(ln transport.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.listeners = append(s.listeners, ln)
	return true
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}
