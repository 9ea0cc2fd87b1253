package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"roomchat/internal/protocol"
)

// wsConn carries one message per WebSocket text frame.  A trailing newline
// in the frame is optional.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	wmu sync.Mutex
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	conn.SetReadLimit(MaxLineBytes)
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

// DialWebSocket connects to a WebSocket endpoint such as
// "ws://localhost:8081/ws".
func DialWebSocket(url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	return newWSConn(conn, 0), nil
}

func (c *wsConn) Send(msg protocol.Message) error {
	frame, err := msg.Encode()
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return nil
}

func (c *wsConn) Receive() (protocol.Message, error) {
	kind, data, err := c.conn.ReadMessage()
	if err != nil {
		return protocol.Message{}, fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if kind != websocket.TextMessage {
		return protocol.Message{}, protocol.ErrMalformed
	}
	return protocol.Parse(string(data))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// ---------------------------------------------------------------------------
// Listener
// ---------------------------------------------------------------------------

// WSListener serves a WebSocket upgrade endpoint and hands every upgraded
// connection to Accept.
type WSListener struct {
	ln           net.Listener
	srv          *http.Server
	upgrader     websocket.Upgrader
	writeTimeout time.Duration

	conns     chan Conn
	done      chan struct{}
	closeOnce sync.Once
}

// WSOptions configures ListenWebSocket.
type WSOptions struct {
	Path           string
	AllowedOrigins []string // empty allows every origin
	WriteTimeout   time.Duration
}

// ListenWebSocket opens addr and starts serving the upgrade endpoint.
func ListenWebSocket(addr string, opts WSOptions) (*WSListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	l := newWSListener(ln, opts)
	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Close()
		}
	}()
	return l, nil
}

func newWSListener(ln net.Listener, opts WSOptions) *WSListener {
	path := opts.Path
	if path == "" {
		path = "/ws"
	}
	l := &WSListener{
		ln:           ln,
		writeTimeout: opts.WriteTimeout,
		conns:        make(chan Conn),
		done:         make(chan struct{}),
	}
	l.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.serveWS)
	l.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return l
}

func (l *WSListener) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := newWSConn(ws, l.writeTimeout)
	select {
	case l.conns <- c:
	case <-l.done:
		c.Close()
	}
}

func (l *WSListener) Accept() (Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, ErrClosed
	}
}

func (l *WSListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.srv.Close()
	})
	return err
}

func (l *WSListener) Addr() string { return l.ln.Addr().String() }

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimSpace(o))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
