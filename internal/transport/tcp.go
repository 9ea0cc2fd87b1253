package transport

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"roomchat/internal/protocol"
)

// lineConn speaks newline-delimited messages over a stream socket.
type lineConn struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	writeTimeout time.Duration

	wmu sync.Mutex
}

// NewLineConn wraps conn.  A positive writeTimeout bounds every Send so a
// stuck peer cannot block its session forever.
func NewLineConn(conn net.Conn, writeTimeout time.Duration) Conn {
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, protocol.MaxLen+8), MaxLineBytes)
	return &lineConn{
		conn:         conn,
		scanner:      sc,
		writeTimeout: writeTimeout,
	}
}

// Dial connects to a line server at addr.
func Dial(addr string, timeout time.Duration) (Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return NewLineConn(conn, 0), nil
}

func (c *lineConn) Send(msg protocol.Message) error {
	line, err := msg.Encode()
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err := c.conn.Write(line); err != nil {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return nil
}

func (c *lineConn) Receive() (protocol.Message, error) {
	if !c.scanner.Scan() {
		err := c.scanner.Err()
		if err == nil {
			err = io.EOF
		}
		return protocol.Message{}, fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return protocol.Parse(c.scanner.Text())
}

func (c *lineConn) Close() error {
	return c.conn.Close()
}

func (c *lineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// ---------------------------------------------------------------------------
// Listener
// ---------------------------------------------------------------------------

type tcpListener struct {
	ln           net.Listener
	writeTimeout time.Duration
}

// ListenTCP opens a TCP listener on addr.
func ListenTCP(addr string, writeTimeout time.Duration) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &tcpListener{ln: ln, writeTimeout: writeTimeout}, nil
}

func (l *tcpListener) Accept() (Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return NewLineConn(conn, l.writeTimeout), nil
}

func (l *tcpListener) Close() error { return l.ln.Close() }

func (l *tcpListener) Addr() string { return l.ln.Addr().String() }
