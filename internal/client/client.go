// Package client is the client side of the chat protocol, shared by the
// sender and receiver commands.
package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"roomchat/internal/protocol"
	"roomchat/internal/transport"
)

const dialTimeout = 10 * time.Second

// ErrServer wraps the text of an err reply from the server.
var ErrServer = errors.New("server error")

// Client is one connection to the chat server.
type Client struct {
	conn transport.Conn
}

// Dial connects to the server at host:port.
func Dial(host string, port int) (*Client, error) {
	conn, err := transport.Dial(net.JoinHostPort(host, strconv.Itoa(port)), dialTimeout)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// New wraps an established connection.
func New(conn transport.Conn) *Client {
	return &Client{conn: conn}
}

// Login performs the handshake as a sender (TagSLogin) or receiver
// (TagRLogin).
func (c *Client) Login(tag protocol.Tag, username string) error {
	_, err := c.Request(protocol.New(tag, username))
	return err
}

// Request sends msg and waits for the server's reply.  An err reply is
// returned together with an error wrapping ErrServer.
func (c *Client) Request(msg protocol.Message) (protocol.Message, error) {
	if err := c.conn.Send(msg); err != nil {
		return protocol.Message{}, err
	}
	reply, err := c.conn.Receive()
	if err != nil {
		return protocol.Message{}, err
	}
	if reply.Tag == protocol.TagErr {
		return reply, fmt.Errorf("%w: %s", ErrServer, reply.Data)
	}
	return reply, nil
}

// Receive waits for the next message from the server.
func (c *Client) Receive() (protocol.Message, error) {
	return c.conn.Receive()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ParseCommand turns one line of sender input into a message.  "/join
// <room>", "/leave" and "/quit" are commands; anything else is text for the
// current room.
func ParseCommand(line string) protocol.Message {
	line = strings.TrimRight(line, "\r\n")
	switch {
	case line == "/leave":
		return protocol.New(protocol.TagLeave, "")
	case line == "/quit":
		return protocol.New(protocol.TagQuit, "")
	case strings.HasPrefix(line, "/join "):
		return protocol.New(protocol.TagJoin, strings.TrimSpace(strings.TrimPrefix(line, "/join ")))
	default:
		return protocol.New(protocol.TagSendAll, line)
	}
}
