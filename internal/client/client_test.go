package client_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomchat/internal/client"
	"roomchat/internal/protocol"
	"roomchat/internal/transport"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want protocol.Message
	}{
		{line: "/join general", want: protocol.New(protocol.TagJoin, "general")},
		{line: "/join  spaced out ", want: protocol.New(protocol.TagJoin, "spaced out")},
		{line: "/leave", want: protocol.New(protocol.TagLeave, "")},
		{line: "/quit\n", want: protocol.New(protocol.TagQuit, "")},
		{line: "hello: world", want: protocol.New(protocol.TagSendAll, "hello: world")},
		{line: "/joinus", want: protocol.New(protocol.TagSendAll, "/joinus")},
		{line: "/leave now", want: protocol.New(protocol.TagSendAll, "/leave now")},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, client.ParseCommand(tt.line))
		})
	}
}

func TestClient_Request(t *testing.T) {
	a, b := net.Pipe()
	c := client.New(transport.NewLineConn(a, time.Second))
	peer := transport.NewLineConn(b, time.Second)
	defer c.Close()
	defer peer.Close()

	go func() {
		for {
			msg, err := peer.Receive()
			if err != nil {
				return
			}
			if msg.Tag == protocol.TagSLogin {
				peer.Send(protocol.New(protocol.TagOK, "Logged in as: "+msg.Data))
			} else {
				peer.Send(protocol.New(protocol.TagErr, "Not a member of a room, so can't send message"))
			}
		}
	}()

	require.NoError(t, c.Login(protocol.TagSLogin, "alice"))

	reply, err := c.Request(protocol.New(protocol.TagSendAll, "hi"))
	require.ErrorIs(t, err, client.ErrServer)
	assert.Contains(t, err.Error(), "Not a member of a room")
	assert.Equal(t, protocol.TagErr, reply.Tag)
}
