// Receiver client.
//
//	receiver <host> <port> <username> <room>
//
// Logs in as a receiver, joins one room and prints every delivery as
// "sender: text" until interrupted or disconnected.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"roomchat/internal/client"
	"roomchat/internal/protocol"
	"roomchat/internal/transport"
)

var (
	peerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	if len(os.Args) != 5 {
		fmt.Fprintf(os.Stderr, "Usage: %s <host> <port> <username> <room>\n", os.Args[0])
		os.Exit(1)
	}
	host, username, room := os.Args[1], os.Args[3], os.Args[4]
	port, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q\n", os.Args[2])
		os.Exit(1)
	}

	conn, err := client.Dial(host, port)
	if err != nil {
		fail("connect: %v", err)
	}
	defer conn.Close()

	if err := conn.Login(protocol.TagRLogin, username); err != nil {
		conn.Close()
		fail("login: %v", err)
	}
	if _, err := conn.Request(protocol.New(protocol.TagJoin, room)); err != nil {
		conn.Close()
		fail("join: %v", err)
	}

	for {
		msg, err := conn.Receive()
		if transport.IsRecoverable(err) {
			continue
		}
		if err != nil {
			conn.Close()
			fail("disconnected: %v", err)
		}
		if msg.Tag != protocol.TagDelivery {
			continue
		}
		d, err := protocol.ParseDelivery(msg.Data)
		if err != nil {
			continue
		}
		fmt.Println(peerStyle.Render(d.Sender) + ": " + d.Text)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf(format, args...)))
	os.Exit(1)
}
