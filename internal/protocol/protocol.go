// Package protocol defines the wire format for all client-server communication.
// Each message is a single ASCII line of the form "<tag>:<data>\n".
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// MaxLen bounds the payload of a single message.  A received payload of
// MaxLen bytes or more is rejected by the server as too long.
const MaxLen = 255

// Tag identifies what kind of message is being sent.
type Tag string

const (
	// Client → Server
	TagRLogin  Tag = "rlogin"
	TagSLogin  Tag = "slogin"
	TagJoin    Tag = "join"
	TagLeave   Tag = "leave"
	TagSendAll Tag = "sendall"
	TagQuit    Tag = "quit"

	// Server → Client
	TagOK       Tag = "ok"
	TagErr      Tag = "err"
	TagDelivery Tag = "delivery"
)

var (
	// ErrEmpty is returned by Parse for a blank line.
	ErrEmpty = errors.New("protocol: no message received")
	// ErrMalformed is returned by Parse for a line without a tag separator
	// or with a line break inside it.
	ErrMalformed = errors.New("protocol: invalid message received")
	// ErrUnencodable is returned by Encode when the data holds a line break
	// or the tag holds a colon or a line break.
	ErrUnencodable = errors.New("protocol: message cannot be encoded on one line")
)

// Message is the unit of protocol exchange and of queued delivery.
type Message struct {
	Tag  Tag
	Data string
}

// New returns a Message.  Construction never fails; an empty tag or empty
// data is legal.
func New(tag Tag, data string) Message {
	return Message{Tag: tag, Data: data}
}

// TooLong reports whether the payload reaches the MaxLen bound.
func (m Message) TooLong() bool {
	return len(m.Data) >= MaxLen
}

func (m Message) String() string {
	return string(m.Tag) + ":" + m.Data
}

// Encode returns the newline-terminated wire form of m.
func (m Message) Encode() ([]byte, error) {
	if strings.ContainsAny(m.Data, "\r\n") || strings.ContainsAny(string(m.Tag), ":\r\n") {
		return nil, ErrUnencodable
	}
	line := make([]byte, 0, len(m.Tag)+len(m.Data)+2)
	line = append(line, string(m.Tag)...)
	line = append(line, ':')
	line = append(line, m.Data...)
	return append(line, '\n'), nil
}

// Parse decodes one line.  The tag ends at the first colon; the data may
// itself contain colons.  A trailing "\n" or "\r\n" is ignored; any other
// line break makes the line malformed.
func Parse(line string) (Message, error) {
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return Message{}, ErrEmpty
	}
	if strings.ContainsAny(line, "\r\n") {
		return Message{}, ErrMalformed
	}
	tag, data, ok := strings.Cut(line, ":")
	if !ok {
		return Message{}, ErrMalformed
	}
	return Message{Tag: Tag(tag), Data: data}, nil
}

// ---------------------------------------------------------------------------
// Delivery payloads
// ---------------------------------------------------------------------------

// Delivery is the decoded payload of a TagDelivery message.
type Delivery struct {
	Room   string
	Sender string
	Text   string
}

// FormatDelivery builds the "<room>:<sender>:<text>" payload.
func FormatDelivery(room, sender, text string) string {
	return room + ":" + sender + ":" + text
}

// ParseDelivery splits a delivery payload on its first two colons only, so
// the text may contain colons.
func ParseDelivery(data string) (Delivery, error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 {
		return Delivery{}, fmt.Errorf("protocol: delivery %q: %w", data, ErrMalformed)
	}
	return Delivery{Room: parts[0], Sender: parts[1], Text: parts[2]}, nil
}
