package server

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"roomchat/internal/chat"
	"roomchat/internal/protocol"
	"roomchat/internal/transport"
)

// Reply texts sent to clients.
const (
	msgLoggedIn        = "Logged in as: "
	msgJoined          = "Successfully joined room"
	msgJoinedNew       = "Successfully joined new room"
	msgLeft            = "Successfully left room"
	msgBroadcast       = "Message broadcasted in room"
	msgQuit            = "Quitting now"
	msgMustLogin       = "Sender/Receiver must first log in"
	msgNotInRoom       = "Not a member of a room, so can't send message"
	msgReceiverNoJoin  = "Invalid message as receiver has not joined a room"
	msgTooLong         = "Message is too long"
	msgInvalidTag      = "Invalid message tag"
	msgInvalidReceived = "Invalid message received"
	msgNoneReceived    = "No message received"
)

// session is the lifecycle of one client connection:
//
//	LoggingIn → ReceiverLoop | SenderLoop → Terminated
//
// It owns its connection and its User for its whole lifetime.  The only
// references to the User held elsewhere are room memberships, and the
// session removes those before it terminates.
type session struct {
	id     string
	server *Server
	conn   transport.Conn
	logger *slog.Logger

	user *chat.User
	room *chat.Room // current room; nil until a join succeeds
}

func newSession(srv *Server, conn transport.Conn) *session {
	id := uuid.NewString()
	return &session{
		id:     id,
		server: srv,
		conn:   conn,
		logger: srv.logger.With("session", id, "remote", conn.RemoteAddr()),
	}
}

// run drives the session to completion.
func (s *session) run(ctx context.Context) {
	defer s.terminate()

	tag, ok := s.login()
	if !ok {
		return
	}
	switch tag {
	case protocol.TagRLogin:
		s.receiverLoop(ctx)
	case protocol.TagSLogin:
		s.senderLoop()
	}
}

// login reads the handshake and replies to it.
func (s *session) login() (protocol.Tag, bool) {
	msg, err := s.conn.Receive()
	if err != nil {
		s.replyReceiveError(err)
		return "", false
	}
	if msg.Tag != protocol.TagRLogin && msg.Tag != protocol.TagSLogin {
		s.reply(protocol.TagErr, msgMustLogin)
		return "", false
	}
	if !s.reply(protocol.TagOK, msgLoggedIn+msg.Data) {
		return "", false
	}

	s.user = chat.NewUser(msg.Data)
	s.logger = s.logger.With("user", s.user.Name)
	s.logger.Info("logged in", "role", roleOf(msg.Tag))
	return msg.Tag, true
}

// receiverLoop joins the requested room and then forwards every queued
// delivery until a send fails.  Receivers send no further commands.
func (s *session) receiverLoop(ctx context.Context) {
	msg, err := s.conn.Receive()
	if err != nil {
		s.replyReceiveError(err)
		return
	}
	if msg.Tag == protocol.TagJoin {
		s.join(msg.Data)
		if !s.reply(protocol.TagOK, msgJoined) {
			return
		}
	} else if !s.reply(protocol.TagErr, msgReceiverNoJoin) {
		return
	}

	timeout := s.server.cfg.DequeueTimeout
	for {
		out, ok := s.user.Queue.Dequeue(ctx, timeout)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if err := s.conn.Send(out); err != nil {
			if errors.Is(err, protocol.ErrUnencodable) {
				s.logger.Warn("dropped unencodable delivery", "error", err)
				continue
			}
			s.logger.Debug("delivery failed", "error", err)
			return
		}
	}
}

// senderLoop executes commands until the sender quits or the connection
// fails.
func (s *session) senderLoop() {
	for {
		msg, err := s.conn.Receive()
		if err != nil {
			if !s.replyReceiveError(err) || !transport.IsRecoverable(err) {
				return
			}
			continue
		}
		if !s.handleSenderMessage(msg) {
			return
		}
	}
}

// handleSenderMessage acts on one sender command and reports whether the
// session continues.
func (s *session) handleSenderMessage(msg protocol.Message) bool {
	switch {
	case msg.Tag == protocol.TagErr:
		s.logger.Warn("peer reported error", "error", msg.Data)
		return false

	case msg.TooLong():
		return s.reply(protocol.TagErr, msgTooLong)

	case msg.Tag == protocol.TagQuit:
		s.reply(protocol.TagOK, msgQuit)
		return false

	case s.room == nil:
		if msg.Tag != protocol.TagJoin {
			return s.reply(protocol.TagErr, msgNotInRoom)
		}
		s.join(msg.Data)
		return s.reply(protocol.TagOK, msgJoined)

	case msg.Tag == protocol.TagSendAll:
		s.server.broadcast(s.room, s.user.Name, msg.Data)
		return s.reply(protocol.TagOK, msgBroadcast)

	case msg.Tag == protocol.TagLeave:
		s.leave()
		return s.reply(protocol.TagOK, msgLeft)

	case msg.Tag == protocol.TagJoin:
		s.leave()
		s.join(msg.Data)
		return s.reply(protocol.TagOK, msgJoinedNew)

	default:
		return s.reply(protocol.TagErr, msgInvalidTag)
	}
}

func (s *session) join(name string) {
	s.room = s.server.rooms.FindOrCreate(name)
	s.room.AddMember(s.user)
	s.logger.Debug("joined room", "room", name)
}

func (s *session) leave() {
	if s.room == nil {
		return
	}
	s.room.RemoveMember(s.user)
	s.logger.Debug("left room", "room", s.room.Name())
	s.room = nil
}

// reply sends one response and reports whether it was delivered.
func (s *session) reply(tag protocol.Tag, text string) bool {
	if err := s.conn.Send(protocol.New(tag, text)); err != nil {
		s.logger.Debug("reply failed", "tag", tag, "error", err)
		return false
	}
	return true
}

// replyReceiveError tells the peer why its message was not accepted.
func (s *session) replyReceiveError(err error) bool {
	if errors.Is(err, protocol.ErrEmpty) {
		return s.reply(protocol.TagErr, msgNoneReceived)
	}
	if !transport.IsRecoverable(err) {
		s.logger.Debug("receive failed", "error", err)
	}
	return s.reply(protocol.TagErr, msgInvalidReceived)
}

// terminate releases everything the session owns.  Messages still queued
// for the user are discarded with it.
func (s *session) terminate() {
	if s.user != nil {
		s.leave()
		s.logger.Info("session ended", "dropped", s.user.Queue.Len())
	}
	s.conn.Close()
}

func roleOf(tag protocol.Tag) string {
	if tag == protocol.TagRLogin {
		return "receiver"
	}
	return "sender"
}
