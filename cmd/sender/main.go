// Sender TUI client.
//
//	sender <host> <port> <username>
//
// Logs in as a sender, then turns every input line into one request:
// "/join <room>", "/leave", "/quit", or text for the current room.  Each
// request runs as a tea.Cmd that blocks for the server's reply, so the
// Bubbletea event loop never waits on the network.  Input is ignored while
// a request is in flight because the protocol has one reply per request.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"roomchat/internal/client"
	"roomchat/internal/protocol"
)

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("82")
	red    = lipgloss.Color("196")
	yellow = lipgloss.Color("220")
	gray   = lipgloss.Color("241")
	white  = lipgloss.Color("255")
	orange = lipgloss.Color("214")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Background(purple).
			Foreground(white).
			Padding(0, 1)

	footerBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.NormalBorder(), true, false, false, false).
				BorderForeground(gray).
				Padding(0, 1)

	okStyle     = lipgloss.NewStyle().Foreground(green)
	errorStyle  = lipgloss.NewStyle().Foreground(red)
	sysStyle    = lipgloss.NewStyle().Foreground(yellow).Italic(true)
	myNameStyle = lipgloss.NewStyle().Bold(true).Foreground(orange)
)

// ---------------------------------------------------------------------------
// Bubbletea message types
// ---------------------------------------------------------------------------

// replyMsg carries the outcome of one request.
type replyMsg struct {
	sent  protocol.Message
	reply protocol.Message
	err   error
}

// ---------------------------------------------------------------------------
// Model
// ---------------------------------------------------------------------------

type model struct {
	conn *client.Client
	me   string
	room string

	ready    bool
	viewport viewport.Model
	input    textinput.Model
	lines    []string
	pending  bool

	exitCode      int
	width, height int
}

func newModel(conn *client.Client, me string) model {
	in := textinput.New()
	in.Placeholder = "Type a message, /join <room>, /leave or /quit…"
	in.CharLimit = protocol.MaxLen - 1
	in.Focus()

	return model{
		conn:  conn,
		me:    me,
		input: in,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.vpHeight())
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.vpHeight()
		}
		m.input.Width = msg.Width - 4
		return m, nil

	case replyMsg:
		return m.handleReply(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// vpHeight returns the number of lines available for the viewport.
func (m model) vpHeight() int {
	// header (1) + footer border (1) + footer input (1)
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.pending {
			return m, tea.Quit
		}
		m.pending = true
		return m, request(m.conn, protocol.New(protocol.TagQuit, ""))

	case tea.KeyEnter:
		line := m.input.Value()
		if m.pending || strings.TrimSpace(line) == "" {
			return m, nil
		}
		m.input.Reset()
		m.pending = true
		return m, request(m.conn, client.ParseCommand(line))

	case tea.KeyPgUp:
		m.viewport.HalfViewUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleReply(r replyMsg) (model, tea.Cmd) {
	m.pending = false

	if r.err != nil && !errors.Is(r.err, client.ErrServer) {
		m.appendLine(errorStyle.Render("⚠ connection lost: " + r.err.Error()))
		m.exitCode = 1
		return m, tea.Quit
	}
	if r.reply.Tag == protocol.TagErr {
		m.appendLine(errorStyle.Render("⚠ " + r.reply.Data))
		return m, nil
	}

	switch r.sent.Tag {
	case protocol.TagQuit:
		return m, tea.Quit
	case protocol.TagJoin:
		m.room = r.sent.Data
		m.appendLine(sysStyle.Render("⚡ joined " + m.room))
	case protocol.TagLeave:
		m.appendLine(sysStyle.Render("⚡ left " + m.room))
		m.room = ""
	case protocol.TagSendAll:
		m.appendLine(myNameStyle.Render(m.me) + ": " + r.sent.Data)
	default:
		m.appendLine(okStyle.Render(r.reply.Data))
	}
	return m, nil
}

// appendLine adds a rendered line and scrolls the viewport to the bottom.
func (m *model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "\n  Connecting…"
	}

	room := m.room
	if room == "" {
		room = "no room"
	}
	hdr := headerStyle.
		Width(m.width).
		Render(fmt.Sprintf(" roomchat  ·  %s  ·  %s  ·  PgUp/Dn: Scroll  Ctrl+C: Quit", m.me, room))

	footer := footerBorderStyle.
		Width(m.width - 2).
		Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left, hdr, m.viewport.View(), footer)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// request returns a tea.Cmd that sends msg and waits for the reply.
func request(c *client.Client, msg protocol.Message) tea.Cmd {
	return func() tea.Msg {
		reply, err := c.Request(msg)
		return replyMsg{sent: msg, reply: reply, err: err}
	}
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	if len(os.Args) != 4 {
		fmt.Fprintf(os.Stderr, "Usage: %s <host> <port> <username>\n", os.Args[0])
		os.Exit(1)
	}
	host, username := os.Args[1], os.Args[3]
	port, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid port %q\n", os.Args[2])
		os.Exit(1)
	}

	conn, err := client.Dial(host, port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := conn.Login(protocol.TagSLogin, username); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		conn.Close()
		os.Exit(1)
	}

	p := tea.NewProgram(
		newModel(conn, username),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	final, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		conn.Close()
		os.Exit(1)
	}
	if code := final.(model).exitCode; code != 0 {
		conn.Close()
		os.Exit(code)
	}
}
