package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vibecode/collabhub/internal/client"
	"github.com/vibecode/collabhub/internal/protocol"
	"github.com/vibecode/collabhub/internal/theme"
	"github.com/vibecode/collabhub/internal/views/chat"
	"github.com/vibecode/collabhub/internal/views/console"
	"github.com/vibecode/collabhub/internal/views/debug"
	"github.com/vibecode/collabhub/internal/views/roster"
	"github.com/vibecode/collabhub/internal/views/status"
)

// Pane identifies which pane the input line feeds.
type Pane int

const (
	PaneChat Pane = iota
	PaneTerminal
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
)

const rosterWidth = 22

// Options configures the root model.
type Options struct {
	ProjectID string
	User      protocol.User
	// MarkdownStyle is a glamour standard style name. Defaults to "dark".
	MarkdownStyle string
}

// Model is the root Bubble Tea model.
type Model struct {
	collab *client.WSClient
	term   *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	projectID string
	user      protocol.User
	clientID  string
	style     string

	focus   Pane
	overlay Overlay
	input   textinput.Model

	// Sub-views.
	chat      chat.Model
	console   console.Model
	roster    roster.Model
	statusBar status.Model
	events    debug.Model

	// Connection state.
	collabUp bool
	termUp   bool
}

// New creates the root model. collab talks to /ws and term to the
// project's terminal endpoint.
func New(collab, term *client.WSClient, http *client.HTTPClient, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.MarkdownStyle == "" {
		opts.MarkdownStyle = "dark"
	}

	name := opts.User.Name
	if name == "" {
		name = opts.User.ID
	}

	input := textinput.New()
	input.Placeholder = "message the room"
	input.Prompt = "chat> "
	input.CharLimit = 2000
	input.Focus()

	return Model{
		collab:    collab,
		term:      term,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		projectID: opts.ProjectID,
		user:      opts.User,
		style:     opts.MarkdownStyle,
		input:     input,
		chat:      chat.New(opts.MarkdownStyle),
		console:   console.New(),
		statusBar: status.New(opts.ProjectID, name),
		events:    debug.New(),
	}
}

// Init opens both connections and fetches the hub metrics once.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.collab.Listen(m.ctx),
		m.term.Listen(m.ctx),
		textinput.Blink,
	}
	if m.http != nil {
		cmds = append(cmds, m.http.FetchStatus(m.ctx))
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.setUp(msg.From, true)
		m.events.Add("ws", fmt.Sprintf("%s connected", msg.From))
		if msg.From == client.ChannelCollab {
			// Rooms do not survive a reconnect, so join again every time.
			if err := m.collab.Join(m.projectID, m.user); err != nil {
				m.events.Add("err", err.Error())
			}
		}
		return m, m.next(msg.From)

	case client.WSDisconnectedMsg:
		m.setUp(msg.From, false)
		if msg.From == client.ChannelCollab {
			m.roster.Clear()
			m.statusBar.Online = 0
		}
		m.events.Add("err", fmt.Sprintf("%s disconnected: %v", msg.From, msg.Err))
		return m, m.clientFor(msg.From).Reconnect(m.ctx)

	case client.WSWelcomeMsg:
		m.clientID = msg.Payload.ClientID
		m.events.Add("ws", msg.Payload.Message)
		return m, m.next(msg.From)

	case client.WSCollaboratorsMsg:
		m.roster.Set(msg.Users)
		m.statusBar.Online = m.roster.Len()
		m.chat.AddSystem(fmt.Sprintf("joined %s, %d other(s) here", m.projectID, len(msg.Users)))
		m.events.Add("pres", fmt.Sprintf("collaborators_list: %d", len(msg.Users)))
		return m, m.next(msg.From)

	case client.WSPresenceMsg:
		name := displayName(msg.User)
		if msg.Joined {
			m.roster.Add(msg.User)
			m.chat.AddSystem(name + " joined")
		} else {
			m.roster.Remove(msg.User.ID)
			m.chat.AddSystem(name + " left")
		}
		m.statusBar.Online = m.roster.Len()
		m.events.Add("pres", fmt.Sprintf("joined=%v %s", msg.Joined, msg.User.ID))
		return m, m.next(msg.From)

	case client.WSChatMsg:
		m.chat.AddMessage(msg.Payload.User, msg.Payload.Message, msg.Payload.Timestamp)
		return m, m.next(msg.From)

	case client.WSFileChangeMsg:
		m.chat.AddSystem(fmt.Sprintf("%s changed (%d bytes)", msg.Payload.FileName, len(msg.Payload.Text())))
		m.events.Add("ws", "file_change "+msg.Payload.FileName)
		return m, m.next(msg.From)

	case client.WSCursorMsg:
		m.events.Add("ws", fmt.Sprintf("cursor %s %s", msg.Payload.User.ID, msg.Payload.Position))
		return m, m.next(msg.From)

	case client.WSComponentMsg:
		m.chat.AddSystem(string(msg.Type))
		m.events.Add("ws", string(msg.Raw))
		return m, m.next(msg.From)

	case client.WSTerminalMsg:
		m.console.Write(msg.Output)
		return m, m.next(msg.From)

	case client.WSStatusMsg:
		m.statusBar.SetStatus(msg.Payload)
		return m, m.next(msg.From)

	case client.WSErrorMsg:
		if msg.From == client.ChannelTerminal {
			m.console.AddError(msg.Message)
		} else {
			m.chat.AddError(msg.Message)
		}
		m.events.Add("err", msg.Message)
		return m, m.next(msg.From)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cancel()
		m.collab.Close()
		m.term.Close()
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape),
			m.overlay == OverlayDebug && key.Matches(msg, m.keys.Debug),
			m.overlay == OverlayHelp && key.Matches(msg, m.keys.Help):
			m.overlay = OverlayNone
			return m, nil
		case m.overlay == OverlayDebug:
			return m, m.events.Update(msg)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil

	case key.Matches(msg, m.keys.SwitchPane):
		m.setFocus(1 - m.focus)
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		if m.focus == PaneTerminal {
			return m, m.console.Update(msg)
		}
		return m, m.chat.Update(msg)

	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text == "" {
			return m, nil
		}
		m.submit(text)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input line to the focused pane's connection.
func (m *Model) submit(text string) {
	if m.focus == PaneTerminal {
		m.console.Echo(text)
		if err := m.term.Command(m.projectID, text); err != nil {
			m.console.AddError("not sent: " + err.Error())
		}
		return
	}

	var err error
	if name, content, ok := parseFileCommand(text); ok {
		err = m.collab.FileChange(m.projectID, name, content)
		if err == nil {
			m.chat.AddSystem("you changed " + name)
		}
	} else {
		// The hub echoes chat back to the sender, so nothing is shown yet.
		err = m.collab.Chat(m.projectID, m.user, text)
	}
	if err != nil {
		m.chat.AddError("not sent: " + err.Error())
		m.events.Add("err", err.Error())
	}
}

// parseFileCommand splits "/file <name> <content>".
func parseFileCommand(text string) (name, content string, ok bool) {
	rest, found := strings.CutPrefix(text, "/file ")
	if !found {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)
	name, content, _ = strings.Cut(rest, " ")
	if name == "" {
		return "", "", false
	}
	return name, content, true
}

func (m Model) next(from client.Channel) tea.Cmd {
	if c := m.clientFor(from); c != nil {
		return c.ReadLoop(m.ctx)
	}
	return nil
}

func (m Model) clientFor(from client.Channel) *client.WSClient {
	switch from {
	case client.ChannelCollab:
		return m.collab
	case client.ChannelTerminal:
		return m.term
	}
	return nil
}

func (m *Model) setUp(from client.Channel, up bool) {
	switch from {
	case client.ChannelCollab:
		m.collabUp = up
		m.statusBar.CollabConnected = up
	case client.ChannelTerminal:
		m.termUp = up
		m.statusBar.TerminalConnected = up
	}
}

func (m *Model) setFocus(p Pane) {
	m.focus = p
	if p == PaneTerminal {
		m.input.Prompt = "$ "
		m.input.Placeholder = "command (try help)"
	} else {
		m.input.Prompt = "chat> "
		m.input.Placeholder = "message the room"
	}
}

func (m *Model) layout() {
	m.statusBar.Width = m.width - 2
	m.input.Width = max(m.width-10, 10)

	paneH := max(m.height-8, 3)
	chatW, termW := m.paneWidths()
	m.chat.SetSize(chatW, paneH)
	m.console.SetSize(termW, paneH)
	m.events.SetSize(m.width, m.height)
}

func (m Model) paneWidths() (chatW, termW int) {
	usable := max(m.width-rosterWidth-6, 20)
	chatW = usable / 2
	termW = usable - chatW
	return chatW, termW
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.overlay {
	case OverlayDebug:
		body = m.events.View()
	case OverlayHelp:
		body = m.helpView()
	default:
		body = m.panesView()
	}

	sections := []string{m.statusBar.View()}
	if !m.collabUp && !m.termUp {
		sections = append(sections, theme.StyleError.Render(" DISCONNECTED  Reconnecting..."))
	}
	sections = append(sections,
		body,
		m.input.View(),
		theme.StyleDimmed.Render("  tab:switch pane  pgup/pgdn:scroll  ctrl+d:events  f1:help  ctrl+c:quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) panesView() string {
	chatW, termW := m.paneWidths()
	paneH := max(m.height-8, 3)

	chatStyle, termStyle := theme.StyleBorder, theme.StyleBorder
	if m.focus == PaneTerminal {
		termStyle = theme.StyleFocused
	} else {
		chatStyle = theme.StyleFocused
	}

	chatPane := chatStyle.Width(chatW).Height(paneH).Render(m.chat.View())
	termPane := termStyle.Width(termW).Height(paneH).Render(m.console.View())
	side := m.roster.View(rosterWidth)
	return lipgloss.JoinHorizontal(lipgloss.Top, chatPane, termPane, side)
}

func (m Model) helpView() string {
	out, err := glamour.Render(helpMarkdown(m.keys), m.style)
	if err != nil {
		out = helpMarkdown(m.keys)
	}
	return theme.StyleBorder.Padding(0, 1).Render(strings.TrimRight(out, "\n"))
}

func helpMarkdown(k KeyMap) string {
	var b strings.Builder
	b.WriteString("# Keys\n\n| key | action |\n|---|---|\n")
	for _, kb := range k.bindings() {
		h := kb.Help()
		fmt.Fprintf(&b, "| `%s` | %s |\n", h.Key, h.Desc)
	}
	b.WriteString("\n## Chat\n\nMessages are markdown. `/file <name> <content>` shares a file change with the room.\n")
	b.WriteString("\n## Terminal\n\nCommands run in the project's simulated shell. Start with `help`.\n")
	return b.String()
}

func displayName(u protocol.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
