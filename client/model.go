package main

import (
	"html"
	"math"
	"strings"

	"github.com/Cod-e-Codes/chatrooms/client/config"
	"github.com/Cod-e-Codes/chatrooms/shared"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

const (
	sidebarWidth = 24
	modalWidth   = 44
	// rows above the first channel in the sidebar: border, title, blank
	sidebarHeaderRows = 3
)

type (
	channelsMsg struct{ channels []shared.Channel }
	apiErrMsg   struct{ err error }
)

type model struct {
	cfg   config.Config
	api   *APIClient
	wsURL string
	log   zerolog.Logger

	sock          *Socket
	connected     bool
	everConnected bool

	ctrl       *Controller
	input      textinput.Model
	modalInput textinput.Model
	viewport   viewport.Model
	styles     themeStyles
	md         *glamour.TermRenderer
	banner     string

	width  int
	height int
}

func newModel(cfg config.Config, api *APIClient, wsURL string, channels []shared.Channel, log zerolog.Logger) model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 2000
	ti.Focus()

	mi := textinput.New()
	mi.Placeholder = "channel name"
	mi.CharLimit = 50
	mi.Width = modalWidth - 8

	m := model{
		cfg:        cfg,
		api:        api,
		wsURL:      wsURL,
		log:        log,
		ctrl:       NewController(channels, log),
		input:      ti,
		modalInput: mi,
		viewport:   viewport.New(80, 20),
		styles:     getThemeStyles(cfg.Theme),
		width:      80 + sidebarWidth,
		height:     24,
	}
	m.layout()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, connectCmd(m.wsURL, m.api.Token()))
}

func createChannelCmd(api *APIClient, name string) tea.Cmd {
	return func() tea.Msg {
		channels, err := api.CreateChannel(name)
		if err != nil {
			return apiErrMsg{err: err}
		}
		return channelsMsg{channels: channels}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case wsConnected:
		if m.sock != nil {
			_ = m.sock.Close()
		}
		m.sock = msg.sock
		m.ctrl.SetEmitter(msg.sock)
		if m.everConnected {
			m.setBanner("✅ Reconnected to server!")
		} else {
			m.setBanner("")
		}
		m.connected, m.everConnected = true, true
		if err := m.ctrl.OnConnect(); err != nil {
			m.log.Error().Err(err).Msg("join after connect failed")
			m.setBanner("⚠️ " + err.Error())
		}
		m.refresh()
		return m, listenCmd(msg.sock)

	case wsEvent:
		if msg.sock != m.sock {
			return m, nil
		}
		if err := m.ctrl.HandleEvent(msg.env); err != nil {
			m.log.Error().Err(err).Str("type", string(msg.env.Type)).Msg("bad event payload")
		}
		m.refresh()
		return m, listenCmd(msg.sock)

	case wsError:
		if msg.sock != nil && msg.sock != m.sock {
			return m, nil
		}
		if msg.sock != nil {
			_ = msg.sock.conn.Close()
		}
		m.sock = nil
		m.connected = false
		m.ctrl.SetEmitter(nil)
		if reason, ok := rejectionReason(msg.err); ok {
			m.log.Warn().Str("reason", reason).Msg("server rejected session")
			m.setBanner("🚫 " + reason + ". Restart to log in again.")
			return m, nil
		}
		m.log.Debug().Err(msg.err).Msg("connection lost")
		m.setBanner("🚫 Server unreachable. Trying to reconnect...")
		return m, reconnectCmd()

	case reconnectMsg:
		return m, connectCmd(m.wsURL, m.api.Token())

	case channelsMsg:
		m.ctrl.ChannelCreated(msg.channels)
		m.afterModalClosed()
		return m, nil

	case apiErrMsg:
		m.setBanner("⚠️ " + msg.err.Error())
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.MouseMsg:
		return m.updateMouse(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.sock != nil {
				_ = m.sock.Close()
			}
			return m, tea.Quit
		}
		if m.ctrl.ModalVisible() {
			return m.updateModal(msg)
		}
		switch msg.String() {
		case "ctrl+o":
			m.ctrl.OpenModal()
			m.input.Blur()
			m.modalInput.Reset()
			return m, m.modalInput.Focus()
		case "tab":
			m.handleSelect(m.ctrl.SelectOffset(1))
			return m, nil
		case "shift+tab":
			m.handleSelect(m.ctrl.SelectOffset(-1))
			return m, nil
		case "ctrl+y":
			m.copyLastMessage()
			return m, nil
		case "up":
			m.viewport.ScrollUp(1)
			return m, nil
		case "down":
			m.viewport.ScrollDown(1)
			return m, nil
		case "pgup":
			m.viewport.PageUp()
			return m, nil
		case "pgdown":
			m.viewport.PageDown()
			return m, nil
		case "enter":
			rest, err := m.ctrl.Send(m.input.Value())
			if err != nil {
				m.setBanner("Error sending message!")
			}
			m.input.SetValue(rest)
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.ctrl.ModalVisible() {
		m.modalInput, cmd = m.modalInput.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ctrl.CloseModal()
		m.afterModalClosed()
		return m, nil
	case "enter":
		return m, createChannelCmd(m.api, m.modalInput.Value())
	}
	var cmd tea.Cmd
	m.modalInput, cmd = m.modalInput.Update(msg)
	return m, cmd
}

func (m model) updateMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(3)
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(3)
	case tea.MouseButtonLeft:
		if m.ctrl.ModalVisible() {
			if !m.insideModal(msg.X, msg.Y) {
				m.ctrl.BackdropClick()
				m.afterModalClosed()
			}
			return m, nil
		}
		if i, ok := m.channelAt(msg.X, msg.Y); ok {
			m.handleSelect(m.ctrl.SelectChannel(m.ctrl.Channels()[i]))
		}
	}
	return m, nil
}

func (m *model) handleSelect(err error) {
	if err != nil {
		m.log.Error().Err(err).Msg("switch channel failed")
		m.setBanner("⚠️ " + err.Error())
	}
}

func (m *model) afterModalClosed() {
	m.modalInput.Blur()
	m.modalInput.Reset()
	m.input.Focus()
}

func (m *model) copyLastMessage() {
	msg, ok := m.ctrl.LastMessage()
	if !ok {
		return
	}
	if err := clipboard.WriteAll(html.UnescapeString(msg.Content)); err != nil {
		m.setBanner("⚠️ Clipboard unavailable")
		return
	}
	m.setBanner("📋 Copied message from " + html.UnescapeString(msg.Author))
}

// layout sizes the viewport and markdown renderer to the window
func (m *model) layout() {
	chatWidth := m.width - sidebarWidth
	if chatWidth < 10 {
		chatWidth = 10
	}
	m.viewport.Width = chatWidth
	m.fitHeight()
	m.input.Width = chatWidth - 6

	md, err := newMarkdownRenderer(m.styles.Markdown, chatWidth-2)
	if err != nil {
		m.log.Warn().Err(err).Msg("markdown rendering disabled")
		md = nil
	}
	m.md = md
	m.refresh()
}

// fitHeight gives the viewport every row not taken by the banner, the
// header and the bordered input line.
func (m *model) fitHeight() {
	vpHeight := m.height - m.topOffset() - 1 - 3
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Height = vpHeight
}

func (m *model) setBanner(text string) {
	m.banner = text
	m.fitHeight()
}

func (m *model) refresh() {
	m.viewport.SetContent(renderItems(m.ctrl.Items(), m.styles, m.md, m.cfg.Username))
	if m.ctrl.TakeScroll() {
		m.viewport.GotoBottom()
	}
}

func (m model) bannerView() string {
	return lipgloss.NewStyle().
		Width(m.width).
		MaxHeight(1).
		PaddingLeft(1).
		Background(lipgloss.Color("#FF5F5F")).
		Foreground(lipgloss.Color("#000000")).
		Bold(true).
		Render(m.banner)
}

func (m model) sidebarView() string {
	var s strings.Builder
	s.WriteString(m.styles.Header.Render("Channels") + "\n\n")
	active := m.ctrl.ActiveIndex()
	for i, ch := range m.ctrl.Channels() {
		line := truncate("# "+ch.Name, sidebarWidth-4)
		if i == active {
			s.WriteString(m.styles.Active.Render(line))
		} else {
			s.WriteString(line)
		}
		s.WriteString("\n")
	}
	s.WriteString("\n" + m.styles.Time.Render("ctrl+o new channel"))

	return m.styles.Sidebar.
		Width(sidebarWidth - 2).
		Height(m.viewport.Height + 2).
		Render(s.String())
}

func (m model) chatView() string {
	header := m.ctrl.Header()
	if !m.connected {
		header += " (offline)"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(header),
		m.viewport.View(),
		m.styles.Box.Width(m.viewport.Width-2).Render("> "+m.input.View()),
	)
}

func (m model) modalView() string {
	var s strings.Builder
	s.WriteString(m.styles.Header.Render("Create a channel") + "\n\n")
	s.WriteString(m.modalInput.View() + "\n\n")
	s.WriteString(m.styles.Time.Render("enter create · esc close"))
	return m.styles.Modal.Width(modalWidth).Render(s.String())
}

// modalOrigin returns the top-left cell of the centered dialog
func (m model) modalOrigin(box string) (int, int) {
	x := int(math.Round(float64(m.width-lipgloss.Width(box)) * 0.5))
	y := int(math.Round(float64(m.height-lipgloss.Height(box)) * 0.5))
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}
	return x, y
}

func (m model) insideModal(x, y int) bool {
	box := m.modalView()
	left, top := m.modalOrigin(box)
	return x >= left && x < left+lipgloss.Width(box) && y >= top && y < top+lipgloss.Height(box)
}

func (m model) topOffset() int {
	if m.banner != "" {
		return 1
	}
	return 0
}

// channelAt maps a click in the sidebar to a channel index
func (m model) channelAt(x, y int) (int, bool) {
	if x >= sidebarWidth {
		return 0, false
	}
	row := y - m.topOffset() - sidebarHeaderRows
	if row < 0 || row >= len(m.ctrl.Channels()) {
		return 0, false
	}
	return row, true
}

func (m model) View() string {
	if m.ctrl.ModalVisible() {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.modalView(),
			lipgloss.WithWhitespaceChars(" "))
	}

	var b strings.Builder
	if m.banner != "" {
		b.WriteString(m.bannerView() + "\n")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), m.chatView()))
	return b.String()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return string(r[:width])
	}
	return string(r[:width-1]) + "…"
}
