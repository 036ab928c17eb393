package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/compose"
	"github.com/takurajunia/agrivus-mobile-sub002/internal/pkg/chat/domain"
)

const refreshEvery = 300 * time.Millisecond

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	unreadStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	onlineDot   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
	offlineDot  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("○")
	unknownDot  = dimStyle.Render("◌")
	typingStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("245"))
	ownMsgStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

type viewMode int

const (
	modeList viewMode = iota
	modeThread
)

type tickMsg time.Time

type threadOpenedMsg struct {
	conversationID string
	err            error
}

type model struct {
	engine    *chat.Engine
	localUser string

	mode     viewMode
	cursor   int
	openConv domain.Conversation
	composer *compose.Controller
	input    textinput.Model
	width    int
	height   int
	lastErr  string
}

func newModel(engine *chat.Engine, localUser string) model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 2000
	return model{
		engine:    engine,
		localUser: localUser,
		input:     ti,
	}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case threadOpenedMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeThread {
			return m.updateThread(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	convs := m.engine.Directory.Conversations()
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(convs)-1 {
			m.cursor++
		}
	case "r":
		engine := m.engine
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = engine.Directory.LoadAll(ctx)
			return tickMsg(time.Now())
		}
	case "enter":
		if m.cursor >= len(convs) {
			return m, nil
		}
		conv := convs[m.cursor]
		m.mode = modeThread
		m.openConv = conv
		m.composer = m.engine.Composer(conv.ID)
		m.input.Focus()
		engine := m.engine
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return threadOpenedMsg{conversationID: conv.ID, err: engine.OpenConversation(ctx, conv.ID)}
		}
	}
	return m, nil
}

func (m model) updateThread(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.composer.Close()
		m.composer = nil
		m.engine.CloseConversation()
		m.mode = modeList
		m.input.Reset()
		m.input.Blur()
		m.lastErr = ""
		return m, nil
	case "enter":
		body := m.input.Value()
		if err := m.composer.Submit(body); err != nil {
			m.lastErr = err.Error()
			return m, nil
		}
		m.lastErr = ""
		m.input.Reset()
		return m, nil
	}

	if msg.Type == tea.KeyRunes || msg.Type == tea.KeyBackspace || msg.Type == tea.KeySpace {
		m.composer.Keystroke()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.mode == modeThread {
		return m.viewThread()
	}
	return m.viewList()
}

func (m model) viewList() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Conversations"))
	b.WriteString("\n")

	state, lastErr, retries := m.engine.Directory.Status()
	switch state {
	case domain.LoadAuthRequired:
		b.WriteString(bannerStyle.Render("You must log in to see your messages."))
		b.WriteString("\n")
	case domain.LoadFailed:
		b.WriteString(bannerStyle.Render(fmt.Sprintf("Load failed (%s), press r to retry (attempt %d)", lastErr, retries)))
		b.WriteString("\n")
	}
	if m.engine.Directory.Stale() {
		b.WriteString(dimStyle.Render("showing cached data..."))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	convs := m.engine.Directory.Conversations()
	if len(convs) == 0 {
		b.WriteString(dimStyle.Render("No conversations yet."))
		b.WriteString("\n")
	}
	for i, conv := range convs {
		line := m.conversationLine(conv)
		if i == m.cursor {
			line = cursorStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓ move · enter open · r reload · q quit"))
	return b.String()
}

func (m model) conversationLine(conv domain.Conversation) string {
	name := conv.Name
	if name == "" {
		name = conv.Other.DisplayName
		if name == "" {
			name = conv.Other.ID
		}
	}

	dot := unknownDot
	if !conv.IsGroup() {
		if online, known := m.engine.Presence.Online(conv.Other.ID); known {
			if online {
				dot = onlineDot
			} else {
				dot = offlineDot
			}
		}
	}

	preview := ""
	if conv.LastMessage != nil {
		preview = conv.LastMessage.Body
		// truncate on rune boundaries so multi-byte text is never split
		if runes := []rune(preview); len(runes) > 40 {
			preview = string(runes[:40]) + "…"
		}
	}

	badge := ""
	if conv.Unread > 0 {
		badge = unreadStyle.Render(fmt.Sprintf(" (%d)", conv.Unread))
	}

	return fmt.Sprintf("%s %s%s  %s", dot, name, badge, dimStyle.Render(preview))
}

func (m model) viewThread() string {
	var b strings.Builder
	name := m.openConv.Name
	if name == "" {
		name = m.openConv.Other.DisplayName
	}
	b.WriteString(titleStyle.Render(name))
	b.WriteString("\n\n")

	state, lastErr, retries := m.engine.Thread.Status()
	switch state {
	case domain.LoadAuthRequired:
		b.WriteString(bannerStyle.Render("You must log in to see this conversation."))
		b.WriteString("\n")
	case domain.LoadFailed:
		b.WriteString(bannerStyle.Render(fmt.Sprintf("Load failed (%s), retries: %d", lastErr, retries)))
		b.WriteString("\n")
	}

	msgs := m.engine.Thread.Messages()
	visible := msgs
	if maxLines := m.height - 8; maxLines > 0 && len(visible) > maxLines {
		visible = visible[len(visible)-maxLines:]
	}
	for _, msg := range visible {
		b.WriteString(m.messageLine(msg))
		b.WriteString("\n")
	}

	if typists := m.engine.Typing.Typing(m.openConv.ID); len(typists) > 0 {
		b.WriteString(typingStyle.Render(strings.Join(typists, ", ") + " is typing…"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.lastErr != "" {
		b.WriteString(bannerStyle.Render(m.lastErr))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("enter send · esc back"))
	return b.String()
}

func (m model) messageLine(msg domain.Message) string {
	ts := dimStyle.Render(msg.CreatedAt.Local().Format("15:04"))
	if msg.SenderID == m.localUser {
		tick := "✓"
		if msg.Read {
			tick = "✓✓"
		}
		return fmt.Sprintf("%s %s %s", ts, ownMsgStyle.Render("me: "+msg.Body), dimStyle.Render(tick))
	}
	return fmt.Sprintf("%s %s: %s", ts, msg.SenderID, msg.Body)
}
