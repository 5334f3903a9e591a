package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"aichat-backend/internal/models"
	"aichat-backend/internal/reveal"
)

type view int

const (
	viewLogin view = iota
	viewChat
)

type chatMessage struct {
	sender  models.Sender
	content string
}

// revealTickMsg drives the typewriter animation. It carries the message
// index it was scheduled for so a tick chain left over from an earlier
// reveal cannot drive a newer one.
type revealTickMsg struct {
	target int
}

type loginResultMsg struct{ err error }

type sendResultMsg struct {
	resp *models.ChatResponse
	err  error
}

type listResultMsg struct {
	chats []models.ConversationSummary
	err   error
}

type model struct {
	client *apiClient

	view view

	// Login form
	emailInput    textinput.Model
	passwordInput textinput.Model
	focusPassword bool

	// Chat view
	promptInput    textinput.Model
	messages       []chatMessage
	conversationID *uuid.UUID
	sidebar        []models.ConversationSummary
	waiting        bool

	// Incremental reveal of the newest assistant message. Each assistant
	// message gets its own sequence; a running reveal never blocks the
	// next prompt.
	rev       *reveal.Reveal
	revTarget int // index into messages being revealed

	errText string
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	sidebarStyle   = lipgloss.NewStyle().Width(28).Padding(0, 1).Border(lipgloss.NormalBorder(), false, true, false, false).BorderForeground(lipgloss.Color("240"))
	sidebarDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	userLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	botLabelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newModel(serverURL string) model {
	email := textinput.New()
	email.Placeholder = "email"
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword

	prompt := textinput.New()
	prompt.Placeholder = "Message AI..."

	return model{
		client:        newAPIClient(serverURL),
		view:          viewLogin,
		emailInput:    email,
		passwordInput: password,
		promptInput:   prompt,
		revTarget:     -1,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			// Skip the running reveal and settle the message.
			if m.rev != nil && !m.rev.Settled() {
				m.rev.Skip()
				m.messages[m.revTarget].content = m.rev.Visible()
				return m, nil
			}
		}
		if m.view == viewLogin {
			return m.updateLogin(msg)
		}
		return m.updateChat(msg)

	case loginResultMsg:
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.view = viewChat
		m.promptInput.Focus()
		return m, m.listCmd()

	case sendResultMsg:
		m.waiting = false
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.conversationID = &msg.resp.ConversationID

		// A response can land while the previous reveal is still running.
		// Settle that message at its full text before starting the new one.
		if m.rev != nil && !m.rev.Settled() {
			m.rev.Skip()
			m.messages[m.revTarget].content = m.rev.Visible()
		}

		// Append the assistant message empty and let the reveal fill it.
		m.messages = append(m.messages, chatMessage{sender: models.SenderAssistant})
		m.revTarget = len(m.messages) - 1
		m.rev = reveal.New(msg.resp.Response)
		return m, tea.Batch(m.revealTickCmd(), m.listCmd())

	case listResultMsg:
		if msg.err == nil {
			m.sidebar = msg.chats
		}
		return m, nil

	case revealTickMsg:
		// Stale ticks from a superseded reveal are dropped.
		if m.rev == nil || msg.target != m.revTarget {
			return m, nil
		}
		more := m.rev.Advance()
		m.messages[m.revTarget].content = m.rev.Visible()
		if more {
			return m, m.revealTickCmd()
		}
		return m, nil
	}

	return m, nil
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab":
		m.focusPassword = !m.focusPassword
		if m.focusPassword {
			m.emailInput.Blur()
			m.passwordInput.Focus()
		} else {
			m.passwordInput.Blur()
			m.emailInput.Focus()
		}
		return m, nil
	case "enter":
		if !m.focusPassword {
			m.focusPassword = true
			m.emailInput.Blur()
			m.passwordInput.Focus()
			return m, nil
		}
		email := strings.TrimSpace(m.emailInput.Value())
		password := m.passwordInput.Value()
		if email == "" || password == "" {
			m.errText = "Email and password are required"
			return m, nil
		}
		return m, m.loginCmd(email, password)
	}

	var cmd tea.Cmd
	if m.focusPassword {
		m.passwordInput, cmd = m.passwordInput.Update(msg)
	} else {
		m.emailInput, cmd = m.emailInput.Update(msg)
	}
	return m, cmd
}

func (m model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		prompt := strings.TrimSpace(m.promptInput.Value())
		if prompt == "" || m.waiting {
			return m, nil
		}
		m.messages = append(m.messages, chatMessage{sender: models.SenderUser, content: prompt})
		m.promptInput.Reset()
		m.waiting = true
		return m, m.sendCmd(prompt, m.conversationID)
	case "ctrl+n":
		// Fresh conversation for the next prompt.
		m.conversationID = nil
		m.messages = nil
		m.rev = nil
		m.revTarget = -1
		return m, nil
	}

	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	return m, cmd
}

func (m model) loginCmd(email, password string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		return loginResultMsg{err: client.Login(email, password)}
	}
}

func (m model) sendCmd(prompt string, conversationID *uuid.UUID) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		resp, err := client.Send(prompt, conversationID)
		return sendResultMsg{resp: resp, err: err}
	}
}

func (m model) listCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		chats, err := client.List()
		return listResultMsg{chats: chats, err: err}
	}
}

func (m model) revealTickCmd() tea.Cmd {
	target := m.revTarget
	return tea.Tick(m.rev.Interval(), func(time.Time) tea.Msg {
		return revealTickMsg{target: target}
	})
}

func (m model) View() string {
	if m.view == viewLogin {
		return m.loginView()
	}
	return m.chatView()
}

func (m model) loginView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("AI Chat — Sign in"))
	b.WriteString("\n\n")
	b.WriteString(m.emailInput.View())
	b.WriteString("\n")
	b.WriteString(m.passwordInput.View())
	b.WriteString("\n\n")
	if m.errText != "" {
		b.WriteString(errStyle.Render(m.errText))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("tab: switch field · enter: sign in · ctrl+c: quit"))
	return b.String()
}

func (m model) chatView() string {
	var chat strings.Builder
	for _, msg := range m.messages {
		if msg.sender == models.SenderUser {
			chat.WriteString(userLabelStyle.Render("You: "))
		} else {
			chat.WriteString(botLabelStyle.Render("AI:  "))
		}
		chat.WriteString(msg.content)
		chat.WriteString("\n")
	}
	if m.waiting {
		chat.WriteString(sidebarDim.Render("Thinking..."))
		chat.WriteString("\n")
	}
	if m.errText != "" {
		chat.WriteString(errStyle.Render(m.errText))
		chat.WriteString("\n")
	}
	chat.WriteString("\n")
	chat.WriteString(m.promptInput.View())
	chat.WriteString("\n")
	chat.WriteString(helpStyle.Render("enter: send · ctrl+n: new chat · esc: skip typing · ctrl+c: quit"))

	var side strings.Builder
	side.WriteString(titleStyle.Render("Conversations"))
	side.WriteString("\n\n")
	if len(m.sidebar) == 0 {
		side.WriteString(sidebarDim.Render("No conversations yet"))
	}
	for _, c := range m.sidebar {
		preview := c.Preview
		if r := []rune(preview); len(r) > 22 {
			preview = string(r[:22]) + "…"
		}
		side.WriteString(preview)
		side.WriteString("\n")
		side.WriteString(sidebarDim.Render(c.Timestamp))
		side.WriteString("\n\n")
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, sidebarStyle.Render(side.String()), " "+chat.String())
}

func main() {
	serverURL := os.Getenv("CHAT_SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	p := tea.NewProgram(newModel(serverURL), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
