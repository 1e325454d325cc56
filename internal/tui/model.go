// Package tui is the interactive terminal front-end: a login screen and a
// chat screen, guarded by the session state.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"analytica-chat/internal/client"
	"analytica-chat/internal/domain"
)

// Sessions is the slice of *client.Provider the UI needs.
type Sessions interface {
	Current() domain.Session
	IsAuthenticated() bool
	Login(ctx context.Context, identity, secret string) (domain.Session, error)
	Logout(ctx context.Context) error
}

// Chat is the slice of *client.Conversation the UI needs.
type Chat interface {
	Submit(ctx context.Context, text string) (domain.ChatMessage, error)
	Messages() []domain.ChatMessage
}

type screen int

const (
	screenLogin screen = iota
	screenChat
)

const (
	noticeExpired      = "Your session has expired. Please log in again."
	noticeBadLogin     = "Invalid username or password."
	noticeLoggedOut    = "You have been logged out."
	welcomeTitle       = "Welcome to Analytica"
	welcomeBody        = "Ask a question about your data to get started."
	chatPlaceholder    = "Ask about your data... (Enter to send)"
	headerHeight       = 2
	footerHeight       = 3
	defaultWidth       = 80
	defaultHeight      = 24
	loginFieldUsername = 0
	loginFieldPassword = 1
)

type (
	loginResultMsg struct {
		session domain.Session
		err     error
	}
	replyMsg struct {
		err error
	}
	logoutMsg struct {
		err error
	}
)

// Model is the bubbletea model. The chat log is recreated on every login so
// a new session never shows the previous one's messages.
type Model struct {
	ctx      context.Context
	sessions Sessions
	newChat  func() (Chat, error)
	chat     Chat

	screen   screen
	username textinput.Model
	password textinput.Model
	focus    int

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	busy    bool
	pending string
	notice  string
	width   int
	height  int
}

func New(ctx context.Context, sessions Sessions, newChat func() (Chat, error)) (Model, error) {
	if sessions == nil {
		return Model{}, errors.New("tui: sessions must not be nil")
	}
	if newChat == nil {
		return Model{}, errors.New("tui: chat factory must not be nil")
	}

	username := textinput.New()
	username.Placeholder = "Username"
	username.CharLimit = 128
	password := textinput.New()
	password.Placeholder = "Password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	input := textinput.New()
	input.Placeholder = chatPlaceholder
	input.CharLimit = 4000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		ctx:      ctx,
		sessions: sessions,
		newChat:  newChat,
		username: username,
		password: password,
		input:    input,
		spinner:  sp,
		viewport: viewport.New(defaultWidth, defaultHeight-headerHeight-footerHeight),
		width:    defaultWidth,
		height:   defaultHeight,
	}
	if sessions.IsAuthenticated() {
		if err := m.enterChat(); err != nil {
			return Model{}, err
		}
	} else {
		m.enterLogin("")
	}
	return m, nil
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.screen == screenLogin {
			return m.updateLogin(msg)
		}
		return m.updateChat(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-headerHeight-footerHeight, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(msg.Width-6, 20)),
		)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case loginResultMsg:
		m.busy = false
		if msg.err != nil {
			m.notice = loginNotice(msg.err)
			m.password.Reset()
			return m, nil
		}
		if err := m.enterChat(); err != nil {
			m.notice = err.Error()
		}
		return m, textinput.Blink

	case replyMsg:
		m.busy = false
		failed := m.pending
		m.pending = ""
		if msg.err != nil {
			if m.input.Value() == "" {
				m.input.SetValue(failed)
			}
			return m.handleSendError(msg.err)
		}
		m.notice = ""
		m.refresh()
		return m, nil

	case logoutMsg:
		m.busy = false
		notice := noticeLoggedOut
		if msg.err != nil {
			notice = "Logged out, but the saved session could not be cleared."
		}
		m.enterLogin(notice)
		return m, textinput.Blink
	}
	return m, nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.setLoginFocus(1 - m.focus)
		return m, nil
	case tea.KeyEnter:
		if m.focus == loginFieldUsername {
			m.setLoginFocus(loginFieldPassword)
			return m, nil
		}
		if m.busy {
			return m, nil
		}
		identity, secret := m.username.Value(), m.password.Value()
		if strings.TrimSpace(identity) == "" || secret == "" {
			m.notice = "Enter a username and password."
			return m, nil
		}
		m.busy = true
		m.notice = ""
		return m, tea.Batch(m.spinner.Tick, m.login(identity, secret))
	}

	var cmd tea.Cmd
	if m.focus == loginFieldUsername {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlL:
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.logout()
	case tea.KeyEnter:
		text := m.input.Value()
		if m.busy || strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.busy = true
		m.pending = text
		m.notice = ""
		m.input.Reset()
		m.refresh()
		return m, tea.Batch(m.spinner.Tick, m.send(text))
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSendError(err error) (tea.Model, tea.Cmd) {
	switch client.CodeOf(err) {
	case client.ErrorSessionExpired:
		m.enterLogin(noticeExpired)
		return m, textinput.Blink
	case client.ErrorUnauthenticated:
		m.enterLogin("Please log in.")
		return m, textinput.Blink
	case client.ErrorNetwork:
		m.notice = "Could not reach the server. Check your connection and try again."
	case client.ErrorBackend:
		m.notice = "The server could not answer that. Please try again."
	default:
		m.notice = "Error: " + err.Error()
	}
	m.refresh()
	return m, nil
}

func loginNotice(err error) string {
	switch client.CodeOf(err) {
	case client.ErrorAuthenticationFailed:
		return noticeBadLogin
	case client.ErrorNetwork:
		return "Could not reach the server."
	case client.ErrorStorage:
		return "Could not save the session. Please try again."
	default:
		return "Login failed: " + err.Error()
	}
}

func (m Model) login(identity, secret string) tea.Cmd {
	ctx, sessions := m.ctx, m.sessions
	return func() tea.Msg {
		sess, err := sessions.Login(ctx, identity, secret)
		return loginResultMsg{session: sess, err: err}
	}
}

func (m Model) send(text string) tea.Cmd {
	ctx, chat := m.ctx, m.chat
	return func() tea.Msg {
		_, err := chat.Submit(ctx, text)
		return replyMsg{err: err}
	}
}

func (m Model) logout() tea.Cmd {
	ctx, sessions := m.ctx, m.sessions
	return func() tea.Msg {
		return logoutMsg{err: sessions.Logout(ctx)}
	}
}

func (m *Model) enterLogin(notice string) {
	m.screen = screenLogin
	m.chat = nil
	m.busy = false
	m.pending = ""
	m.notice = notice
	m.username.SetValue(m.sessions.Current().Identity)
	m.password.Reset()
	m.input.Reset()
	m.setLoginFocus(loginFieldUsername)
}

func (m *Model) enterChat() error {
	chat, err := m.newChat()
	if err != nil {
		return fmt.Errorf("tui: start conversation: %w", err)
	}
	m.chat = chat
	m.screen = screenChat
	m.notice = ""
	m.password.Reset()
	m.username.Blur()
	m.password.Blur()
	m.input.Focus()
	m.refresh()
	return nil
}

func (m *Model) setLoginFocus(field int) {
	m.focus = field
	if field == loginFieldUsername {
		m.username.Focus()
		m.password.Blur()
		return
	}
	m.password.Focus()
	m.username.Blur()
}

func (m *Model) refresh() {
	if m.screen != screenChat {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

// Run blocks until the user quits.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
