package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"analytica-chat/internal/domain"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(1, 2)
)

func (m Model) View() string {
	if m.screen == screenLogin {
		return m.loginView()
	}
	return m.chatView()
}

func (m Model) loginView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Analytica") + "\n")
	b.WriteString(mutedStyle.Render("Log in to start chatting") + "\n\n")
	b.WriteString(m.username.View() + "\n")
	b.WriteString(m.password.View() + "\n\n")
	if m.busy {
		b.WriteString(m.spinner.View() + " Logging in...\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	b.WriteString(mutedStyle.Render("tab switch field • enter log in • ctrl+c quit"))
	return panelStyle.Render(b.String())
}

func (m Model) chatView() string {
	identity := m.sessions.Current().Identity
	header := titleStyle.Render("Analytica") + "  " +
		mutedStyle.Render("logged in as "+identity+" • ctrl+l log out • ctrl+c quit")

	var status string
	switch {
	case m.busy:
		status = m.spinner.View() + " Thinking..."
	case m.notice != "":
		status = noticeStyle.Render(m.notice)
	}

	return strings.Join([]string{
		header,
		"",
		m.viewport.View(),
		status,
		m.input.View(),
	}, "\n")
}

func (m Model) renderMessages() string {
	var messages []domain.ChatMessage
	if m.chat != nil {
		messages = m.chat.Messages()
	}
	if len(messages) == 0 && m.pending == "" {
		return panelStyle.Render(titleStyle.Render(welcomeTitle) + "\n\n" + welcomeBody)
	}

	var b strings.Builder
	for _, msg := range messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	if m.pending != "" {
		b.WriteString(m.renderMessage(domain.ChatMessage{Role: domain.RoleUser, Content: m.pending}))
	}
	return b.String()
}

func (m Model) renderMessage(msg domain.ChatMessage) string {
	if msg.Role == domain.RoleUser {
		return userStyle.Render("You") + "\n" + msg.Content + "\n"
	}
	body := msg.Content
	if m.renderer != nil {
		if out, err := m.renderer.Render(msg.Content); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}
	return titleStyle.Render("Analytica") + "\n" + body + "\n"
}
