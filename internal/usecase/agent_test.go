package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"analytica-chat/internal/domain"
	"analytica-chat/internal/integrations/openai"
	"analytica-chat/internal/repository"
)

type mockLLM struct {
	answer    string
	err       error
	captured  []domain.ChatMessage
	model     string
	callCount int
}

func (m *mockLLM) Chat(_ context.Context, model string, msgs []domain.ChatMessage) (string, error) {
	m.callCount++
	m.model = model
	m.captured = msgs
	return m.answer, m.err
}

type mockHistory struct {
	history      []domain.Turn
	turnCount    int
	historyErr   error
	turnCountErr error
	saveErr      error

	historySessionID string
	historyLimit     int

	savedSessionID string
	savedUserID    string
	savedMessage   string
	savedAnswer    string
	savedTurns     int
	saveInvoked    bool
}

func (m *mockHistory) GetTurnCount(_ context.Context, _ string) (int, error) {
	return m.turnCount, m.turnCountErr
}

func (m *mockHistory) GetHistory(_ context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	m.historySessionID = sessionID
	m.historyLimit = limit
	return m.history, m.historyErr
}

func (m *mockHistory) SaveCompletedTurn(_ context.Context, sessionID, userID, message, answer string, turns int) error {
	m.saveInvoked = true
	m.savedSessionID = sessionID
	m.savedUserID = userID
	m.savedMessage = message
	m.savedAnswer = answer
	m.savedTurns = turns
	return m.saveErr
}

func testSettings() staticSettings {
	return staticSettings{s: Settings{Username: "analyst", Model: "gpt-4o-mini", JWTSecret: "k", PasswordHash: "h"}}
}

func newTestAgent(t *testing.T, llm LLMClient, h HistoryStore) *AgentService {
	t.Helper()
	svc, err := NewAgentService(testSettings(), llm, h, 10, 50)
	require.NoError(t, err)
	return svc
}

func TestNewAgentService_ValidatesDependencies(t *testing.T) {
	_, err := NewAgentService(nil, &mockLLM{}, &mockHistory{}, 10, 50)
	require.Error(t, err)

	_, err = NewAgentService(testSettings(), nil, &mockHistory{}, 10, 50)
	require.Error(t, err)

	_, err = NewAgentService(testSettings(), &mockLLM{}, nil, 10, 50)
	require.Error(t, err)

	svc, err := NewAgentService(testSettings(), &mockLLM{}, &mockHistory{}, 0, 0)
	require.NoError(t, err)
	require.Equal(t, defaultMaxContext, svc.maxContextItems)
	require.Equal(t, defaultMaxMessage, svc.maxMessageLen)
}

func TestReply_HappyPath(t *testing.T) {
	llm := &mockLLM{answer: "Revenue grew **12%**."}
	h := &mockHistory{turnCount: 2}
	svc := newTestAgent(t, llm, h)

	out, err := svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "  How did Q3 go?  "})
	require.NoError(t, err)
	require.Equal(t, "Revenue grew **12%**.", out.Response)
	require.Equal(t, "analyst_default_session", out.SessionID)

	require.Equal(t, "gpt-4o-mini", llm.model)
	require.Equal(t, "analyst_default_session", h.historySessionID)
	require.Equal(t, 10, h.historyLimit)

	require.True(t, h.saveInvoked)
	require.Equal(t, "analyst_default_session", h.savedSessionID)
	require.Equal(t, "analyst", h.savedUserID)
	require.Equal(t, "How did Q3 go?", h.savedMessage)
	require.Equal(t, "Revenue grew **12%**.", h.savedAnswer)
	require.Equal(t, 3, h.savedTurns)
}

func TestReply_PromptIncludesCompletedHistory(t *testing.T) {
	llm := &mockLLM{answer: "ok"}
	h := &mockHistory{history: []domain.Turn{
		{Text: "first question", Answer: "first answer", Status: repository.StatusComplete},
		{Text: "dangling", Status: "pending"},
		{Text: "second question", Answer: "second answer", Status: repository.StatusComplete},
	}}
	svc := newTestAgent(t, llm, h)

	_, err := svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "third"})
	require.NoError(t, err)

	require.Len(t, llm.captured, 6)
	require.Equal(t, domain.RoleSystem, llm.captured[0].Role)
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "first question"}, llm.captured[1])
	require.Equal(t, domain.ChatMessage{Role: domain.RoleAssistant, Content: "first answer"}, llm.captured[2])
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "second question"}, llm.captured[3])
	require.Equal(t, domain.ChatMessage{Role: domain.RoleAssistant, Content: "second answer"}, llm.captured[4])
	require.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "third"}, llm.captured[5])
}

func TestReply_ValidationErrors(t *testing.T) {
	llm := &mockLLM{answer: "unused"}
	svc := newTestAgent(t, llm, &mockHistory{})

	_, err := svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "   "})
	expectUsecaseError(t, err, ErrorInvalidInput, "empty_message")

	_, err = svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: strings.Repeat("a", 51)})
	expectUsecaseError(t, err, ErrorInvalidInput, "message_too_long")

	_, err = svc.Reply(context.Background(), ReplyInput{Message: "hello"})
	expectUsecaseError(t, err, ErrorUnauthorized, "missing_user")

	require.Zero(t, llm.callCount)
}

func TestReply_LLMErrors(t *testing.T) {
	rateLimited := fmt.Errorf("openai: request failed: %w", &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests})
	svc := newTestAgent(t, &mockLLM{err: rateLimited}, &mockHistory{})
	_, err := svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "hi"})
	expectUsecaseError(t, err, ErrorRateLimited, "llm_rate_limited")

	serverErr := &openai.HTTPStatusError{StatusCode: http.StatusBadGateway}
	svc = newTestAgent(t, &mockLLM{err: serverErr}, &mockHistory{})
	_, err = svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "hi"})
	expectUsecaseError(t, err, ErrorUpstream, "llm_error")

	h := &mockHistory{}
	svc = newTestAgent(t, &mockLLM{err: errors.New("dial tcp: refused")}, h)
	_, err = svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "hi"})
	expectUsecaseError(t, err, ErrorUpstream, "llm_error")
	require.False(t, h.saveInvoked)
}

func TestReply_EmptyAgentResponse(t *testing.T) {
	h := &mockHistory{}
	svc := newTestAgent(t, &mockLLM{answer: " \n "}, h)

	_, err := svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "hi"})
	expectUsecaseError(t, err, ErrorInternal, "empty_agent_response")
	require.False(t, h.saveInvoked)
}

func TestReply_StorageErrors(t *testing.T) {
	boom := errors.New("dynamodb unavailable")

	svc := newTestAgent(t, &mockLLM{answer: "ok"}, &mockHistory{turnCountErr: boom})
	_, err := svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "hi"})
	expectUsecaseError(t, err, ErrorInternal, "dynamodb_turn_count_error")

	svc = newTestAgent(t, &mockLLM{answer: "ok"}, &mockHistory{historyErr: boom})
	_, err = svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "hi"})
	expectUsecaseError(t, err, ErrorInternal, "dynamodb_history_error")

	svc = newTestAgent(t, &mockLLM{answer: "ok"}, &mockHistory{saveErr: boom})
	_, err = svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "hi"})
	expectUsecaseError(t, err, ErrorInternal, "dynamodb_write_error")
	require.ErrorIs(t, err, boom)
}

func TestReply_SettingsFailure(t *testing.T) {
	svc, err := NewAgentService(staticSettings{err: errors.New("ssm down")}, &mockLLM{answer: "ok"}, &mockHistory{}, 10, 50)
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), ReplyInput{UserID: "analyst", Message: "hi"})
	expectUsecaseError(t, err, ErrorInternal, "ssm_load_error")
}
