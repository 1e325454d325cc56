package usecase

import (
	"context"
	"errors"
	"strings"

	"analytica-chat/internal/domain"
)

const (
	defaultMaxContext = 20
	defaultMaxMessage = 4000
)

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

type HistoryStore interface {
	GetTurnCount(ctx context.Context, sessionID string) (int, error)
	GetHistory(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error)
	SaveCompletedTurn(ctx context.Context, sessionID, userID, message, answer string, turns int) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// AgentService answers chat messages for an authenticated user. Each user has
// one rolling agent session whose history is replayed to the model.
type AgentService struct {
	settings        SettingsSource
	llm             LLMClient
	history         HistoryStore
	maxContextItems int
	maxMessageLen   int
}

type ReplyInput struct {
	UserID  string
	Message string
}

type ReplyOutput struct {
	Response  string
	SessionID string
}

func NewAgentService(s SettingsSource, llm LLMClient, h HistoryStore, maxContextItems, maxMessageLen int) (*AgentService, error) {
	if s == nil {
		return nil, errors.New("usecase: settings source must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if h == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	if maxContextItems <= 0 {
		maxContextItems = defaultMaxContext
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &AgentService{
		settings:        s,
		llm:             llm,
		history:         h,
		maxContextItems: maxContextItems,
		maxMessageLen:   maxMessageLen,
	}, nil
}

// SessionID is the agent session a user's messages belong to.
func SessionID(userID string) string {
	return userID + "_default_session"
}

func (s *AgentService) Reply(ctx context.Context, in ReplyInput) (ReplyOutput, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return ReplyOutput{}, newError(ErrorUnauthorized, "missing_user", nil)
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ReplyOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessageLen {
		return ReplyOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	cfg, err := s.settings.Settings(ctx)
	if err != nil {
		return ReplyOutput{}, newError(ErrorInternal, "ssm_load_error", err)
	}

	sessionID := SessionID(userID)
	turns, err := s.history.GetTurnCount(ctx, sessionID)
	if err != nil {
		return ReplyOutput{}, newError(ErrorInternal, "dynamodb_turn_count_error", err)
	}
	history, err := s.history.GetHistory(ctx, sessionID, s.maxContextItems)
	if err != nil {
		return ReplyOutput{}, newError(ErrorInternal, "dynamodb_history_error", err)
	}

	answer, err := s.llm.Chat(ctx, cfg.Model, buildPromptMessages(message, history))
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return ReplyOutput{}, newError(ErrorRateLimited, "llm_rate_limited", err)
		}
		return ReplyOutput{}, newError(ErrorUpstream, "llm_error", err)
	}
	if strings.TrimSpace(answer) == "" {
		return ReplyOutput{}, newError(ErrorInternal, "empty_agent_response", nil)
	}

	if err := s.history.SaveCompletedTurn(ctx, sessionID, userID, message, answer, turns+1); err != nil {
		return ReplyOutput{}, newError(ErrorInternal, "dynamodb_write_error", err)
	}
	return ReplyOutput{Response: answer, SessionID: sessionID}, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
