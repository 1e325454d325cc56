package client

import (
	"context"
	"errors"
	"sync"

	"analytica-chat/internal/domain"
)

// Sender sends one message and returns the reply. *Transport satisfies it.
type Sender interface {
	Send(ctx context.Context, message string) (string, error)
}

// Conversation is the client-side chat log. A successful exchange appends the
// user message and the assistant reply together; a failed one appends
// nothing.
type Conversation struct {
	sender Sender

	mu  sync.Mutex
	log domain.Conversation
}

func NewConversation(s Sender) (*Conversation, error) {
	if s == nil {
		return nil, errors.New("client: sender must not be nil")
	}
	return &Conversation{sender: s}, nil
}

// Submit sends text and, on success, records both sides of the exchange.
// It returns the assistant message.
func (c *Conversation) Submit(ctx context.Context, text string) (domain.ChatMessage, error) {
	reply, err := c.sender.Send(ctx, text)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	answer := domain.ChatMessage{Role: domain.RoleAssistant, Content: reply}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Append(domain.ChatMessage{Role: domain.RoleUser, Content: text}, answer)
	return answer, nil
}

func (c *Conversation) Messages() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Messages()
}
