package domain

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is a single chat turn. The client log only ever holds user and
// assistant messages; system messages exist for LLM prompt assembly.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered, append-only log of chat messages.
type Conversation struct {
	messages []ChatMessage
}

// Append adds messages to the end of the log in the given order.
func (c *Conversation) Append(msgs ...ChatMessage) {
	c.messages = append(c.messages, msgs...)
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []ChatMessage {
	out := make([]ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	return len(c.messages)
}
