package usecase

import (
	"strings"

	"analytica-chat/internal/domain"
	"analytica-chat/internal/repository"
)

func buildPromptMessages(message string, history []domain.Turn) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: agentInstructions()},
	}
	for _, t := range history {
		messages = append(messages, historyToPromptMessages(t)...)
	}
	return append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: message})
}

func agentInstructions() string {
	return strings.Join([]string{
		"You are a data analyst assistant.",
		"Help the user answer questions about their data.",
		"Reason about the request step by step, then give a clear, plain-language answer.",
		"When a calculation is involved, show the numbers you used.",
		"If the question cannot be answered from what the user has provided, say what is missing.",
	}, "\n")
}

// historyToPromptMessages replays only completed turns.
func historyToPromptMessages(t domain.Turn) []domain.ChatMessage {
	if t.Status != repository.StatusComplete {
		return nil
	}
	question := strings.TrimSpace(t.Text)
	answer := strings.TrimSpace(t.Answer)
	if question == "" || answer == "" {
		return nil
	}
	return []domain.ChatMessage{
		{Role: domain.RoleUser, Content: question},
		{Role: domain.RoleAssistant, Content: answer},
	}
}
