package model

import "github.com/sashabaranov/go-openai"

// Conversation is the message list of one agent run. It is never shared
// between runs.
type Conversation []openai.ChatCompletionMessage

func NewConversation(systemPrompt string, userMessages ...string) Conversation {
	conversation := make(Conversation, 0, len(userMessages)+1)
	if systemPrompt != "" {
		conversation = append(
			conversation, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
		)
	}
	for _, msg := range userMessages {
		conversation = append(
			conversation, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg,
			},
		)
	}
	return conversation
}

// UnansweredToolCalls lists tool call ids that do not have a matching
// tool-role message.
func (c Conversation) UnansweredToolCalls() []string {
	answered := make(map[string]int)
	for _, msg := range c {
		if msg.Role == openai.ChatMessageRoleTool {
			answered[msg.ToolCallID]++
		}
	}
	var missing []string
	for _, msg := range c {
		for _, call := range msg.ToolCalls {
			if answered[call.ID] != 1 {
				missing = append(missing, call.ID)
			}
		}
	}
	return missing
}
