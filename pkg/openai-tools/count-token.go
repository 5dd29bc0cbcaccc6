package openai_tools

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

const fallbackEncoding = "cl100k_base"

var (
	encodingsMu sync.Mutex
	encodings   = make(map[string]*tiktoken.Tiktoken)
)

// CountToken estimates the prompt size of messages the way the OpenAI
// cookbook does for chat models. Models unknown to tiktoken (OpenRouter ids
// like "google/gemini-...") are counted with cl100k_base.
func CountToken(messages []openai.ChatCompletionMessage, model string) (int, error) {
	tkm, err := encodingFor(model)
	if err != nil {
		return 0, err
	}

	const (
		tokensPerMessage = 3
		tokensPerName    = 1
	)
	numTokens := 0
	for _, message := range messages {
		numTokens += tokensPerMessage
		numTokens += len(tkm.Encode(message.Content, nil, nil))
		numTokens += len(tkm.Encode(message.Role, nil, nil))
		if message.Name != "" {
			numTokens += len(tkm.Encode(message.Name, nil, nil))
			numTokens += tokensPerName
		}
	}
	// every reply is primed with <|start|>assistant<|message|>
	numTokens += 3
	return numTokens, nil
}

// CountTextToken counts the tokens of a bare string.
func CountTextToken(text, model string) (int, error) {
	tkm, err := encodingFor(model)
	if err != nil {
		return 0, err
	}
	return len(tkm.Encode(text, nil, nil)), nil
}

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()

	if tkm, ok := encodings[model]; ok {
		return tkm, nil
	}
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tkm, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
		}
	}
	encodings[model] = tkm
	return tkm, nil
}
