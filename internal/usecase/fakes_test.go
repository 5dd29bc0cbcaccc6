package usecase

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/sashabaranov/go-openai"
)

// scriptedLLM replays responses in order. When the script runs out the last
// response is repeated.
type scriptedLLM struct {
	mu        sync.Mutex
	responses []openai.ChatCompletionResponse
	err       error
	requests  []openai.ChatCompletionRequest
	reply     func(req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

func (s *scriptedLLM) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.Messages = append([]openai.ChatCompletionMessage(nil), req.Messages...)
	s.requests = append(s.requests, req)
	if s.reply != nil {
		return s.reply(req)
	}
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	if len(s.responses) == 0 {
		return openai.ChatCompletionResponse{}, errors.New("no scripted response")
	}
	idx := len(s.requests) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func toolCallResponse(calls ...openai.ToolCall) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, ToolCalls: calls}},
		},
	}
}

func toolCall(id, name, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:   id,
		Type: openai.ToolTypeFunction,
		Function: openai.FunctionCall{
			Name:      name,
			Arguments: args,
		},
	}
}

type sentMessage struct {
	ChannelID string
	Text      string
}

type reaction struct {
	ChannelID string
	MessageID string
	Emoji     string
}

type fakeTransport struct {
	mu         sync.Mutex
	sent       []sentMessage
	failFor    map[string]error
	history    map[string][]model.InboundMessage
	historyErr error
	channels   map[string]model.Channel
	reactions  []reaction
	events     []model.ScheduledEvent
	created    []model.ScheduledEvent
	nextID     int
	// reactors maps "messageID/emojiID" to the users who reacted
	reactors map[string][]string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		failFor:  make(map[string]error),
		history:  make(map[string][]model.InboundMessage),
		channels: make(map[string]model.Channel),
		reactors: make(map[string][]string),
	}
}

func (f *fakeTransport) Message(_ context.Context, channelID, messageID string) (model.InboundMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.history[channelID] {
		if msg.ID == messageID {
			return msg, nil
		}
	}
	return model.InboundMessage{}, fmt.Errorf("unknown message %s", messageID)
}

func (f *fakeTransport) ReactionUsers(_ context.Context, _, messageID, emojiID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users, ok := f.reactors[messageID+"/"+emojiID]
	if !ok {
		return nil, fmt.Errorf("unknown reaction %s", emojiID)
	}
	return users, nil
}

func (f *fakeTransport) Send(_ context.Context, channelID, text string) (model.MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[channelID]; err != nil {
		return model.MessageHandle{}, err
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Text: text})
	return model.MessageHandle{ID: fmt.Sprintf("m%d", f.nextID), ChannelID: channelID}, nil
}

// History serves f.history[channelID], which tests store newest first like
// Discord returns it. Before skips up to and including that message id.
func (f *fakeTransport) History(_ context.Context, channelID string, opts model.HistoryOptions) iter.Seq2[model.InboundMessage, error] {
	f.mu.Lock()
	messages := append([]model.InboundMessage(nil), f.history[channelID]...)
	historyErr := f.historyErr
	f.mu.Unlock()
	if opts.Before != "" {
		for i, msg := range messages {
			if msg.ID == opts.Before {
				messages = messages[i+1:]
				break
			}
		}
	}
	return func(yield func(model.InboundMessage, error) bool) {
		if historyErr != nil {
			yield(model.InboundMessage{}, historyErr)
			return
		}
		for i, msg := range messages {
			if opts.Limit > 0 && i >= opts.Limit {
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

func (f *fakeTransport) GetChannel(_ context.Context, channelID string) (model.Channel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	return ch, ok
}

func (f *fakeTransport) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reaction{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return nil
}

func (f *fakeTransport) CreateScheduledEvent(_ context.Context, guildID string, event model.ScheduledEvent) (model.ScheduledEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	event.ID = fmt.Sprintf("e%d", len(f.created)+1)
	event.URL = fmt.Sprintf("https://discord.com/events/%s/%s", guildID, event.ID)
	f.created = append(f.created, event)
	return event, nil
}

func (f *fakeTransport) ScheduledEvents(context.Context, string) ([]model.ScheduledEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ScheduledEvent(nil), f.events...), nil
}

func (f *fakeTransport) sentTo(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, msg := range f.sent {
		if msg.ChannelID == channelID {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type announcement struct {
	Text  string
	Color string
}

type fakeGame struct {
	mu            sync.Mutex
	announcements []announcement
	err           error
}

func (g *fakeGame) Announce(_ context.Context, text, color string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.announcements = append(g.announcements, announcement{Text: text, Color: color})
	return nil
}

func (g *fakeGame) all() []announcement {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]announcement(nil), g.announcements...)
}

type fakePlayers struct {
	list string
	err  error
}

func (p fakePlayers) ActivePlayers(context.Context) (string, error) {
	return p.list, p.err
}

type staticGameContext []string

func (s staticGameContext) GameContext(n int) []string {
	if n > 0 && len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

// fixedClock returns a clock standing at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time {
		return t
	}
}

// userMessages returns the contents of the user-role messages of the
// request with index call, in order.
func (s *scriptedLLM) userMessages(call int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, msg := range s.requests[call].Messages {
		if msg.Role == openai.ChatMessageRoleUser {
			out = append(out, msg.Content)
		}
	}
	return out
}
