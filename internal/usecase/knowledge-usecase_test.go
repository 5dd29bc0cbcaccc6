package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iamvkosarev/amc-discord/config"
	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/ratelimit"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mondayAfternoon = time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)

func agentTestConfig() config.Agent {
	return config.Agent{
		MaxIterations:       20,
		InGameMaxIterations: 10,
		LocalTimezone:       "Asia/Bangkok",
		ServerName:          "ASEAN Motor Club",
		InGamePrefix:        "/bot",
		InGameAnswerLimit:   300,
		HistoryLimit:        20,
	}
}

func newTestKnowledge(t *testing.T, llm *scriptedLLM, transport *fakeTransport) *KnowledgeUsecase {
	t.Helper()
	knowledge, err := NewKnowledgeUsecase(
		KnowledgeUsecaseDeps{
			Agent:     NewAgentUsecase(AgentUsecaseDeps{LLM: llm}, AgentConfig{Name: "knowledge", MaxIterations: 20}),
			Transport: transport,
			Reactions: transport,
			Clock:     fixedClock(mondayAfternoon),
		},
		agentTestConfig(),
		[]ratelimit.Window{{MaxCalls: 5, Period: 10 * time.Minute}},
		"# Rules\nBe nice.",
	)
	require.NoError(t, err)
	return knowledge
}

func botCommand(question string) model.Command {
	return model.Command{
		Name:      model.CommandBot,
		Options:   map[string]string{"question": question},
		User:      model.Author{ID: "u1", DisplayName: "carol"},
		ChannelID: "general",
		GuildID:   "g1",
	}
}

func TestKnowledgeUsecase_Ask(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{textResponse("The convoy starts at **20:00**.")}}
	transport := newFakeTransport()
	transport.history["general"] = []model.InboundMessage{
		{ID: "2", Content: "anyone up for a convoy?", Author: model.Author{DisplayName: "bob"}},
		{ID: "1", Content: "hi all", Author: model.Author{DisplayName: "alice"}},
	}
	knowledge := newTestKnowledge(t, llm, transport)

	reply := knowledge.Ask(context.Background(), botCommand("When is the convoy?"))

	assert.False(t, reply.Ephemeral)
	assert.Equal(t, []string{"The convoy starts at **20:00**."}, reply.Messages)
	require.Equal(t, 1, llm.calls())
	assert.Contains(t, llm.requests[0].Messages[0].Content, "ASEAN Motor Club")
	assert.Contains(t, llm.requests[0].Messages[0].Content, "Be nice.")
	assert.Equal(
		t, []string{
			"## Context\nThe current date and time (Asia/Bangkok) is: Monday, 2026-01-05 13:00",
			"## Previous messages:\n### alice:\nhi all\n\n### bob:\nanyone up for a convoy?\n",
			"### Message from carol\nWhen is the convoy?",
		}, llm.userMessages(0),
	)
}

func TestKnowledgeUsecase_HistoryListsReactions(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{textResponse("ok")}}
	transport := newFakeTransport()
	transport.history["general"] = []model.InboundMessage{
		{
			ID: "1", Content: "convoy at 20:00", Author: model.Author{DisplayName: "alice"},
			Reactions: []model.Reaction{
				{Emoji: "👍", EmojiID: "👍", Count: 2},
				{Emoji: "<:amc:42>", EmojiID: "amc:42", Count: 3},
			},
		},
	}
	transport.reactors["1/👍"] = []string{"bob", "carol"}
	knowledge := newTestKnowledge(t, llm, transport)

	knowledge.Ask(context.Background(), botCommand("who is coming?"))

	require.Equal(t, 1, llm.calls())
	assert.Equal(
		t,
		"## Previous messages:\n### alice:\nconvoy at 20:00\n**Reactions**\n👍: bob, carol\n<:amc:42>: 3",
		llm.userMessages(0)[1],
	)
}

func TestKnowledgeUsecase_HistoryFailureStillAnswers(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{textResponse("ok")}}
	transport := newFakeTransport()
	transport.historyErr = errors.New("missing access")
	knowledge := newTestKnowledge(t, llm, transport)

	reply := knowledge.Ask(context.Background(), botCommand("hi"))

	assert.Equal(t, []string{"ok"}, reply.Messages)
	assert.Len(t, llm.userMessages(0), 2)
}

func TestKnowledgeUsecase_RateLimit(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{textResponse("ok")}}
	knowledge := newTestKnowledge(t, llm, newFakeTransport())
	ctx := context.Background()

	for range 5 {
		assert.Equal(t, []string{"ok"}, knowledge.Ask(ctx, botCommand("hi")).Messages)
	}
	reply := knowledge.Ask(ctx, botCommand("hi"))

	assert.True(t, reply.Ephemeral)
	assert.Equal(t, []string{"You're asking too quickly. Try again in 10 min."}, reply.Messages)
	assert.Equal(t, 5, llm.calls())

	other := botCommand("hi")
	other.User.ID = "u2"
	assert.Equal(t, []string{"ok"}, knowledge.Ask(ctx, other).Messages)
}

func TestKnowledgeUsecase_Failures(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("upstream 502")}
	knowledge := newTestKnowledge(t, llm, newFakeTransport())

	reply := knowledge.Ask(context.Background(), botCommand("hi"))
	assert.Equal(t, []string{MessageAgentFailed}, reply.Messages)

	reply = knowledge.Ask(context.Background(), botCommand("   "))
	assert.True(t, reply.Ephemeral)
	assert.Equal(t, []string{MessageEmptyQuestion}, reply.Messages)
}

func TestKnowledgeUsecase_LongAnswerIsSplit(t *testing.T) {
	paragraph := strings.Repeat("word ", 300)
	answer := strings.Join([]string{paragraph, paragraph, paragraph}, "\n\n")
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{textResponse(answer)}}
	knowledge := newTestKnowledge(t, llm, newFakeTransport())

	reply := knowledge.Ask(context.Background(), botCommand("essay please"))

	require.Greater(t, len(reply.Messages), 1)
	for _, msg := range reply.Messages {
		assert.LessOrEqual(t, len([]rune(msg)), 2000)
	}
}

func TestHumanizeWait(t *testing.T) {
	assert.Equal(t, "1s", humanizeWait(0))
	assert.Equal(t, "42s", humanizeWait(41500*time.Millisecond))
	assert.Equal(t, "2 min", humanizeWait(61*time.Second))
	assert.Equal(t, "15 min", humanizeWait(15*time.Minute))
}
