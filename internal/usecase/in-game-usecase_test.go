package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/ratelimit"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inGameFixture struct {
	llm       *scriptedLLM
	game      *fakeGame
	transport *fakeTransport
	usecase   *InGameUsecase
}

func newInGameFixture(t *testing.T, llm *scriptedLLM, players PlayerLister) inGameFixture {
	t.Helper()
	fixture := inGameFixture{
		llm:       llm,
		game:      &fakeGame{},
		transport: newFakeTransport(),
	}
	usecase, err := NewInGameUsecase(
		InGameUsecaseDeps{
			Agent:   NewAgentUsecase(AgentUsecaseDeps{LLM: llm}, AgentConfig{Name: "in-game", MaxIterations: 10}),
			Game:    fixture.game,
			Players: players,
			Events:  fixture.transport,
			Context: staticGameContext{"[game] alice: hi", "[game] bob: where is the depot?"},
			Clock:   fixedClock(mondayAfternoon),
		},
		InGameConfig{
			Agent:   agentTestConfig(),
			GuildID: "g1",
			Color:   "53EAFD",
			Limits: []ratelimit.Window{
				{MaxCalls: 3, Period: 5 * time.Minute},
				{MaxCalls: 4, Period: 15 * time.Minute},
			},
			Knowledge: "Depots are marked on the map.",
		},
	)
	require.NoError(t, err)
	fixture.usecase = usecase
	return fixture
}

func TestInGameUsecase_Question(t *testing.T) {
	f := newInGameFixture(t, &scriptedLLM{}, nil)
	tests := []struct {
		content  string
		question string
		ok       bool
	}{
		{"/bot where is the depot?", "where is the depot?", true},
		{"/BOT   how do I tow?", "how do I tow?", true},
		{"  /bot", "", true},
		{"/bottle of water", "", false},
		{"hello /bot", "", false},
		{"/bo", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			question, ok := f.usecase.Question(tt.content)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.question, question)
		})
	}
}

func TestInGameUsecase_Answer(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{
		textResponse("The depot is in **Gwangjin**.\nDrive `north` from the bridge."),
	}}
	f := newInGameFixture(t, llm, fakePlayers{list: "alice, bob"})
	f.transport.events = []model.ScheduledEvent{
		{Name: "Old convoy", Start: mondayAfternoon.Add(-time.Hour)},
		{Name: "Sunday convoy", Start: mondayAfternoon.Add(2 * time.Hour), Location: "Jeju", Description: "Bring a truck."},
	}

	require.NoError(t, f.usecase.Answer(context.Background(), "bob", "where is the depot?"))

	assert.Equal(
		t, []announcement{{Text: "bob: The depot is in Gwangjin. Drive north from the bridge.", Color: "53EAFD"}},
		f.game.all(),
	)
	require.Equal(t, 1, llm.calls())
	assert.Contains(t, llm.requests[0].Messages[0].Content, "Depots are marked on the map.")
	assert.Equal(
		t, []string{
			"# Upcoming events:\n\n## Sunday convoy\nDate/Time: Monday, 2026-01-05 15:00\nLocation: Jeju\nBring a truck.",
			"## Context\nTime: Monday, 2026-01-05 13:00\n\n### Online Players:\nalice, bob\n\n" +
				"### Previous messages:\n[game] alice: hi\n[game] bob: where is the depot?",
			"### Message from bob:\nwhere is the depot?",
		}, llm.userMessages(0),
	)
}

func TestInGameUsecase_UnknownPlayers(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{textResponse("ok")}}
	f := newInGameFixture(t, llm, fakePlayers{err: errors.New("timeout")})

	require.NoError(t, f.usecase.Answer(context.Background(), "bob", "hi"))

	messages := llm.userMessages(0)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0], "### Online Players:\nunknown\n")
}

func TestInGameUsecase_RateLimit(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{textResponse("ok")}}
	f := newInGameFixture(t, llm, nil)
	ctx := context.Background()

	for range 3 {
		require.NoError(t, f.usecase.Answer(ctx, "bob", "hi"))
	}
	require.NoError(t, f.usecase.Answer(ctx, "bob", "hi"))
	require.NoError(t, f.usecase.Answer(ctx, "alice", "hi"))

	announcements := f.game.all()
	require.Len(t, announcements, 5)
	assert.Equal(t, "bob: please wait 5 min before asking again.", announcements[3].Text)
	assert.Equal(t, "alice: ok", announcements[4].Text)
	assert.Equal(t, 4, llm.calls())
}

func TestInGameUsecase_Failures(t *testing.T) {
	f := newInGameFixture(t, &scriptedLLM{err: errors.New("boom")}, nil)

	require.NoError(t, f.usecase.Answer(context.Background(), "bob", "hi"))
	assert.Equal(t, "bob: sorry, I can't answer that right now.", f.game.all()[0].Text)

	require.NoError(t, f.usecase.Answer(context.Background(), "bob", ""))
	assert.Len(t, f.game.all(), 1)

	f.game.err = errors.New("game offline")
	assert.Error(t, f.usecase.Answer(context.Background(), "bob", "hi"))
}

func TestInGameUsecase_AnswerIsTruncated(t *testing.T) {
	llm := &scriptedLLM{responses: []openai.ChatCompletionResponse{textResponse(strings.Repeat("a", 500))}}
	f := newInGameFixture(t, llm, nil)

	require.NoError(t, f.usecase.Answer(context.Background(), "bob", "long please"))

	text := f.game.all()[0].Text
	assert.Equal(t, 300, len([]rune(text)))
	assert.True(t, strings.HasPrefix(text, "bob: aaa"))
	assert.True(t, strings.HasSuffix(text, "…"))
}
