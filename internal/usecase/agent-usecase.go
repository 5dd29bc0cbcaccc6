package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/sashabaranov/go-openai"
)

const (
	MessageAgentCapped        = "I'm sorry, I couldn't complete your request due to complexity. Please try simplifying your question."
	MessageAgentEmptyResponse = "I received an empty response from my AI backend."
	MessageAgentNoContent     = "I don't have a response."
)

type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type AgentState int

const (
	AgentStateAwaitingModel AgentState = iota
	AgentStateExecutingTools
	AgentStateDone
)

func (s AgentState) String() string {
	switch s {
	case AgentStateAwaitingModel:
		return "awaiting_model"
	case AgentStateExecutingTools:
		return "executing_tools"
	default:
		return "done"
	}
}

type AgentConfig struct {
	Name            string
	Model           string
	MaxIterations   int
	ReasoningEffort string
}

type AgentUsecaseDeps struct {
	LLM   ChatCompleter
	Tools *ToolRegistry
}

type AgentUsecase struct {
	AgentUsecaseDeps
	cfg   AgentConfig
	tools []openai.Tool
}

type AgentResult struct {
	Answer       string
	Conversation model.Conversation
	Iterations   int
	Capped       bool
}

type agentRun struct {
	id           uuid.UUID
	state        AgentState
	conversation model.Conversation
	pending      []openai.ToolCall
	iterations   int
	answer       string
	capped       bool
}

func NewAgentUsecase(deps AgentUsecaseDeps, cfg AgentConfig) *AgentUsecase {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 20
	}
	if cfg.Name == "" {
		cfg.Name = "agent"
	}
	var tools []openai.Tool
	if deps.Tools != nil {
		tools = deps.Tools.OpenAITools()
	}
	return &AgentUsecase{
		AgentUsecaseDeps: deps,
		cfg:              cfg,
		tools:            tools,
	}
}

func (a *AgentUsecase) MaxIterations() int {
	return a.cfg.MaxIterations
}

// Run drives the conversation until the model answers without tool calls or
// the iteration cap is reached. The caller's slice is never mutated.
func (a *AgentUsecase) Run(ctx context.Context, conversation model.Conversation, tc model.ToolContext) (AgentResult, error) {
	run := &agentRun{
		id:           uuid.New(),
		state:        AgentStateAwaitingModel,
		conversation: append(model.Conversation(nil), conversation...),
	}

	for run.state != AgentStateDone {
		switch run.state {
		case AgentStateAwaitingModel:
			if err := a.awaitModel(ctx, run); err != nil {
				return run.result(), err
			}
		case AgentStateExecutingTools:
			a.executeTools(ctx, run, tc)
		}
	}

	log.Printf(
		"[%s] run %s finished after %d iteration(s), capped=%t", a.cfg.Name, run.id, run.iterations, run.capped,
	)
	return run.result(), nil
}

func (a *AgentUsecase) awaitModel(ctx context.Context, run *agentRun) error {
	if run.iterations >= a.cfg.MaxIterations {
		log.Printf("[%s] run %s reached the cap of %d iterations", a.cfg.Name, run.id, a.cfg.MaxIterations)
		run.answer = MessageAgentCapped
		run.capped = true
		run.state = AgentStateDone
		return nil
	}
	run.iterations++

	resp, err := a.LLM.CreateChatCompletion(ctx, a.request(run.conversation))
	if err != nil {
		return fmt.Errorf("failed to get completion on iteration %d: %w", run.iterations, err)
	}
	if len(resp.Choices) == 0 {
		run.answer = MessageAgentEmptyResponse
		run.state = AgentStateDone
		return nil
	}

	message := resp.Choices[0].Message
	if message.Role == "" {
		message.Role = openai.ChatMessageRoleAssistant
	}
	run.conversation = append(run.conversation, message)

	if len(message.ToolCalls) == 0 {
		run.answer = strings.TrimSpace(message.Content)
		if run.answer == "" {
			run.answer = MessageAgentNoContent
		}
		run.state = AgentStateDone
		return nil
	}

	run.pending = message.ToolCalls
	run.state = AgentStateExecutingTools
	return nil
}

func (a *AgentUsecase) executeTools(ctx context.Context, run *agentRun, tc model.ToolContext) {
	for _, call := range run.pending {
		var result string
		if a.Tools == nil {
			result = toolError(fmt.Errorf("unknown tool: %s", call.Function.Name))
		} else {
			result = a.Tools.ExecuteJSON(ctx, call.Function.Name, call.Function.Arguments, tc)
		}
		log.Printf("[%s] run %s tool %s -> %d bytes", a.cfg.Name, run.id, call.Function.Name, len(result))
		run.conversation = append(
			run.conversation, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			},
		)
	}
	run.pending = nil
	run.state = AgentStateAwaitingModel
}

func (a *AgentUsecase) request(conversation model.Conversation) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:           a.cfg.Model,
		Messages:        conversation,
		ReasoningEffort: a.cfg.ReasoningEffort,
	}
	if len(a.tools) > 0 {
		req.Tools = a.tools
		req.ToolChoice = "auto"
	}
	return req
}

func (r *agentRun) result() AgentResult {
	return AgentResult{
		Answer:       r.answer,
		Conversation: r.conversation,
		Iterations:   r.iterations,
		Capped:       r.capped,
	}
}
