package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/iamvkosarev/amc-discord/config"
	openai_tools "github.com/iamvkosarev/amc-discord/pkg/openai-tools"
	"github.com/sashabaranov/go-openai"
)

var ErrOpenAIKeyMissing = errors.New("openai api key is empty")

// OpenAIUsecase is the single chat completion client shared by the agents and
// the translator.
type OpenAIUsecase struct {
	cfg    config.OpenAI
	client *openai.Client
}

func NewOpenAIUsecase(cfg config.OpenAI) (*OpenAIUsecase, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, ErrOpenAIKeyMissing
	}
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	clientConfig.BaseURL = cfg.OpenAIBaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}
	return &OpenAIUsecase{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

func (gpt *OpenAIUsecase) CreateChatCompletion(
	ctx context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = gpt.cfg.DefaultModel
	}
	if tokenCount, err := openai_tools.CountToken(req.Messages, req.Model); err == nil {
		log.Printf("[openai] %s: %d message(s), ~%d prompt tokens", req.Model, len(req.Messages), tokenCount)
	}

	resp, err := gpt.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("failed to create chat completion with %s: %w", req.Model, err)
	}
	return resp, nil
}
