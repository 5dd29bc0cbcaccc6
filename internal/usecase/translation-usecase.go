package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/iamvkosarev/amc-discord/pkg/local"
	openai_tools "github.com/iamvkosarev/amc-discord/pkg/openai-tools"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var (
	ErrEmptyCompletion  = errors.New("empty completion")
	ErrEmptyTranslation = errors.New("empty translation")
)

type TranslationConfig struct {
	Model              string
	ContextTokenBudget int
}

type TranslationUsecaseDeps struct {
	LLM ChatCompleter
}

// TranslationUsecase performs structured translation calls. Every response
// is decoded into a typed result right at this boundary.
type TranslationUsecase struct {
	TranslationUsecaseDeps
	cfg TranslationConfig
}

type TranslationRequest struct {
	Text           string
	TargetLanguage string
	Context        []string
	Sender         string
}

type MultiTranslationRequest struct {
	Text      string
	Languages []string
	Context   []string
	Sender    string
}

func NewTranslationUsecase(deps TranslationUsecaseDeps, cfg TranslationConfig) *TranslationUsecase {
	return &TranslationUsecase{
		TranslationUsecaseDeps: deps,
		cfg:                    cfg,
	}
}

func (t *TranslationUsecase) Translate(ctx context.Context, req TranslationRequest) (model.TranslationResponse, error) {
	target := local.DisplayName(req.TargetLanguage)
	messages := t.messages(fmt.Sprintf(promptTranslateTo, target), req.Text, req.Context, req.Sender)

	var result model.TranslationResponse
	schema := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"translation": {Type: jsonschema.String},
		},
		Required:             []string{"translation"},
		AdditionalProperties: false,
	}
	if err := t.parse(ctx, "translation_response", schema, messages, &result); err != nil {
		return model.TranslationResponse{}, fmt.Errorf("failed to translate to %s: %w", target, err)
	}
	if strings.TrimSpace(result.Translation) == "" {
		return model.TranslationResponse{}, fmt.Errorf("failed to translate to %s: %w", target, ErrEmptyTranslation)
	}
	return result, nil
}

// TranslateMulti returns one translation per requested language key in a
// single model call.
func (t *TranslationUsecase) TranslateMulti(ctx context.Context, req MultiTranslationRequest) (model.MultiTranslation, error) {
	if len(req.Languages) == 0 {
		return model.MultiTranslation{}, nil
	}
	names := make([]string, 0, len(req.Languages))
	properties := make(map[string]jsonschema.Definition, len(req.Languages))
	for _, key := range req.Languages {
		names = append(names, local.DisplayName(key))
		properties[key] = jsonschema.Definition{
			Type:        jsonschema.String,
			Description: "Translation in " + local.DisplayName(key),
		}
	}
	schema := jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           properties,
		Required:             req.Languages,
		AdditionalProperties: false,
	}
	messages := t.messages(
		fmt.Sprintf(promptTranslateMulti, strings.Join(names, ", ")), req.Text, req.Context, req.Sender,
	)

	result := model.MultiTranslation{}
	if err := t.parse(ctx, "multi_translation", schema, messages, &result); err != nil {
		return nil, fmt.Errorf("failed to translate into %d languages: %w", len(req.Languages), err)
	}
	return result, nil
}

func (t *TranslationUsecase) TranslateThread(ctx context.Context, lines []string, targetLanguage string) (model.ThreadTranslationResponse, error) {
	target := local.DisplayName(targetLanguage)
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(promptTranslateThread, target)},
		{Role: openai.ChatMessageRoleUser, Content: "### THREAD TO TRANSLATE:\n" + strings.Join(lines, "\n")},
	}
	schema := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"translated_thread": {Type: jsonschema.String},
		},
		Required:             []string{"translated_thread"},
		AdditionalProperties: false,
	}

	var result model.ThreadTranslationResponse
	if err := t.parse(ctx, "thread_translation", schema, messages, &result); err != nil {
		return model.ThreadTranslationResponse{}, fmt.Errorf("failed to translate thread to %s: %w", target, err)
	}
	if strings.TrimSpace(result.TranslatedThread) == "" {
		return model.ThreadTranslationResponse{}, ErrEmptyTranslation
	}
	return result, nil
}

func (t *TranslationUsecase) messages(system, text string, context []string, sender string) []openai.ChatCompletionMessage {
	senderInfo := ""
	if sender != "" {
		senderInfo = fmt.Sprintf(" (from %s)", sender)
	}
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: "### PREVIOUS MESSAGES:\n" + strings.Join(t.trimContext(context), "\n")},
		{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("### MESSAGE TO TRANSLATE%s:\n%s", senderInfo, text)},
	}
}

// trimContext drops the oldest lines until the context fits the token
// budget. A budget of zero disables trimming.
func (t *TranslationUsecase) trimContext(lines []string) []string {
	if t.cfg.ContextTokenBudget <= 0 {
		return lines
	}
	for len(lines) > 0 {
		count, err := openai_tools.CountTextToken(strings.Join(lines, "\n"), t.cfg.Model)
		if err != nil {
			log.Printf("[translation] count token error: %v", err)
			return lines
		}
		if count <= t.cfg.ContextTokenBudget {
			break
		}
		lines = lines[1:]
	}
	return lines
}

func (t *TranslationUsecase) parse(
	ctx context.Context,
	name string,
	schema jsonschema.Definition,
	messages []openai.ChatCompletionMessage,
	out any,
) error {
	resp, err := t.LLM.CreateChatCompletion(
		ctx, openai.ChatCompletionRequest{
			Model:    t.cfg.Model,
			Messages: messages,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
				JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
					Name:   name,
					Schema: &schema,
					Strict: true,
				},
			},
		},
	)
	if err != nil {
		return err
	}
	if len(resp.Choices) == 0 {
		return ErrEmptyCompletion
	}
	content := stripCodeFence(resp.Choices[0].Message.Content)
	if content == "" {
		return ErrEmptyCompletion
	}
	if err = json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// Some OpenRouter backends wrap structured output in a markdown fence even
// when a schema is requested.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
