package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/sashabaranov/go-openai"
)

var (
	ErrToolNameEmpty    = errors.New("tool name is empty")
	ErrToolDuplicate    = errors.New("tool already registered")
	ErrPermissionDenied = errors.New("permission denied")
	ErrMissingArgument  = errors.New("missing required argument")
)

type ToolHandler func(ctx context.Context, args ToolArgs, tc model.ToolContext) (any, error)

type Tool struct {
	Declaration  model.ToolDeclaration
	RequiredRole model.UserRole
	Handler      ToolHandler
}

// ToolRegistry is built once at startup and only read afterwards.
type ToolRegistry struct {
	tools map[string]Tool
	order []string
}

func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{
		tools: make(map[string]Tool, len(tools)),
		order: make([]string, 0, len(tools)),
	}
	for _, tool := range tools {
		name := strings.TrimSpace(tool.Declaration.Name)
		if name == "" {
			return nil, ErrToolNameEmpty
		}
		if _, exists := r.tools[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrToolDuplicate, name)
		}
		if tool.Handler == nil {
			return nil, fmt.Errorf("tool %s has no handler", name)
		}
		r.tools[name] = tool
		r.order = append(r.order, name)
	}
	return r, nil
}

func (r *ToolRegistry) Declarations() []model.ToolDeclaration {
	declarations := make([]model.ToolDeclaration, 0, len(r.order))
	for _, name := range r.order {
		declarations = append(declarations, r.tools[name].Declaration)
	}
	return declarations
}

func (r *ToolRegistry) OpenAITools() []openai.Tool {
	tools := make([]openai.Tool, 0, len(r.order))
	for _, declaration := range r.Declarations() {
		parameters := declaration.Parameters
		tools = append(
			tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        declaration.Name,
					Description: declaration.Description,
					Parameters:  parameters,
				},
			},
		)
	}
	return tools
}

func (r *ToolRegistry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Execute always produces a string for the conversation. Failures come back
// as {"error": "..."} so the model can react to them.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]any, tc model.ToolContext) (result string) {
	tool, ok := r.tools[name]
	if !ok {
		return toolError(fmt.Errorf("unknown tool: %s", name))
	}
	if !tc.Role.AtLeast(tool.RequiredRole) {
		return toolError(
			fmt.Errorf("%w: %s requires the %s role", ErrPermissionDenied, name, tool.RequiredRole),
		)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[tools] %s panicked: %v", name, rec)
			result = toolError(fmt.Errorf("tool %s failed unexpectedly", name))
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	out, err := tool.Handler(ctx, args, tc)
	if err != nil {
		log.Printf("[tools] %s failed: %v", name, err)
		return toolError(err)
	}
	return encodeToolResult(out)
}

// ExecuteJSON decodes raw model-produced arguments before executing.
func (r *ToolRegistry) ExecuteJSON(ctx context.Context, name, rawArgs string, tc model.ToolContext) string {
	args := map[string]any{}
	if strings.TrimSpace(rawArgs) != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return toolError(fmt.Errorf("invalid arguments for %s: %w", name, err))
		}
	}
	return r.Execute(ctx, name, args, tc)
}

func toolError(err error) string {
	encoded, marshalErr := json.Marshal(map[string]string{"error": err.Error()})
	if marshalErr != nil {
		return `{"error": "internal error"}`
	}
	return string(encoded)
}

func encodeToolResult(out any) string {
	switch v := out.(type) {
	case string:
		return v
	case nil:
		return `{"result": null}`
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return toolError(fmt.Errorf("failed to encode tool result: %w", err))
	}
	return string(encoded)
}

// ToolArgs is the decoded argument object of a tool call.
type ToolArgs map[string]any

func (a ToolArgs) String(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

func (a ToolArgs) RequireString(key string) (string, error) {
	v := a.String(key)
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingArgument, key)
	}
	return v, nil
}

func (a ToolArgs) Int(key string, def int) int {
	switch v := a[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}

func (a ToolArgs) OptionalInt(key string) (int, bool) {
	if _, ok := a[key]; !ok {
		return 0, false
	}
	n := a.Int(key, 0)
	return n, n != 0
}

func (a ToolArgs) Bool(key string, def bool) bool {
	if v, ok := a[key].(bool); ok {
		return v
	}
	return def
}

func (a ToolArgs) Strings(key string) []string {
	raw, ok := a[key].([]any)
	if !ok {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			values = append(values, strings.TrimSpace(s))
		}
	}
	return values
}

func (a ToolArgs) Map(key string) map[string]any {
	if v, ok := a[key].(map[string]any); ok {
		return v
	}
	return nil
}
