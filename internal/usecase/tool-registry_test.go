package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string, role model.UserRole) Tool {
	return Tool{
		Declaration: model.ToolDeclaration{
			Name:        name,
			Description: "echoes its input",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"text": {Type: jsonschema.String},
				},
			},
		},
		RequiredRole: role,
		Handler: func(_ context.Context, args ToolArgs, _ model.ToolContext) (any, error) {
			return map[string]string{"echo": args.String("text")}, nil
		},
	}
}

func TestToolRegistry_Order(t *testing.T) {
	registry, err := NewToolRegistry(echoTool("b", model.UserRoleDefault), echoTool("a", model.UserRoleDefault))
	require.NoError(t, err)

	declarations := registry.Declarations()
	require.Len(t, declarations, 2)
	assert.Equal(t, "b", declarations[0].Name)
	assert.Equal(t, "a", declarations[1].Name)

	tools := registry.OpenAITools()
	require.Len(t, tools, 2)
	assert.Equal(t, "b", tools[0].Function.Name)
}

func TestToolRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewToolRegistry(echoTool("a", model.UserRoleDefault), echoTool("a", model.UserRoleDefault))
	assert.ErrorIs(t, err, ErrToolDuplicate)

	_, err = NewToolRegistry(echoTool(" ", model.UserRoleDefault))
	assert.ErrorIs(t, err, ErrToolNameEmpty)
}

func TestToolRegistry_Execute(t *testing.T) {
	panicking := Tool{
		Declaration: model.ToolDeclaration{Name: "boom"},
		Handler: func(context.Context, ToolArgs, model.ToolContext) (any, error) {
			panic("kaboom")
		},
	}
	failing := Tool{
		Declaration: model.ToolDeclaration{Name: "fail"},
		Handler: func(context.Context, ToolArgs, model.ToolContext) (any, error) {
			return nil, errors.New("db is down")
		},
	}
	raw := Tool{
		Declaration: model.ToolDeclaration{Name: "raw"},
		Handler: func(context.Context, ToolArgs, model.ToolContext) (any, error) {
			return "plain text", nil
		},
	}
	registry, err := NewToolRegistry(
		echoTool("echo", model.UserRoleDefault),
		echoTool("restricted", model.UserRoleElevated),
		panicking, failing, raw,
	)
	require.NoError(t, err)

	ctx := context.Background()
	user := model.ToolContext{UserID: "1", Role: model.UserRoleDefault}

	tests := []struct {
		name string
		tool string
		args map[string]any
		tc   model.ToolContext
		want string
	}{
		{"json result", "echo", map[string]any{"text": "hi"}, user, `{"echo":"hi"}`},
		{"string result", "raw", nil, user, "plain text"},
		{"unknown tool", "missing", nil, user, `{"error":"unknown tool: missing"}`},
		{"handler error", "fail", nil, user, `{"error":"db is down"}`},
		{"panic", "boom", nil, user, `{"error":"tool boom failed unexpectedly"}`},
		{
			"permission denied", "restricted", nil, user,
			`{"error":"permission denied: restricted requires the elevated role"}`,
		},
		{
			"permission granted", "restricted", map[string]any{"text": "ok"},
			model.ToolContext{Role: model.UserRoleAdmin}, `{"echo":"ok"}`,
		},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				assert.Equal(t, tt.want, registry.Execute(ctx, tt.tool, tt.args, tt.tc))
			},
		)
	}
}

func TestToolRegistry_ExecuteJSON(t *testing.T) {
	registry, err := NewToolRegistry(echoTool("echo", model.UserRoleDefault))
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, `{"echo":"x"}`, registry.ExecuteJSON(ctx, "echo", `{"text":"x"}`, model.ToolContext{}))
	assert.Equal(t, `{"echo":""}`, registry.ExecuteJSON(ctx, "echo", "", model.ToolContext{}))
	assert.Contains(t, registry.ExecuteJSON(ctx, "echo", `{not json`, model.ToolContext{}), "invalid arguments for echo")
}

func TestToolArgs(t *testing.T) {
	args := ToolArgs{
		"name":    " truck ",
		"limit":   float64(7),
		"flag":    true,
		"options": []any{"a", " ", "b", 3},
		"filters": map[string]any{"k": "v"},
	}

	assert.Equal(t, "truck", args.String("name"))
	assert.Equal(t, 7, args.Int("limit", 5))
	assert.Equal(t, 5, args.Int("missing", 5))
	assert.True(t, args.Bool("flag", false))
	assert.Equal(t, []string{"a", "b"}, args.Strings("options"))
	assert.Equal(t, "v", args.Map("filters")["k"])

	_, err := args.RequireString("missing")
	assert.ErrorIs(t, err, ErrMissingArgument)
}
