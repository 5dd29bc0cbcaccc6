package model

import "github.com/sashabaranov/go-openai/jsonschema"

type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// ToolContext carries request-scoped data a tool may need, such as who asked
// and where.
type ToolContext struct {
	UserID    string
	UserName  string
	ChannelID string
	GuildID   string
	Role      UserRole
}
