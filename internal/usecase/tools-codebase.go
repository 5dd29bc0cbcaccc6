package usecase

import (
	"context"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	ToolSearchFiles   = "search_files"
	ToolReadFile      = "read_file"
	ToolGrepSearch    = "grep_search"
	ToolListDirectory = "list_directory"
	ToolNixHashURL    = "nix_hash_url"
)

type CodebaseExplorer interface {
	SearchFiles(ctx context.Context, pattern string, maxResults int) ([]model.FileEntry, error)
	ReadFile(path string, startLine, endLine int) (string, error)
	Grep(ctx context.Context, query, path string, maxResults int) ([]model.GrepMatch, error)
	ListDirectory(ctx context.Context, path string, recursive bool) (model.DirectoryListing, error)
}

type NixHasher interface {
	HashURL(ctx context.Context, url string, unpack bool) (model.NixHash, error)
}

func NewCodebaseTools(explorer CodebaseExplorer, hasher NixHasher) []Tool {
	tools := []Tool{
		{
			Declaration: model.ToolDeclaration{
				Name:        ToolSearchFiles,
				Description: "Find files by glob pattern at any depth, e.g. \"*.py\", \"flake.nix\", \"**/mods.nix\".",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"pattern":     {Type: jsonschema.String},
						"max_results": {Type: jsonschema.Integer, Description: "Default 20"},
					},
					Required: []string{"pattern"},
				},
			},
			Handler: func(ctx context.Context, args ToolArgs, _ model.ToolContext) (any, error) {
				pattern, err := args.RequireString("pattern")
				if err != nil {
					return nil, err
				}
				return explorer.SearchFiles(ctx, pattern, args.Int("max_results", 20))
			},
		},
		{
			Declaration: model.ToolDeclaration{
				Name: ToolReadFile,
				Description: "Read a file relative to the repository root. With start_line/end_line " +
					"(1-based, inclusive) the lines are returned numbered. Files over 1MB need a line range.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"path":       {Type: jsonschema.String},
						"start_line": {Type: jsonschema.Integer},
						"end_line":   {Type: jsonschema.Integer},
					},
					Required: []string{"path"},
				},
			},
			Handler: func(_ context.Context, args ToolArgs, _ model.ToolContext) (any, error) {
				path, err := args.RequireString("path")
				if err != nil {
					return nil, err
				}
				return explorer.ReadFile(path, args.Int("start_line", 0), args.Int("end_line", 0))
			},
		},
		{
			Declaration: model.ToolDeclaration{
				Name:        ToolGrepSearch,
				Description: "Case-insensitive text search across the repository or under path.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"query":       {Type: jsonschema.String},
						"path":        {Type: jsonschema.String, Description: "Default \".\""},
						"max_results": {Type: jsonschema.Integer, Description: "Default 30"},
					},
					Required: []string{"query"},
				},
			},
			Handler: func(ctx context.Context, args ToolArgs, _ model.ToolContext) (any, error) {
				query, err := args.RequireString("query")
				if err != nil {
					return nil, err
				}
				path := args.String("path")
				if path == "" {
					path = "."
				}
				return explorer.Grep(ctx, query, path, args.Int("max_results", 30))
			},
		},
		{
			Declaration: model.ToolDeclaration{
				Name:        ToolListDirectory,
				Description: "List a directory. Recursive listings stop after 100 entries.",
				Parameters: jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"path":      {Type: jsonschema.String, Description: "Default \".\""},
						"recursive": {Type: jsonschema.Boolean},
					},
				},
			},
			Handler: func(ctx context.Context, args ToolArgs, _ model.ToolContext) (any, error) {
				path := args.String("path")
				if path == "" {
					path = "."
				}
				return explorer.ListDirectory(ctx, path, args.Bool("recursive", false))
			},
		},
	}
	if hasher != nil {
		tools = append(
			tools, Tool{
				Declaration: model.ToolDeclaration{
					Name: ToolNixHashURL,
					Description: "Download a URL with nix-prefetch-url and return its hash in SRI form " +
						"for fetchzip (unpack=true, default) or fetchurl (unpack=false).",
					Parameters: jsonschema.Definition{
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"url":    {Type: jsonschema.String},
							"unpack": {Type: jsonschema.Boolean},
						},
						Required: []string{"url"},
					},
				},
				Handler: func(ctx context.Context, args ToolArgs, _ model.ToolContext) (any, error) {
					url, err := args.RequireString("url")
					if err != nil {
						return nil, err
					}
					return hasher.HashURL(ctx, url, args.Bool("unpack", true))
				},
			},
		)
	}
	return tools
}
