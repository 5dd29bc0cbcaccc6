package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	ToolQueryGameDB    = "query_game_db"
	ToolGameQuery      = "game_query"
	ToolAnnounceInGame = "announce_in_game"
)

var gameQueryTypes = []string{"vehicle_info", "cargo_info", "part_info", "heaviest_cargo", "cargo_by_space"}

type GameQuerier interface {
	Query(ctx context.Context, statement string) model.QueryResult
	HandleQuery(ctx context.Context, queryType, searchTerm string, filters map[string]any) (map[string]any, error)
}

// NewQueryGameDBTool embeds the live schema in the description so the model
// can write correct SELECTs without a discovery round trip.
func NewQueryGameDBTool(db GameQuerier, schema string) Tool {
	return Tool{
		Declaration: model.ToolDeclaration{
			Name: ToolQueryGameDB,
			Description: "Run a read-only SQL SELECT against the Motor Town game database. " +
				"At most 100 rows are returned.\n\n" + schema,
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"sql": {Type: jsonschema.String, Description: "A single SELECT statement"},
				},
				Required: []string{"sql"},
			},
		},
		Handler: func(ctx context.Context, args ToolArgs, _ model.ToolContext) (any, error) {
			statement, err := args.RequireString("sql")
			if err != nil {
				return nil, err
			}
			return db.Query(ctx, statement), nil
		},
	}
}

func NewGameQueryTool(db GameQuerier) Tool {
	return Tool{
		Declaration: model.ToolDeclaration{
			Name: ToolGameQuery,
			Description: "Look up game data. vehicle_info, cargo_info and part_info need search_term. " +
				"heaviest_cargo accepts filters.limit (default 5). cargo_by_space needs filters.space_type " +
				"(for example Flatbed, Box, Dump).",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"query_type":  {Type: jsonschema.String, Enum: gameQueryTypes},
					"search_term": {Type: jsonschema.String, Description: "Name or id to search for"},
					"filters": {
						Type:        jsonschema.Object,
						Description: "Optional: vehicle_type, max_cost, cargo_type, min_weight, part_type, limit, space_type",
					},
				},
				Required: []string{"query_type"},
			},
		},
		Handler: func(ctx context.Context, args ToolArgs, _ model.ToolContext) (any, error) {
			queryType, err := args.RequireString("query_type")
			if err != nil {
				return nil, err
			}
			return db.HandleQuery(ctx, queryType, args.String("search_term"), args.Map("filters"))
		},
	}
}

func NewAnnounceInGameTool(game GameAnnouncer, color string) Tool {
	return Tool{
		Declaration: model.ToolDeclaration{
			Name:        ToolAnnounceInGame,
			Description: "Broadcast a short message to every player in the game chat. Use only when explicitly asked.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"message": {Type: jsonschema.String},
				},
				Required: []string{"message"},
			},
		},
		RequiredRole: model.UserRoleElevated,
		Handler: func(ctx context.Context, args ToolArgs, tc model.ToolContext) (any, error) {
			message, err := args.RequireString("message")
			if err != nil {
				return nil, err
			}
			message = strings.ReplaceAll(message, "\n", " ")
			if err = game.Announce(ctx, message, color); err != nil {
				return nil, fmt.Errorf("failed to announce: %w", err)
			}
			return fmt.Sprintf("Announced in game on behalf of %s.", tc.UserName), nil
		},
	}
}
