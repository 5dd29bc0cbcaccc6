package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iamvkosarev/amc-discord/internal/codebase"
	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGameDB struct {
	statements []string
	queryType  string
	searchTerm string
	filters    map[string]any
}

func (f *fakeGameDB) Query(_ context.Context, statement string) model.QueryResult {
	f.statements = append(f.statements, statement)
	return model.QueryResult{Results: []map[string]any{{"name": "Jemusi"}}, Count: 1}
}

func (f *fakeGameDB) HandleQuery(_ context.Context, queryType, searchTerm string, filters map[string]any) (map[string]any, error) {
	f.queryType, f.searchTerm, f.filters = queryType, searchTerm, filters
	return map[string]any{"vehicles": []string{"Jemusi"}}, nil
}

var (
	defaultUser  = model.ToolContext{UserID: "u1", UserName: "alice", ChannelID: "c1", GuildID: "g1"}
	elevatedUser = model.ToolContext{UserID: "u2", UserName: "mod", ChannelID: "c1", GuildID: "g1", Role: model.UserRoleElevated}
)

func decodeToolResult(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out), raw)
	return out
}

func TestGameTools(t *testing.T) {
	db := &fakeGameDB{}
	game := &fakeGame{}
	registry, err := NewToolRegistry(
		NewQueryGameDBTool(db, "MotorTown Game Database Schema:\n"),
		NewGameQueryTool(db),
		NewAnnounceInGameTool(game, "FFFFFF"),
	)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Contains(t, registry.Declarations()[0].Description, "MotorTown Game Database Schema")

	out := decodeToolResult(t, registry.ExecuteJSON(ctx, ToolQueryGameDB, `{"sql":"SELECT name FROM vehicles"}`, defaultUser))
	assert.EqualValues(t, 1, out["count"])
	assert.Equal(t, []string{"SELECT name FROM vehicles"}, db.statements)

	out = decodeToolResult(t, registry.ExecuteJSON(ctx, ToolQueryGameDB, `{}`, defaultUser))
	assert.Contains(t, out["error"], "sql")

	registry.ExecuteJSON(
		ctx, ToolGameQuery, `{"query_type":"heaviest_cargo","filters":{"limit":3}}`, defaultUser,
	)
	assert.Equal(t, "heaviest_cargo", db.queryType)
	assert.Empty(t, db.searchTerm)
	assert.EqualValues(t, 3, db.filters["limit"])

	out = decodeToolResult(t, registry.ExecuteJSON(ctx, ToolAnnounceInGame, `{"message":"hi"}`, defaultUser))
	assert.Contains(t, out["error"], "permission denied")
	assert.Empty(t, game.all())

	result := registry.ExecuteJSON(ctx, ToolAnnounceInGame, `{"message":"server restart\nin 5 minutes"}`, elevatedUser)
	assert.Equal(t, "Announced in game on behalf of mod.", result)
	assert.Equal(t, []announcement{{Text: "server restart in 5 minutes", Color: "FFFFFF"}}, game.all())
}

func TestCodebaseTools(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "mods"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "flake.nix"), []byte("{\n  description = \"amc\";\n}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mods", "mods.nix"), []byte("fetchzip {}\n"), 0o644))
	explorer, err := codebase.New(root)
	require.NoError(t, err)

	registry, err := NewToolRegistry(NewCodebaseTools(explorer, nil)...)
	require.NoError(t, err)
	assert.False(t, registry.Has(ToolNixHashURL))
	ctx := context.Background()

	var files []model.FileEntry
	require.NoError(t, json.Unmarshal([]byte(registry.ExecuteJSON(ctx, ToolSearchFiles, `{"pattern":"*.nix"}`, defaultUser)), &files))
	assert.Len(t, files, 2)

	content := registry.ExecuteJSON(ctx, ToolReadFile, `{"path":"flake.nix","start_line":2,"end_line":2}`, defaultUser)
	assert.Contains(t, content, "description")
	assert.NotContains(t, content, "}")

	var matches []model.GrepMatch
	require.NoError(t, json.Unmarshal([]byte(registry.ExecuteJSON(ctx, ToolGrepSearch, `{"query":"FETCHZIP"}`, defaultUser)), &matches))
	require.Len(t, matches, 1)
	assert.Equal(t, "mods/mods.nix", matches[0].File)

	var listing model.DirectoryListing
	require.NoError(t, json.Unmarshal([]byte(registry.ExecuteJSON(ctx, ToolListDirectory, ``, defaultUser)), &listing))
	assert.Len(t, listing.Entries, 2)

	out := decodeToolResult(t, registry.ExecuteJSON(ctx, ToolReadFile, `{"path":"../etc/passwd"}`, defaultUser))
	assert.Contains(t, out, "error")
}

type fakeHasher struct{}

func (fakeHasher) HashURL(_ context.Context, url string, unpack bool) (model.NixHash, error) {
	if !unpack {
		return model.NixHash{}, errors.New("unexpected fetchurl")
	}
	return model.NixHash{Hash: "sha256-abc", Format: "sri", URL: url}, nil
}

func TestCodebaseTools_NixHash(t *testing.T) {
	registry, err := NewToolRegistry(NewCodebaseTools(nil, fakeHasher{})...)
	require.NoError(t, err)

	out := decodeToolResult(
		t, registry.ExecuteJSON(context.Background(), ToolNixHashURL, `{"url":"https://example.com/mod.zip"}`, defaultUser),
	)
	assert.Equal(t, "sha256-abc", out["hash"])
}

func TestCreatePollTool(t *testing.T) {
	transport := newFakeTransport()
	registry, err := NewToolRegistry(NewCreatePollTool(transport))
	require.NoError(t, err)
	ctx := context.Background()

	result := registry.ExecuteJSON(ctx, ToolCreatePoll, `{"question":"Next convoy?","options":["Friday","Saturday","Sunday"]}`, defaultUser)
	assert.Equal(t, "Poll 'Next convoy?' created!", result)

	sent := transport.sentTo("c1")
	require.Len(t, sent, 1)
	assert.Equal(
		t,
		"**Poll:** Next convoy?\n\n1. Friday\n2. Saturday\n3. Sunday\n\nReact with the corresponding emoji to vote!",
		sent[0],
	)
	require.Len(t, transport.reactions, 3)
	assert.Equal(t, "1\uFE0F\u20E3", transport.reactions[0].Emoji)
	assert.Equal(t, "3\uFE0F\u20E3", transport.reactions[2].Emoji)
	assert.Equal(t, "m1", transport.reactions[0].MessageID)

	out := decodeToolResult(t, registry.ExecuteJSON(ctx, ToolCreatePoll, `{"question":"?","options":["only"]}`, defaultUser))
	assert.Equal(t, ErrPollOptions.Error(), out["error"])

	registry.ExecuteJSON(ctx, ToolCreatePoll, `{"question":"q","options":["a","b"],"channel_id":"c9"}`, defaultUser)
	assert.Len(t, transport.sentTo("c9"), 1)
}

func TestKeycapEmoji(t *testing.T) {
	assert.Equal(t, "9\uFE0F\u20E3", keycapEmoji(9))
	assert.Equal(t, "\U0001F51F", keycapEmoji(10))
}

func TestCreateScheduledEventTool(t *testing.T) {
	transport := newFakeTransport()
	registry, err := NewToolRegistry(NewCreateScheduledEventTool(transport))
	require.NoError(t, err)
	ctx := context.Background()
	args := `{"name":"Convoy","start_time":"2026-05-01T20:00:00","timezone":"Asia/Bangkok"}`

	out := decodeToolResult(t, registry.ExecuteJSON(ctx, ToolCreateScheduledEvent, args, defaultUser))
	assert.Contains(t, out["error"], "permission denied")

	result := registry.ExecuteJSON(ctx, ToolCreateScheduledEvent, args, elevatedUser)
	assert.Equal(t, "Event 'Convoy' created: https://discord.com/events/g1/e1", result)

	require.Len(t, transport.created, 1)
	event := transport.created[0]
	bangkok, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	assert.True(t, event.Start.Equal(time.Date(2026, 5, 1, 20, 0, 0, 0, bangkok)))
	assert.Equal(t, time.Hour, event.End.Sub(event.Start))
}

func TestCreateScheduledEventTool_Errors(t *testing.T) {
	transport := newFakeTransport()
	registry, err := NewToolRegistry(NewCreateScheduledEventTool(transport))
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		args string
		tc   model.ToolContext
		want string
	}{
		{
			name: "bad timezone",
			args: `{"name":"x","start_time":"2026-05-01T20:00:00","timezone":"Mars/Olympus"}`,
			tc:   elevatedUser,
			want: "unknown timezone",
		},
		{
			name: "bad time",
			args: `{"name":"x","start_time":"tomorrow","timezone":"UTC"}`,
			tc:   elevatedUser,
			want: "invalid date-time",
		},
		{
			name: "end before start",
			args: `{"name":"x","start_time":"2026-05-01T20:00:00","end_time":"2026-05-01T19:00:00","timezone":"UTC"}`,
			tc:   elevatedUser,
			want: "end_time must be after start_time",
		},
		{
			name: "outside a server",
			args: `{"name":"x","start_time":"2026-05-01T20:00:00","timezone":"UTC"}`,
			tc:   model.ToolContext{Role: model.UserRoleAdmin},
			want: ErrNoGuild.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(
			tt.name, func(t *testing.T) {
				out := decodeToolResult(t, registry.ExecuteJSON(ctx, ToolCreateScheduledEvent, tt.args, tt.tc))
				assert.Contains(t, out["error"], tt.want)
			},
		)
	}
	assert.Empty(t, transport.created)
}

func TestParseEventTime(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)

	got, err := parseEventTime("2026-05-01T20:00:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 1, 20, 0, 0, 0, loc), got)

	got, err = parseEventTime("2026-05-01 08:30", loc)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Hour())
}
