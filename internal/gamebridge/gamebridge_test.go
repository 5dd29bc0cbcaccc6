package gamebridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iamvkosarev/amc-discord/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Announce(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotQuery  string
	)
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.Path
				gotQuery = r.URL.RawQuery
				_, _ = w.Write([]byte(`{"ok":true}`))
			},
		),
	)
	defer server.Close()

	client := New(config.Game{APIURL: server.URL + "/", APIPassword: "secret"})
	require.NoError(t, client.Announce(context.Background(), "Alex: hello world", ""))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/chat", gotPath)
	assert.Contains(t, gotQuery, "password=secret")
	assert.Contains(t, gotQuery, "message=Alex%3A%20hello%20world")
	assert.Contains(t, gotQuery, "type=message")
	assert.Contains(t, gotQuery, "color=FFFF00")
	assert.NotContains(t, gotQuery, "+")
}

func TestClient_AnnounceError(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, strings.Repeat("x", 300), http.StatusBadGateway)
			},
		),
	)
	defer server.Close()

	client := New(config.Game{APIURL: server.URL})
	err := client.Announce(context.Background(), "hi", "FFFFFF")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "game API error 502: "), err.Error())
	assert.Less(t, len(err.Error()), 150)
}

func TestClient_ActivePlayers(t *testing.T) {
	server := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("Alex, Budi"))
			},
		),
	)
	defer server.Close()

	players, err := New(config.Game{ActivePlayersURL: server.URL + "/api/active_players/"}).ActivePlayers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alex, Budi", players)

	players, err = New(config.Game{}).ActivePlayers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, players)
}
