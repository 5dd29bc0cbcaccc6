// Package gamebridge talks to the game server's HTTP API.
package gamebridge

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/iamvkosarev/amc-discord/config"
	"github.com/iamvkosarev/amc-discord/pkg/textutil"
)

const DefaultAnnounceColor = "FFFF00"

type Client struct {
	http             *resty.Client
	password         string
	activePlayersURL string
}

func New(cfg config.Game) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http:             resty.New().SetBaseURL(strings.TrimRight(cfg.APIURL, "/")).SetTimeout(timeout),
		password:         cfg.APIPassword,
		activePlayersURL: cfg.ActivePlayersURL,
	}
}

// Announce posts a chat message into the game. An empty color means the
// server default yellow.
func (c *Client) Announce(ctx context.Context, message, color string) error {
	if color == "" {
		color = DefaultAnnounceColor
	}
	params := url.Values{}
	params.Set("password", c.password)
	params.Set("message", message)
	params.Set("type", "message")
	params.Set("color", color)

	log.Printf("[game] announcing: %s", textutil.Truncate(message, 100))
	// the game server expects %20, not '+', for spaces
	query := strings.ReplaceAll(params.Encode(), "+", "%20")
	resp, err := c.http.R().SetContext(ctx).Post("/chat?" + query)
	if err != nil {
		return fmt.Errorf("failed to call game API: %w", err)
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("game API error %d: %s", resp.StatusCode(), textutil.Truncate(resp.String(), 100))
	}
	return nil
}

// ActivePlayers returns the raw online players listing, or an empty string
// when no listing URL is configured.
func (c *Client) ActivePlayers(ctx context.Context) (string, error) {
	if c.activePlayersURL == "" {
		return "", nil
	}
	resp, err := c.http.R().SetContext(ctx).Get(c.activePlayersURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch active players: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("active players: %s", resp.Status())
	}
	return resp.String(), nil
}
