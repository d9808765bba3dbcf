// Package httpapi fetches schedules and content from the controller's device
// API.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/auth"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/provider"
)

// tokens are re-minted well before they expire
const tokenRefresh = auth.TokenTTL / 2

type Client struct {
	baseURL  string
	deviceID string
	secret   string
	http     *http.Client
	now      func() time.Time
	logger   zerolog.Logger

	mu       sync.Mutex
	token    string
	mintedAt time.Time
}

func NewClient(baseURL, deviceID, secret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		deviceID: deviceID,
		secret:   secret,
		http:     &http.Client{Timeout: timeout},
		now:      time.Now,
		logger:   log.With().Str("component", "controller_client").Logger(),
	}
}

func (c *Client) FetchSchedules(ctx context.Context, displayID string) ([]model.Schedule, error) {
	var out []model.Schedule
	path := fmt.Sprintf("/api/tv/displays/%s/schedules", url.PathEscape(displayID))
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) FetchContent(ctx context.Context, contentID string) (model.Content, error) {
	var out model.Content
	path := fmt.Sprintf("/api/tv/content/%s", url.PathEscape(contentID))
	if err := c.get(ctx, path, &out); err != nil {
		return model.Content{}, err
	}
	return out, nil
}

func (c *Client) bearer() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.token != "" && now.Sub(c.mintedAt) < tokenRefresh {
		return c.token, nil
	}
	token, err := auth.GenerateJWT(c.deviceID, c.secret, now)
	if err != nil {
		return "", fmt.Errorf("sign device token: %w", err)
	}
	c.token, c.mintedAt = token, now
	return token, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	token, err := c.bearer()
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("GET %s: %w", path, provider.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: unexpected status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	c.logger.Debug().Str("path", path).Msg("controller fetch ok")
	return nil
}
