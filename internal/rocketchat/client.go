// Package rocketchat is a minimal REST client for the Rocket.Chat API,
// covering the login, omnichannel and livechat endpoints the bridge uses.
// Calls are never retried here: a failure surfaces to the caller and the
// natural retry path is the user's next message.
package rocketchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lewisedginton/livechat-bridge/pkg/logger"
)

// Operation names used for metrics labels.
const (
	OpLogin         = "login"
	OpCreateContact = "create_contact"
	OpCreateRoom    = "create_room"
	OpSendMessage   = "send_livechat_message"
	OpCloseRoom     = "close_room"
	OpPostMessage   = "post_channel_message"
)

// Credentials identify an authenticated platform user.
type Credentials struct {
	AuthToken string
	UserID    string
}

// APIError describes a failed REST call.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rocketchat %s failed (status %d): %s", e.Operation, e.StatusCode, e.Body)
}

// Observer receives timing for each platform call. Satisfied by pkg/metrics.
type Observer interface {
	ObservePlatformCall(operation string, start time.Time)
}

// Config holds configuration for the Rocket.Chat client.
type Config struct {
	BaseURL      string
	UserPassword string
	Timeout      time.Duration
	Logger       logger.Logger
	Observer     Observer // optional
}

// Client performs REST calls against a Rocket.Chat server.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
	log        logger.Logger
	observer   Observer
}

// New creates a Rocket.Chat REST client.
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		password:   config.UserPassword,
		httpClient: &http.Client{Timeout: timeout},
		log:        config.Logger,
		observer:   config.Observer,
	}, nil
}

// InfoURL returns the server info endpoint, used as a readiness probe target.
func (c *Client) InfoURL() string {
	return c.baseURL + "/api/info"
}

type loginResponse struct {
	Status string `json:"status"`
	Data   struct {
		AuthToken string `json:"authToken"`
		UserID    string `json:"userId"`
	} `json:"data"`
}

// Login authenticates the given username with the configured shared password
// and returns the auth token and platform user ID.
func (c *Client) Login(ctx context.Context, username string) (Credentials, error) {
	body := map[string]string{"user": username, "password": c.password}

	var resp loginResponse
	if err := c.do(ctx, OpLogin, http.MethodPost, "/api/v1/login", nil, body, &resp); err != nil {
		return Credentials{}, err
	}
	if resp.Data.AuthToken == "" || resp.Data.UserID == "" {
		return Credentials{}, fmt.Errorf("rocketchat login returned no credentials for %q", username)
	}

	return Credentials{AuthToken: resp.Data.AuthToken, UserID: resp.Data.UserID}, nil
}

// CreateOmnichannelContact registers the visitor token as an omnichannel
// contact. Required before a livechat room can be opened for the visitor.
func (c *Client) CreateOmnichannelContact(ctx context.Context, creds Credentials, visitorToken, username string) error {
	body := map[string]string{
		"token":    visitorToken,
		"name":     username,
		"username": username,
	}
	return c.do(ctx, OpCreateContact, http.MethodPost, "/api/v1/omnichannel/contact", &creds, body, nil)
}

type roomResponse struct {
	Room struct {
		ID string `json:"_id"`
	} `json:"room"`
}

// CreateLiveChatRoom opens a livechat room for the visitor and returns the
// room ID.
func (c *Client) CreateLiveChatRoom(ctx context.Context, creds Credentials, visitorToken string) (string, error) {
	path := "/api/v1/livechat/room?token=" + url.QueryEscape(visitorToken)

	var resp roomResponse
	if err := c.do(ctx, OpCreateRoom, http.MethodGet, path, &creds, nil, &resp); err != nil {
		return "", err
	}
	if resp.Room.ID == "" {
		return "", fmt.Errorf("rocketchat returned no livechat room id")
	}
	return resp.Room.ID, nil
}

// SendLiveChatMessage posts the visitor's message text into a livechat room.
func (c *Client) SendLiveChatMessage(ctx context.Context, visitorToken, roomID, text string) error {
	body := map[string]string{
		"token": visitorToken,
		"rid":   roomID,
		"msg":   text,
	}
	return c.do(ctx, OpSendMessage, http.MethodPost, "/api/v1/livechat/message", nil, body, nil)
}

// CloseRoom closes a livechat room on behalf of the visitor.
func (c *Client) CloseRoom(ctx context.Context, visitorToken, roomID string) error {
	body := map[string]string{
		"rid":   roomID,
		"token": visitorToken,
	}
	return c.do(ctx, OpCloseRoom, http.MethodPost, "/api/v1/livechat/room.close", nil, body, nil)
}

// PostChannelMessage posts text into a regular channel or room, used to
// relay agent replies back to the user's originating channel.
func (c *Client) PostChannelMessage(ctx context.Context, creds Credentials, roomID, text string) error {
	body := map[string]any{
		"roomId": roomID,
		"text":   text,
	}
	return c.do(ctx, OpPostMessage, http.MethodPost, "/api/v1/chat.postMessage", &creds, body, nil)
}

// do performs a single REST call: marshal the body, attach auth headers when
// credentials are supplied, record timing, and decode the response into out.
func (c *Client) do(ctx context.Context, operation, method, path string, creds *Credentials, body, out any) error {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObservePlatformCall(operation, start)
		}
	}()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", operation, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if creds != nil {
		req.Header.Set("X-Auth-Token", creds.AuthToken)
		req.Header.Set("X-User-Id", creds.UserID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rocketchat %s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("Rocket.Chat call failed",
			logger.StringField("operation", operation),
			logger.IntField("status", resp.StatusCode))
		return &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", operation, err)
		}
	}
	return nil
}
