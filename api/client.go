package api

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
)

// APIError is a non-success response from the dashboard server.
// RetryAfterSeconds is set when the server embedded a rate-limit countdown.
type APIError struct {
	Status            int
	Message           string
	RetryAfterSeconds int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d", e.Status)
}

// Client talks to the dashboard's chat and OAuth endpoints.
// All mutating calls carry the bearer token; the streaming call returns the
// raw response body for the stream decoder to consume.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		// No overall timeout: the streaming endpoint stays open for the
		// duration of a response. Individual calls pass ctx deadlines.
		http: &http.Client{},
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return req, nil
}

// decodeError drains the body and converts a non-2xx response into *APIError.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	apiErr := &APIError{Status: resp.StatusCode}

	var payload errorResponse
	if err := json.Unmarshal(data, &payload); err == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
		apiErr.RetryAfterSeconds = payload.RetryAfterSeconds
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}

	return apiErr
}

// do executes a request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) CreateConversation(ctx context.Context, title, model, systemPrompt string) (*Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var conv Conversation
	req := createConversationRequest{Title: title, Model: model, SystemPrompt: systemPrompt}
	if err := c.do(ctx, http.MethodPost, "/api/chat/conversations", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) ListConversations(ctx context.Context, limit, offset int) ([]ConversationSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	path := fmt.Sprintf("/api/chat/conversations?limit=%d&offset=%d", limit, offset)
	var resp conversationListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var conv Conversation
	if err := c.do(ctx, http.MethodGet, "/api/chat/conversations/"+url.PathEscape(id), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) RenameConversation(ctx context.Context, id, title string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req := updateConversationRequest{Title: title}
	return c.do(ctx, http.MethodPut, "/api/chat/conversations/"+url.PathEscape(id), req, nil)
}

func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	return c.do(ctx, http.MethodDelete, "/api/chat/conversations/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	path := "/api/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	var resp messagesListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendMessageStream posts a message and returns the raw response body.
// The caller owns the body and must close it; the stream decoder consumes it
// chunk by chunk. No timeout is applied here: the stream stays open until the
// server finishes or the transport fails.
func (c *Client) SendMessageStream(ctx context.Context, conversationID, content string) (io.ReadCloser, error) {
	path := "/api/chat/conversations/" + url.PathEscape(conversationID) + "/stream"
	req, err := c.newRequest(ctx, http.MethodPost, path, sendMessageRequest{Content: content, Stream: true})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	return resp.Body, nil
}

// ConnectProviderURL asks the server for a fresh authorization URL for the
// given fitness provider. redirectURI points at the local callback listener.
func (c *Client) ConnectProviderURL(ctx context.Context, provider, redirectURI string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	path := "/api/oauth/auth/" + url.PathEscape(provider)
	if redirectURI != "" {
		path += "?redirect_uri=" + url.QueryEscape(redirectURI)
	}

	var resp authorizationResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if resp.AuthorizationURL == "" {
		return "", fmt.Errorf("server returned empty authorization URL for %s", provider)
	}
	return resp.AuthorizationURL, nil
}

// ConnectionStatuses returns per-provider connected flags.
func (c *Client) ConnectionStatuses(ctx context.Context) ([]ConnectionStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var statuses []ConnectionStatus
	if err := c.do(ctx, http.MethodGet, "/api/connections", nil, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}
