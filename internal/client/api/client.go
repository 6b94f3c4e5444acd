// Package api is the REST side of the chat client: an authenticated HTTP
// wrapper, the room accessor, and the message history fetch.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatline/internal/models"
)

// ErrorKind tags an APIError with the failure class the UI reacts to.
type ErrorKind int

const (
	// KindTransport means the server could not be reached at all.
	KindTransport ErrorKind = iota
	// KindUnauthorized is a 401/403: missing or expired token, bad login.
	KindUnauthorized
	// KindValidation is any other 4xx with a structured error body.
	KindValidation
	// KindServer is a 5xx or a response body no known shape fits.
	KindServer
)

// APIError is the error type every request of this package returns on
// failure. Message is already human-readable.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// TokenSource supplies the bearer token for outgoing requests. An empty
// string means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
}

func New(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	req := models.LoginRequest{Email: email, Password: password}
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, userName, email, password string) (*models.LoginResponse, error) {
	req := models.RegisterRequest{UserName: userName, Email: email, Password: password}
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) FetchRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := c.do(ctx, http.MethodGet, "/api/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) CreateRoom(ctx context.Context, name string) (*models.Room, error) {
	req := models.CreateRoomRequest{ChatRoomName: name}
	var room models.Room
	if err := c.do(ctx, http.MethodPost, "/api/rooms", req, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// FetchMessages loads one history page of a room: skip newest messages are
// skipped, at most take are returned, ordered oldest-first within the page.
func (c *Client) FetchMessages(ctx context.Context, roomID, skip, take int) ([]models.Message, error) {
	path := fmt.Sprintf("/api/messages/room/%d?skip=%d&take=%d", roomID, skip, take)
	var messages []models.Message
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &APIError{Kind: KindTransport, Message: fmt.Sprintf("encode request: %v", err)}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransport, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: KindServer, Status: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// errorBody covers every error shape the server is known to produce.
type errorBody struct {
	Errors      []string `json:"errors"`
	Description string   `json:"description"`
	Err         string   `json:"error"`
	Message     string   `json:"message"`
}

// decodeError turns a non-2xx response into an APIError, trying each known
// body shape in a fixed priority order.
func decodeError(resp *http.Response) *APIError {
	kind := KindServer
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = KindUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		kind = KindValidation
	}

	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		switch {
		case len(body.Errors) > 0:
			return &APIError{Kind: kind, Status: resp.StatusCode, Message: strings.Join(body.Errors, "; ")}
		case body.Description != "":
			return &APIError{Kind: kind, Status: resp.StatusCode, Message: body.Description}
		case body.Err != "":
			return &APIError{Kind: kind, Status: resp.StatusCode, Message: body.Err}
		case body.Message != "":
			return &APIError{Kind: kind, Status: resp.StatusCode, Message: body.Message}
		}
	}

	if kind == KindUnauthorized {
		return &APIError{Kind: kind, Status: resp.StatusCode, Message: "not authorized: token invalid or expired"}
	}
	return &APIError{Kind: kind, Status: resp.StatusCode, Message: fmt.Sprintf("unknown error: %d", resp.StatusCode)}
}
