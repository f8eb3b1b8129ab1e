// Package client talks to the chat backend: REST calls for rooms and
// messages, and a websocket subscription for live room events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chatoverlay/api"
)

const DefaultBasePath = "/chat"

// APIError represents a non-2xx response from the backend.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("chat api error: %s (%d)", e.Code, e.Status)
	}
	if e.Message != "" {
		return fmt.Sprintf("chat api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("chat api error (%d)", e.Status)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     Dialer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithDialer(d Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// New builds a client for server (scheme and host) and basePath, the root
// every route hangs off.
func New(server, basePath string, opts ...Option) (*Client, error) {
	base, err := JoinBase(server, basePath)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		dialer: defaultDialer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// JoinBase validates server and appends basePath to it.
func JoinBase(server, basePath string) (string, error) {
	value := strings.TrimSpace(server)
	if value == "" {
		return "", fmt.Errorf("server url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("server url must include scheme and host (http://host:port)")
	}
	basePath = strings.Trim(strings.TrimSpace(basePath), "/")
	value = strings.TrimRight(value, "/")
	if basePath != "" {
		value += "/" + basePath
	}
	return value, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Rooms(ctx context.Context) ([]api.Room, error) {
	var resp api.RoomsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/rooms", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// Messages fetches messages of roomID with id greater than afterID, oldest
// first.
func (c *Client) Messages(ctx context.Context, roomID, afterID int64) ([]api.Message, error) {
	query := url.Values{}
	query.Set("room_id", strconv.FormatInt(roomID, 10))
	query.Set("after_id", strconv.FormatInt(afterID, 10))

	var resp api.MessagesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/messages", query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) Send(ctx context.Context, req api.SendMessageRequest) (api.Message, error) {
	var resp api.SendMessageResponse
	if err := c.doJSON(ctx, http.MethodPost, "/messages", nil, req, &resp); err != nil {
		return api.Message{}, err
	}
	if !resp.OK || resp.Message == nil {
		return api.Message{}, &APIError{Status: http.StatusOK, Code: resp.Reason}
	}
	return *resp.Message, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, reqBody any, respBody any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload api.SendMessageResponse
		if err := json.Unmarshal(respData, &payload); err == nil {
			apiErr.Code = payload.Reason
		} else {
			apiErr.Message = strings.TrimSpace(string(respData))
		}
		return apiErr
	}

	if respBody == nil || len(respData) == 0 {
		return nil
	}
	return json.Unmarshal(respData, respBody)
}
