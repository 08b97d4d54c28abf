// Package console_api_client talks to the event server's console command
// API: activity lookup, round list, session snapshot, start, stop and
// winners.
package console_api_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/mcdev12/liveconsole/go/clients"
)

// APIError is a rejection reported in the response envelope.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("console API rejected request (code %d)", e.Code)
	}
	return fmt.Sprintf("console API rejected request (code %d): %s", e.Code, e.Message)
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type ConsoleApiClient struct {
	*clients.BaseClient
}

// NewConsoleApiClient creates a client for baseURL. An empty token sends no
// Authorization header.
func NewConsoleApiClient(baseURL, token string) *ConsoleApiClient {
	client := &ConsoleApiClient{
		BaseClient: clients.NewBaseClient(strings.TrimRight(baseURL, "/")),
	}

	if token != "" {
		client.SetHeader(AuthorizationHeader, "Bearer "+token)
	}

	return client
}

func (c *ConsoleApiClient) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (c *ConsoleApiClient) post(ctx context.Context, endpoint string, payload, out interface{}) error {
	body, err := c.PostJSON(ctx, endpoint, payload)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func decode(body []byte, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode response envelope: %w", err)
	}
	if env.Code != CodeOK {
		return &APIError{Code: env.Code, Message: env.Msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
