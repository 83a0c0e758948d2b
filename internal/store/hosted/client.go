// Package hosted implements the repositories against a hosted
// backend-as-a-service that exposes tables over the PostgREST protocol.
package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	restPrefix         = "/rest/v1/"
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 64 << 10
)

// APIError is a non-2xx response from the hosted service.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("hosted store: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("hosted store: %d: %s", e.StatusCode, e.Message)
}

// Client talks to the PostgREST endpoint of the hosted project.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a Client. A nil httpClient gets a default with a timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("hosted url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("hosted api key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}, nil
}

// do issues a request against table and decodes a JSON response into out
// when out is non-nil.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + restPrefix + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Ping checks that the project is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var rows []json.RawMessage
	query := url.Values{"select": {"id"}, "limit": {"1"}}
	if err := c.do(ctx, http.MethodGet, usersTable, query, nil, &rows); err != nil {
		return fmt.Errorf("ping hosted store: %w", err)
	}
	return nil
}

func eq(value string) string {
	return "eq." + value
}
