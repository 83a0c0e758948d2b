// Package client is a Go SDK for the expense tracker API. A Session carries
// the token so several clients can share or isolate logins.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/expensetracker/apiserver/types"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// ErrNotLoggedIn is returned by authenticated calls when the session is empty.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Client calls the API on behalf of a Session.
type Client struct {
	baseURL    string
	session    *Session
	httpClient *http.Client
}

// New constructs a Client. A nil httpClient gets a default with a timeout.
func New(baseURL string, session *Session, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api url is required")
	}
	if session == nil {
		return nil, errors.New("session is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, session: session, httpClient: httpClient}, nil
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageBody struct {
	Message string `json:"message"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var out messageBody
	err := c.do(ctx, http.MethodPost, "/api/register", false, credentials{email, password}, &out)
	return out.Message, err
}

// Login exchanges credentials for a token and stores it in the session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/login", false, credentials{email, password}, &out); err != nil {
		return err
	}
	if out.Token == "" {
		return errors.New("login response carried no token")
	}
	return c.session.SetToken(out.Token)
}

// Logout forgets the token. Tokens are not revoked server side.
func (c *Client) Logout() error {
	return c.session.Clear()
}

// Identity is the caller as seen by the server.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func (c *Client) Me(ctx context.Context) (Identity, error) {
	var out Identity
	err := c.do(ctx, http.MethodGet, "/api/me", true, nil, &out)
	return out, err
}

func (c *Client) ListExpenses(ctx context.Context) ([]types.Expense, error) {
	out := []types.Expense{}
	err := c.do(ctx, http.MethodGet, "/api/expenses", true, nil, &out)
	return out, err
}

// AddExpense records an expense and returns its id.
func (c *Client) AddExpense(ctx context.Context, amount float64, category string) (int64, error) {
	if !types.IsFiniteAmount(amount) {
		return 0, types.ErrInvalidAmount
	}
	body := struct {
		Amount   float64 `json:"amount"`
		Category string  `json:"category"`
	}{amount, category}
	var out struct {
		ID int64 `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/expenses", true, body, &out)
	return out.ID, err
}

func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/expenses/"+strconv.FormatInt(id, 10), true, nil, nil)
}

func (c *Client) Summary(ctx context.Context) (types.ExpenseSummary, error) {
	var out types.ExpenseSummary
	err := c.do(ctx, http.MethodGet, "/api/expenses/summary", true, nil, &out)
	return out, err
}

// Report downloads a fresh PDF statement. reportID is empty when the server
// does not archive reports.
func (c *Client) Report(ctx context.Context) (pdf []byte, reportID string, err error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/expenses/report", true, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	pdf, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return pdf, resp.Header.Get("X-Report-ID"), nil
}

func (c *Client) do(ctx context.Context, method, path string, authed bool, body, out any) error {
	resp, err := c.send(ctx, method, path, authed, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send returns the response only for 2xx statuses. The caller closes the body.
func (c *Client) send(ctx context.Context, method, path string, authed bool, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.session.Token()
		if token == "" {
			return nil, ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var msg messageBody
	if err := json.Unmarshal(raw, &msg); err == nil && msg.Message != "" {
		apiErr.Message = msg.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return nil, apiErr
}
