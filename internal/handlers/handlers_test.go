package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/expensetracker/apiserver/config"
	"github.com/expensetracker/apiserver/internal/auth"
	"github.com/expensetracker/apiserver/internal/ratelimit"
	"github.com/expensetracker/apiserver/internal/server"
	"github.com/expensetracker/apiserver/internal/services"
	"github.com/expensetracker/apiserver/internal/storage"
	"github.com/expensetracker/apiserver/internal/store"
	"github.com/expensetracker/apiserver/internal/testutil"
	"github.com/expensetracker/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type APITestSuite struct {
	suite.Suite
	srv     *httptest.Server
	limiter ratelimit.Limiter
}

func (s *APITestSuite) SetupTest() {
	s.limiter = ratelimit.Unlimited{}
	s.srv = httptest.NewServer(newTestServer(s.T(), s.limiter).Router())
}

func (s *APITestSuite) TearDownTest() {
	s.srv.Close()
}

func TestAPITestSuite(t *testing.T) {
	suite.Run(t, new(APITestSuite))
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *server.Server {
	t.Helper()
	return newTestServerWithConfig(t, config.Config{CORSOrigin: "*"}, limiter)
}

func newTestServerWithConfig(t *testing.T, cfg config.Config, limiter ratelimit.Limiter) *server.Server {
	t.Helper()
	conn := testutil.NewSQLiteDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	issuer, err := auth.NewTokenIssuer("handler-secret", time.Hour)
	require.NoError(t, err)

	expenses := services.NewExpenseService(store.NewExpenseRepository(conn), nil)
	archive := storage.NewReportArchive(storage.NewMemoryStorage("reports"))
	svc := &server.Services{
		Auth:     services.NewAuthService(store.NewUserRepository(conn), issuer, 4, nil),
		Expenses: expenses,
		Reports:  services.NewReportService(expenses, archive, logger),
		Limiter:  limiter,
	}
	return server.NewWithServices(cfg, svc, logger)
}

func (s *APITestSuite) do(method, path, token string, body any) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			payload, err := json.Marshal(b)
			s.Require().NoError(err)
			reader = bytes.NewReader(payload)
		}
	}

	req, err := http.NewRequestWithContext(context.Background(), method, s.srv.URL+path, reader)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, data
}

func (s *APITestSuite) message(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	s.Require().NoError(json.Unmarshal(data, &body), string(data))
	return body.Message
}

func (s *APITestSuite) login(email, password string) string {
	resp, _ := s.do(http.MethodPost, "/api/register", "", map[string]string{"email": email, "password": password})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp, data := s.do(http.MethodPost, "/api/login", "", map[string]string{"email": email, "password": password})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(data, &out))
	s.Require().NotEmpty(out.Token)
	return out.Token
}

func (s *APITestSuite) TestHealthz() {
	resp, data := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`{"status":"ok"}`, string(data))
}

func (s *APITestSuite) TestConcreteScenario() {
	resp, data := s.do(http.MethodPost, "/api/register", "", map[string]string{"email": "a@x.com", "password": "pw1"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("User registered successfully", s.message(data))
	s.NotContains(string(data), "token")

	resp, data = s.do(http.MethodPost, "/api/login", "", map[string]string{"email": "a@x.com", "password": "pw1"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var login struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(data, &login))

	resp, data = s.do(http.MethodPost, "/api/expenses", login.Token, map[string]any{"amount": 50, "category": "Food"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("Expense added", s.message(data))

	resp, data = s.do(http.MethodGet, "/api/expenses", login.Token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var list []types.Expense
	s.Require().NoError(json.Unmarshal(data, &list))
	s.Require().Len(list, 1)
	s.Equal(50.0, list[0].Amount)
	s.Equal("Food", list[0].Category)

	resp, data = s.do(http.MethodPost, "/api/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("Invalid credentials", s.message(data))
}

func (s *APITestSuite) TestRegisterValidation() {
	resp, data := s.do(http.MethodPost, "/api/register", "", map[string]string{"email": "a@x.com"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("Email & password required", s.message(data))

	resp, _ = s.do(http.MethodPost, "/api/register", "", "{not json")
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	s.login("a@x.com", "pw1")
	resp, data = s.do(http.MethodPost, "/api/register", "", map[string]string{"email": "A@x.com", "password": "pw2"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("User already exists", s.message(data))
}

func (s *APITestSuite) TestLoginValidation() {
	resp, _ := s.do(http.MethodPost, "/api/login", "", "{")
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/login", "", map[string]string{})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/login", "", map[string]string{"email": "ghost@x.com", "password": "pw"})
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *APITestSuite) TestAuthMiddleware() {
	resp, data := s.do(http.MethodGet, "/api/expenses", "", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("No token", s.message(data))

	resp, data = s.do(http.MethodGet, "/api/expenses", "garbage", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("Invalid token", s.message(data))

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/expenses", nil)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Token abc")
	raw, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	raw.Body.Close()
	s.Equal(http.StatusUnauthorized, raw.StatusCode)
}

func (s *APITestSuite) TestMe() {
	token := s.login("me@x.com", "pw")
	resp, data := s.do(http.MethodGet, "/api/me", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var me struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	s.Require().NoError(json.Unmarshal(data, &me))
	s.Positive(me.ID)
	s.Equal("me@x.com", me.Email)
}

func (s *APITestSuite) TestCreateExpenseValidation() {
	token := s.login("a@x.com", "pw")

	resp, data := s.do(http.MethodPost, "/api/expenses", token, map[string]any{"category": "Food"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("Amount & category required", s.message(data))

	resp, _ = s.do(http.MethodPost, "/api/expenses", token, map[string]any{"amount": "abc", "category": "Food"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	for _, raw := range []string{"NaN", "Inf", "-Infinity"} {
		resp, data = s.do(http.MethodPost, "/api/expenses", token, map[string]any{"amount": raw, "category": "Food"})
		s.Equal(http.StatusBadRequest, resp.StatusCode, raw)
		s.Equal("Amount must be a number", s.message(data), raw)
	}

	resp, data = s.do(http.MethodPost, "/api/expenses", token, map[string]any{"amount": "50", "category": "Food"})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	var created struct {
		ID int64 `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(data, &created))
	s.Positive(created.ID)

	_, data = s.do(http.MethodGet, "/api/expenses", token, nil)
	var list []types.Expense
	s.Require().NoError(json.Unmarshal(data, &list))
	s.Require().Len(list, 1)
	s.Equal(50.0, list[0].Amount)
}

func (s *APITestSuite) TestListIsEmptyArray() {
	token := s.login("a@x.com", "pw")
	resp, data := s.do(http.MethodGet, "/api/expenses", token, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.JSONEq(`[]`, string(data))
}

func (s *APITestSuite) TestDeleteIsScopedAndSilent() {
	alice := s.login("alice@x.com", "pw")
	bob := s.login("bob@x.com", "pw")

	_, data := s.do(http.MethodPost, "/api/expenses", alice, map[string]any{"amount": 20, "category": "Rent"})
	var created struct {
		ID int64 `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(data, &created))
	path := "/api/expenses/" + jsonNumber(created.ID)

	resp, data := s.do(http.MethodDelete, path, bob, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("Expense deleted", s.message(data))

	_, data = s.do(http.MethodGet, "/api/expenses", alice, nil)
	var list []types.Expense
	s.Require().NoError(json.Unmarshal(data, &list))
	s.Len(list, 1, "bob must not delete alice's expense")

	resp, _ = s.do(http.MethodDelete, "/api/expenses/abc", alice, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, path, alice, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	_, data = s.do(http.MethodGet, "/api/expenses", alice, nil)
	s.JSONEq(`[]`, string(data))
}

func (s *APITestSuite) TestSummary() {
	token := s.login("a@x.com", "pw")
	for _, body := range []map[string]any{
		{"amount": 10, "category": "Food"},
		{"amount": 15, "category": "Food"},
		{"amount": 30, "category": "Rent"},
	} {
		resp, _ := s.do(http.MethodPost, "/api/expenses", token, body)
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
	}

	resp, data := s.do(http.MethodGet, "/api/expenses/summary", token, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	var summary types.ExpenseSummary
	s.Require().NoError(json.Unmarshal(data, &summary))
	s.InDelta(55, summary.Total, 1e-9)
	s.Equal(3, summary.Count)
	s.Require().Len(summary.Categories, 2)
	s.Equal("Rent", summary.Categories[0].Category)
}

func (s *APITestSuite) TestReportRoundTrip() {
	alice := s.login("alice@x.com", "pw")
	bob := s.login("bob@x.com", "pw")
	s.do(http.MethodPost, "/api/expenses", alice, map[string]any{"amount": 42, "category": "Books"})

	resp, data := s.do(http.MethodGet, "/api/expenses/report", alice, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("application/pdf", resp.Header.Get("Content-Type"))
	s.True(bytes.HasPrefix(data, []byte("%PDF-")))
	reportID := resp.Header.Get("X-Report-ID")
	s.Require().NotEmpty(reportID)

	resp, fetched := s.do(http.MethodGet, "/api/reports/"+reportID, alice, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(data, fetched)

	resp, _ = s.do(http.MethodGet, "/api/reports/"+reportID, bob, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/reports/not-a-uuid", alice, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestRateLimitReturns429(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, ratelimit.NewMemory(60, 2)).Router())
	defer srv.Close()

	status := func() int {
		resp, err := srv.Client().Post(srv.URL+"/api/login", "application/json", strings.NewReader(`{"email":"x@x.com","password":"pw"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, status())
	assert.Equal(t, http.StatusUnauthorized, status())
	assert.Equal(t, http.StatusTooManyRequests, status())
}

func loginFrom(t *testing.T, srv *httptest.Server, forwardedFor string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/login", strings.NewReader(`{"email":"x@x.com","password":"pw"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, ratelimit.NewMemory(60, 2)).Router())
	defer srv.Close()

	assert.Equal(t, http.StatusUnauthorized, loginFrom(t, srv, "10.0.0.1"))
	assert.Equal(t, http.StatusUnauthorized, loginFrom(t, srv, "10.0.0.2"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(t, srv, "10.0.0.3"))
}

func TestRateLimitHonoursForwardedForBehindTrustedProxy(t *testing.T) {
	cfg := config.Config{CORSOrigin: "*", TrustProxy: true}
	srv := httptest.NewServer(newTestServerWithConfig(t, cfg, ratelimit.NewMemory(60, 1)).Router())
	defer srv.Close()

	assert.Equal(t, http.StatusUnauthorized, loginFrom(t, srv, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(t, srv, "10.0.0.1"))
	assert.Equal(t, http.StatusUnauthorized, loginFrom(t, srv, "10.0.0.2"))
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, assert.AnError
}

func TestRateLimitFailsOpen(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, brokenLimiter{}).Router())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/api/login", "application/json", strings.NewReader(`{"email":"x@x.com","password":"pw"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func jsonNumber(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}
