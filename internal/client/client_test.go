package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/expensetracker/apiserver/config"
	"github.com/expensetracker/apiserver/internal/auth"
	"github.com/expensetracker/apiserver/internal/ratelimit"
	"github.com/expensetracker/apiserver/internal/server"
	"github.com/expensetracker/apiserver/internal/services"
	"github.com/expensetracker/apiserver/internal/store"
	"github.com/expensetracker/apiserver/internal/testutil"
	"github.com/expensetracker/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	conn := testutil.NewSQLiteDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	issuer, err := auth.NewTokenIssuer("client-secret", time.Hour)
	require.NoError(t, err)
	expenses := services.NewExpenseService(store.NewExpenseRepository(conn), nil)
	svc := &server.Services{
		Auth:     services.NewAuthService(store.NewUserRepository(conn), issuer, 4, nil),
		Expenses: expenses,
		Reports:  services.NewReportService(expenses, nil, logger),
		Limiter:  ratelimit.Unlimited{},
	}

	srv := httptest.NewServer(server.NewWithServices(config.Config{}, svc, logger).Router())
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server, tokens TokenStore) *Client {
	t.Helper()
	session, err := NewSession(tokens)
	require.NoError(t, err)
	c, err := New(srv.URL+"/", session, srv.Client())
	require.NoError(t, err)
	return c
}

func TestNewValidates(t *testing.T) {
	session, err := NewSession(nil)
	require.NoError(t, err)

	_, err = New(" ", session, nil)
	assert.Error(t, err)
	_, err = New("http://localhost:5000", nil, nil)
	assert.Error(t, err)
}

func TestClientFlow(t *testing.T) {
	ctx := context.Background()
	srv := newAPI(t)
	tokens := &MemoryTokenStore{}
	c := newClient(t, srv, tokens)

	_, err := c.ListExpenses(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	msg, err := c.Register(ctx, "a@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully", msg)
	assert.False(t, c.Session().LoggedIn(), "register does not log in")

	require.NoError(t, c.Login(ctx, "a@x.com", "pw1"))
	saved, err := tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, c.Session().Token(), saved)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", me.Email)

	id, err := c.AddExpense(ctx, 50, "Food")
	require.NoError(t, err)
	assert.Positive(t, id)
	_, err = c.AddExpense(ctx, 12.5, "Travel")
	require.NoError(t, err)
	_, err = c.AddExpense(ctx, math.Inf(1), "Broken")
	assert.ErrorIs(t, err, types.ErrInvalidAmount)

	list, err := c.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Travel", list[0].Category)

	summary, err := c.Summary(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 62.5, summary.Total, 1e-9)

	pdf, reportID, err := c.Report(ctx)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
	assert.Empty(t, reportID, "server without an archive")

	require.NoError(t, c.DeleteExpense(ctx, id))
	list, err = c.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, c.Logout())
	assert.False(t, c.Session().LoggedIn())
	saved, err = tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	ctx := context.Background()
	srv := newAPI(t)
	c := newClient(t, srv, nil)

	_, err := c.Register(ctx, "", "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Email & password required", apiErr.Message)

	err = c.Login(ctx, "nobody@x.com", "pw")
	assert.True(t, IsUnauthorized(err))
	assert.False(t, c.Session().LoggedIn())

	require.NoError(t, c.Session().SetToken("forged"))
	_, err = c.Me(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid token", apiErr.Message)
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	tokens := FileTokenStore{Path: path}

	token, err := tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, tokens.Save("abc"))
	session, err := NewSession(tokens)
	require.NoError(t, err)
	assert.Equal(t, "abc", session.Token())

	require.NoError(t, session.Clear())
	token, err = tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
	require.NoError(t, tokens.Clear(), "clearing twice is fine")
}
