package services

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/expensetracker/apiserver/internal/auth"
	"github.com/expensetracker/apiserver/internal/storage"
	"github.com/expensetracker/apiserver/internal/store"
	"github.com/expensetracker/apiserver/internal/testutil"
	"github.com/expensetracker/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event types.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type ServicesTestSuite struct {
	suite.Suite
	ctx      context.Context
	events   *recordingPublisher
	auth     *AuthService
	expenses *ExpenseService
}

func (s *ServicesTestSuite) SetupTest() {
	s.ctx = context.Background()
	conn := testutil.NewSQLiteDB(s.T())

	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	s.Require().NoError(err)

	s.events = &recordingPublisher{}
	s.auth = NewAuthService(store.NewUserRepository(conn), issuer, 4, s.events)
	s.expenses = NewExpenseService(store.NewExpenseRepository(conn), s.events)
}

func TestServicesTestSuite(t *testing.T) {
	suite.Run(t, new(ServicesTestSuite))
}

func (s *ServicesTestSuite) register(email string) auth.Claims {
	_, err := s.auth.Register(s.ctx, email, "secret1")
	s.Require().NoError(err)
	token, err := s.auth.Login(s.ctx, email, "secret1")
	s.Require().NoError(err)
	claims, err := s.auth.VerifyToken(token)
	s.Require().NoError(err)
	return claims
}

func amount(v float64) *float64 { return &v }

func (s *ServicesTestSuite) TestRegisterAndLogin() {
	user, err := s.auth.Register(s.ctx, "  A@X.io ", "secret1")
	s.Require().NoError(err)
	s.Equal("a@x.io", user.Email)
	s.NotEqual("secret1", user.PasswordHash)

	token, err := s.auth.Login(s.ctx, "a@x.io", "secret1")
	s.Require().NoError(err)
	s.NotEmpty(token)

	claims, err := s.auth.VerifyToken(token)
	s.Require().NoError(err)
	s.Equal(user.ID, claims.UserID)
	s.Equal("a@x.io", claims.Email)

	s.Equal([]string{types.EventUserRegistered}, s.events.eventTypes())
}

func (s *ServicesTestSuite) TestRegisterRejectsMissingAndDuplicate() {
	_, err := s.auth.Register(s.ctx, "", "secret1")
	s.ErrorIs(err, ErrMissingInput)
	_, err = s.auth.Register(s.ctx, "a@x.io", "")
	s.ErrorIs(err, ErrMissingInput)

	_, err = s.auth.Register(s.ctx, "a@x.io", "secret1")
	s.Require().NoError(err)
	_, err = s.auth.Register(s.ctx, "A@x.io", "other")
	s.ErrorIs(err, ErrDuplicateUser)
}

func (s *ServicesTestSuite) TestRegisterAcceptsBlankLookingPassword() {
	_, err := s.auth.Register(s.ctx, "space@x.io", "   ")
	s.Require().NoError(err)

	token, err := s.auth.Login(s.ctx, "space@x.io", "   ")
	s.Require().NoError(err)
	claims, err := s.auth.VerifyToken(token)
	s.Require().NoError(err)
	s.Equal("space@x.io", claims.Email)

	_, err = s.auth.Login(s.ctx, "space@x.io", "")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServicesTestSuite) TestLoginFailures() {
	_, err := s.auth.Register(s.ctx, "a@x.io", "secret1")
	s.Require().NoError(err)

	_, err = s.auth.Login(s.ctx, "a@x.io", "wrong")
	s.ErrorIs(err, ErrInvalidCredentials)
	_, err = s.auth.Login(s.ctx, "nobody@x.io", "secret1")
	s.ErrorIs(err, ErrInvalidCredentials)
	_, err = s.auth.Login(s.ctx, "", "")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServicesTestSuite) TestVerifyTokenRejectsGarbage() {
	_, err := s.auth.VerifyToken("")
	s.ErrorIs(err, ErrInvalidToken)
	_, err = s.auth.VerifyToken("not.a.token")
	s.ErrorIs(err, ErrInvalidToken)
}

func (s *ServicesTestSuite) TestCreateListAndDelete() {
	a := s.register("a@x.io")

	list, err := s.expenses.List(s.ctx, a.UserID)
	s.Require().NoError(err)
	s.NotNil(list)
	s.Empty(list)

	first, err := s.expenses.Create(s.ctx, a.UserID, amount(50), "Food")
	s.Require().NoError(err)
	second, err := s.expenses.Create(s.ctx, a.UserID, amount(12.5), " Travel ")
	s.Require().NoError(err)
	s.Equal("Travel", second.Category)

	list, err = s.expenses.List(s.ctx, a.UserID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(second.ID, list[0].ID)
	s.Equal(first.ID, list[1].ID)

	s.Require().NoError(s.expenses.Delete(s.ctx, a.UserID, first.ID))
	list, err = s.expenses.List(s.ctx, a.UserID)
	s.Require().NoError(err)
	s.Len(list, 1)

	s.Equal([]string{
		types.EventUserRegistered,
		types.EventExpenseCreated,
		types.EventExpenseCreated,
		types.EventExpenseDeleted,
	}, s.events.eventTypes())
}

func (s *ServicesTestSuite) TestCreateRejectsMissingFields() {
	a := s.register("a@x.io")

	_, err := s.expenses.Create(s.ctx, a.UserID, nil, "Food")
	s.ErrorIs(err, ErrMissingInput)
	_, err = s.expenses.Create(s.ctx, a.UserID, amount(1), "  ")
	s.ErrorIs(err, ErrMissingInput)
}

func (s *ServicesTestSuite) TestCreateRejectsNonFiniteAmounts() {
	a := s.register("a@x.io")

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := s.expenses.Create(s.ctx, a.UserID, amount(v), "Food")
		s.ErrorIs(err, ErrInvalidAmount)
	}

	list, err := s.expenses.List(s.ctx, a.UserID)
	s.Require().NoError(err)
	s.Empty(list)
	s.Equal([]string{types.EventUserRegistered}, s.events.eventTypes())
}

func (s *ServicesTestSuite) TestDeleteForeignExpenseIsSilent() {
	a := s.register("a@x.io")
	b := s.register("b@x.io")

	exp, err := s.expenses.Create(s.ctx, a.UserID, amount(20), "Rent")
	s.Require().NoError(err)

	s.NoError(s.expenses.Delete(s.ctx, b.UserID, exp.ID))
	s.NoError(s.expenses.Delete(s.ctx, b.UserID, 9999))

	list, err := s.expenses.List(s.ctx, a.UserID)
	s.Require().NoError(err)
	s.Len(list, 1)

	others, err := s.expenses.List(s.ctx, b.UserID)
	s.Require().NoError(err)
	s.Empty(others)

	s.NotContains(s.events.eventTypes(), types.EventExpenseDeleted)
}

func (s *ServicesTestSuite) TestSummary() {
	a := s.register("a@x.io")
	for _, e := range []struct {
		amount   float64
		category string
	}{{10, "Food"}, {30, "Rent"}, {15, "Food"}, {5, "Misc"}} {
		_, err := s.expenses.Create(s.ctx, a.UserID, amount(e.amount), e.category)
		s.Require().NoError(err)
	}

	summary, err := s.expenses.Summary(s.ctx, a.UserID)
	s.Require().NoError(err)
	s.InDelta(60, summary.Total, 1e-9)
	s.Equal(4, summary.Count)
	s.Equal([]types.CategoryTotal{
		{Category: "Rent", Total: 30, Count: 1},
		{Category: "Food", Total: 25, Count: 2},
		{Category: "Misc", Total: 5, Count: 1},
	}, summary.Categories)
}

func (s *ServicesTestSuite) TestStatementArchivesPerUser() {
	a := s.register("a@x.io")
	b := s.register("b@x.io")
	_, err := s.expenses.Create(s.ctx, a.UserID, amount(50), "Food")
	s.Require().NoError(err)

	reports := NewReportService(s.expenses, storage.NewReportArchive(storage.NewMemoryStorage("r")), nil)
	rep, err := reports.Statement(s.ctx, a)
	s.Require().NoError(err)
	s.NotEmpty(rep.ID)
	s.True(bytes.HasPrefix(rep.PDF, []byte("%PDF-")))

	pdf, err := reports.Fetch(s.ctx, a.UserID, rep.ID)
	s.Require().NoError(err)
	s.Equal(rep.PDF, pdf)

	_, err = reports.Fetch(s.ctx, b.UserID, rep.ID)
	s.ErrorIs(err, ErrReportNotFound)
	_, err = reports.Fetch(s.ctx, a.UserID, "../../etc/passwd")
	s.ErrorIs(err, ErrReportNotFound)
}

func (s *ServicesTestSuite) TestStatementWithoutArchive() {
	a := s.register("a@x.io")
	reports := NewReportService(s.expenses, nil, nil)

	rep, err := reports.Statement(s.ctx, a)
	s.Require().NoError(err)
	s.Empty(rep.ID)
	s.NotEmpty(rep.PDF)

	_, err = reports.Fetch(s.ctx, a.UserID, rep.ID)
	s.ErrorIs(err, ErrReportsDisabled)
}

type failingArchive struct{}

func (failingArchive) Save(context.Context, int64, string, []byte) error {
	return errors.New("bucket unavailable")
}

func (failingArchive) Load(context.Context, int64, string) ([]byte, error) {
	return nil, errors.New("bucket unavailable")
}

func (s *ServicesTestSuite) TestStatementSurvivesArchiveFailure() {
	a := s.register("a@x.io")
	reports := NewReportService(s.expenses, failingArchive{}, nil)

	rep, err := reports.Statement(s.ctx, a)
	s.Require().NoError(err)
	s.Empty(rep.ID)
	s.NotEmpty(rep.PDF)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	assert.Zero(t, summary.Total)
	assert.Zero(t, summary.Count)
	require.NotNil(t, summary.Categories)
	assert.Empty(t, summary.Categories)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.io", NormalizeEmail("  A@X.IO\t"))
}
