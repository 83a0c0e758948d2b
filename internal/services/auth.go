package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expensetracker/apiserver/internal/auth"
	"github.com/expensetracker/apiserver/internal/store"
	"github.com/expensetracker/apiserver/types"
)

// UserRepository defines persistence operations for credentials.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// EventPublisher receives domain events. Implementations must not block the
// caller on delivery failures.
type EventPublisher interface {
	Publish(ctx context.Context, event types.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, types.Event) {}

// AuthService encapsulates registration, login and token verification.
type AuthService struct {
	repo       UserRepository
	tokens     *auth.TokenIssuer
	bcryptCost int
	events     EventPublisher
}

func NewAuthService(repo UserRepository, tokens *auth.TokenIssuer, bcryptCost int, events EventPublisher) *AuthService {
	if events == nil {
		events = noopPublisher{}
	}
	return &AuthService{
		repo:       repo,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		events:     events,
	}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a credential record. It never returns a token.
func (s *AuthService) Register(ctx context.Context, email, password string) (types.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, ErrMissingInput
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrDuplicateUser
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrDuplicateUser
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.events.Publish(ctx, types.Event{
		Type:       types.EventUserRegistered,
		UserID:     user.ID,
		OccurredAt: time.Now().UTC(),
	})
	return user, nil
}

// Login checks the credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// VerifyToken validates a session token and returns its claims.
func (s *AuthService) VerifyToken(token string) (auth.Claims, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return auth.Claims{}, ErrInvalidToken
	}
	return claims, nil
}
