package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/expensetracker/apiserver/types"
)

// ExpenseRepository defines persistence operations for expenses. Every
// method is scoped by owner.
type ExpenseRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]types.Expense, error)
	Create(ctx context.Context, expense types.Expense) (types.Expense, error)
	DeleteOwned(ctx context.Context, userID, id int64) (bool, error)
}

// ExpenseService encapsulates the expense use-cases of an authenticated user.
type ExpenseService struct {
	repo   ExpenseRepository
	events EventPublisher
	now    func() time.Time
}

func NewExpenseService(repo ExpenseRepository, events EventPublisher) *ExpenseService {
	if events == nil {
		events = noopPublisher{}
	}
	return &ExpenseService{
		repo:   repo,
		events: events,
		now:    time.Now,
	}
}

// List returns the caller's expenses, newest first.
func (s *ExpenseService) List(ctx context.Context, callerID int64) ([]types.Expense, error) {
	expenses, err := s.repo.ListByUser(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if expenses == nil {
		expenses = []types.Expense{}
	}
	return expenses, nil
}

// Create records an expense owned by the caller.
func (s *ExpenseService) Create(ctx context.Context, callerID int64, amount *float64, category string) (types.Expense, error) {
	category = strings.TrimSpace(category)
	if amount == nil || category == "" {
		return types.Expense{}, ErrMissingInput
	}
	if !types.IsFiniteAmount(*amount) {
		return types.Expense{}, ErrInvalidAmount
	}

	expense, err := s.repo.Create(ctx, types.Expense{
		UserID:    callerID,
		Amount:    *amount,
		Category:  category,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return types.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	s.events.Publish(ctx, types.Event{
		Type:       types.EventExpenseCreated,
		UserID:     callerID,
		ExpenseID:  expense.ID,
		Amount:     expense.Amount,
		Category:   expense.Category,
		OccurredAt: expense.CreatedAt,
	})
	return expense, nil
}

// Delete removes the expense when the caller owns it. A missing or foreign
// id is not an error.
func (s *ExpenseService) Delete(ctx context.Context, callerID, expenseID int64) error {
	removed, err := s.repo.DeleteOwned(ctx, callerID, expenseID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if removed {
		s.events.Publish(ctx, types.Event{
			Type:       types.EventExpenseDeleted,
			UserID:     callerID,
			ExpenseID:  expenseID,
			OccurredAt: s.now().UTC(),
		})
	}
	return nil
}

// Summary totals the caller's expenses overall and per category.
func (s *ExpenseService) Summary(ctx context.Context, callerID int64) (types.ExpenseSummary, error) {
	expenses, err := s.List(ctx, callerID)
	if err != nil {
		return types.ExpenseSummary{}, err
	}
	return Summarize(expenses), nil
}

// Summarize groups expenses by category. Categories are ordered by total
// descending, then by name.
func Summarize(expenses []types.Expense) types.ExpenseSummary {
	summary := types.ExpenseSummary{Categories: []types.CategoryTotal{}}
	index := make(map[string]int)
	for _, e := range expenses {
		summary.Total += e.Amount
		summary.Count++

		i, ok := index[e.Category]
		if !ok {
			i = len(summary.Categories)
			index[e.Category] = i
			summary.Categories = append(summary.Categories, types.CategoryTotal{Category: e.Category})
		}
		summary.Categories[i].Total += e.Amount
		summary.Categories[i].Count++
	}

	sort.Slice(summary.Categories, func(i, j int) bool {
		a, b := summary.Categories[i], summary.Categories[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Category < b.Category
	})
	return summary
}
