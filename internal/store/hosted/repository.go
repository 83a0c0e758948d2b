package hosted

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/expensetracker/apiserver/internal/store"
	"github.com/expensetracker/apiserver/types"
)

const (
	usersTable    = "users"
	expensesTable = "expenses"

	userColumns    = "id,email,password,created_at"
	expenseColumns = "id,user_id,amount,category,created_at"
)

type userRow struct {
	ID        int64     `json:"id,omitempty"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}

type expenseRow struct {
	ID        int64     `json:"id,omitempty"`
	UserID    int64     `json:"user_id"`
	Amount    float64   `json:"amount"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRepository stores users in the hosted users table.
type UserRepository struct {
	client *Client
}

func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	query := url.Values{}
	query.Set("select", userColumns)
	query.Set("email", eq(email))
	query.Set("limit", "1")

	var rows []userRow
	if err := r.client.do(ctx, http.MethodGet, usersTable, query, nil, &rows); err != nil {
		return types.User{}, err
	}
	if len(rows) == 0 {
		return types.User{}, store.ErrNotFound
	}
	return rows[0].toUser(), nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	query := url.Values{}
	query.Set("select", userColumns)

	row := userRow{
		Email:     user.Email,
		Password:  user.PasswordHash,
		CreatedAt: time.Now().UTC(),
	}
	var rows []userRow
	if err := r.client.do(ctx, http.MethodPost, usersTable, query, row, &rows); err != nil {
		if isConflict(err) {
			return types.User{}, store.ErrDuplicate
		}
		return types.User{}, err
	}
	if len(rows) == 0 {
		return types.User{}, errors.New("hosted store: insert returned no rows")
	}
	return rows[0].toUser(), nil
}

// ExpenseRepository stores expenses in the hosted expenses table.
type ExpenseRepository struct {
	client *Client
}

func NewExpenseRepository(client *Client) *ExpenseRepository {
	return &ExpenseRepository{client: client}
}

func (r *ExpenseRepository) ListByUser(ctx context.Context, userID int64) ([]types.Expense, error) {
	query := url.Values{}
	query.Set("select", expenseColumns)
	query.Set("user_id", eq(strconv.FormatInt(userID, 10)))
	query.Set("order", "created_at.desc,id.desc")

	var rows []expenseRow
	if err := r.client.do(ctx, http.MethodGet, expensesTable, query, nil, &rows); err != nil {
		return nil, err
	}

	expenses := make([]types.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, row.toExpense())
	}
	return expenses, nil
}

func (r *ExpenseRepository) Create(ctx context.Context, expense types.Expense) (types.Expense, error) {
	query := url.Values{}
	query.Set("select", expenseColumns)

	row := expenseRow{
		UserID:    expense.UserID,
		Amount:    expense.Amount,
		Category:  expense.Category,
		CreatedAt: expense.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	var rows []expenseRow
	if err := r.client.do(ctx, http.MethodPost, expensesTable, query, row, &rows); err != nil {
		return types.Expense{}, err
	}
	if len(rows) == 0 {
		return types.Expense{}, errors.New("hosted store: insert returned no rows")
	}
	return rows[0].toExpense(), nil
}

func (r *ExpenseRepository) DeleteOwned(ctx context.Context, userID, id int64) (bool, error) {
	query := url.Values{}
	query.Set("select", "id")
	query.Set("id", eq(strconv.FormatInt(id, 10)))
	query.Set("user_id", eq(strconv.FormatInt(userID, 10)))

	var rows []expenseRow
	if err := r.client.do(ctx, http.MethodDelete, expensesTable, query, nil, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func isConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusConflict || apiErr.Code == "23505"
}

func (row userRow) toUser() types.User {
	return types.User{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.Password,
		CreatedAt:    row.CreatedAt,
	}
}

func (row expenseRow) toExpense() types.Expense {
	return types.Expense{
		ID:        row.ID,
		UserID:    row.UserID,
		Amount:    row.Amount,
		Category:  row.Category,
		CreatedAt: row.CreatedAt,
	}
}
