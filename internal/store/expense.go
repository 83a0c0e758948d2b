package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/expensetracker/apiserver/types"
)

// ExpenseRepository handles persistence for expenses. Every query is scoped
// by owner.
type ExpenseRepository struct {
	db *sql.DB
}

func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) ListByUser(ctx context.Context, userID int64) ([]types.Expense, error) {
	const query = `
		SELECT id, user_id, amount, category, created_at
		FROM expenses
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]types.Expense, 0)
	for rows.Next() {
		var e types.Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &e.CreatedAt); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (r *ExpenseRepository) Create(ctx context.Context, expense types.Expense) (types.Expense, error) {
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO expenses (user_id, amount, category, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		expense.UserID,
		expense.Amount,
		expense.Category,
		expense.CreatedAt,
	).Scan(&expense.ID); err != nil {
		return types.Expense{}, err
	}
	return expense, nil
}

// DeleteOwned removes the expense only when userID owns it. The boolean
// reports whether a row was removed.
func (r *ExpenseRepository) DeleteOwned(ctx context.Context, userID, id int64) (bool, error) {
	const query = `DELETE FROM expenses WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
