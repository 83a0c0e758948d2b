package types

import "time"

const (
	EventUserRegistered = "user.registered"
	EventExpenseCreated = "expense.created"
	EventExpenseDeleted = "expense.deleted"
)

// Event is published after every successful mutation.
type Event struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	ExpenseID  int64     `json:"expense_id,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	Category   string    `json:"category,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
