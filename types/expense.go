package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Expense is a single spending record owned by one user.
type Expense struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Amount    float64   `json:"amount" db:"amount"`
	Category  string    `json:"category" db:"category"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Amount is a request amount. Clients may send it as a JSON number or as a
// numeric string taken straight from a text field.
type Amount float64

// ErrInvalidAmount is returned when an amount is not a finite number or
// numeric string.
var ErrInvalidAmount = errors.New("invalid amount")

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return ErrInvalidAmount
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return ErrInvalidAmount
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || !IsFiniteAmount(value) {
			return ErrInvalidAmount
		}
		*a = Amount(value)
		return nil
	}

	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return ErrInvalidAmount
	}
	*a = Amount(value)
	return nil
}

// IsFiniteAmount reports whether v can be stored and encoded as JSON.
func IsFiniteAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CategoryTotal aggregates the expenses of one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// ExpenseSummary is the dashboard view of a user's spending.
type ExpenseSummary struct {
	Total      float64         `json:"total"`
	Count      int             `json:"count"`
	Categories []CategoryTotal `json:"categories"`
}
