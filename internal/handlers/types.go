package handlers

import "github.com/expensetracker/apiserver/types"

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type MeResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type CreateExpenseRequest struct {
	Amount   *types.Amount `json:"amount"`
	Category string        `json:"category"`
}

type CreateExpenseResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}
