package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/expensetracker/apiserver/internal/services"
	"github.com/expensetracker/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// ExpenseHandler provides HTTP handlers for the caller's expenses.
type ExpenseHandler struct {
	expenseService *services.ExpenseService
	logger         *slog.Logger
}

func NewExpenseHandler(expenseService *services.ExpenseService, logger *slog.Logger) *ExpenseHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseHandler{expenseService: expenseService, logger: logger}
}

// ExpenseRouter registers expense routes. The router must already carry
// RequireAuth.
func ExpenseRouter(r chi.Router, expenseService *services.ExpenseService, reportService *services.ReportService, logger *slog.Logger) {
	handler := NewExpenseHandler(expenseService, logger)
	reports := NewReportHandler(reportService, logger)

	r.Get("/", handler.ListExpenses)
	r.Post("/", handler.CreateExpense)
	r.Get("/summary", handler.Summary)
	r.Get("/report", reports.Statement)
	r.Delete("/{expenseID}", handler.DeleteExpense)
}

func (h *ExpenseHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	claims, err := ClaimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	expenses, err := h.expenseService.List(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("list expenses failed", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (h *ExpenseHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	claims, err := ClaimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	var req CreateExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, types.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, "Amount must be a number")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	var amount *float64
	if req.Amount != nil {
		v := float64(*req.Amount)
		amount = &v
	}

	expense, err := h.expenseService.Create(r.Context(), claims.UserID, amount, req.Category)
	if err != nil {
		if errors.Is(err, services.ErrMissingInput) {
			writeError(w, http.StatusBadRequest, "Amount & category required")
			return
		}
		if errors.Is(err, services.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, "Amount must be a number")
			return
		}
		h.logger.Error("create expense failed", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add expense")
		return
	}

	writeJSON(w, http.StatusCreated, CreateExpenseResponse{Message: "Expense added", ID: expense.ID})
}

// DeleteExpense always reports success for a well-formed id, including ids
// that do not exist or belong to someone else.
func (h *ExpenseHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	claims, err := ClaimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "expenseID")), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	if err := h.expenseService.Delete(r.Context(), claims.UserID, id); err != nil {
		h.logger.Error("delete expense failed", "user_id", claims.UserID, "expense_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Expense deleted"})
}

func (h *ExpenseHandler) Summary(w http.ResponseWriter, r *http.Request) {
	claims, err := ClaimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	summary, err := h.expenseService.Summary(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error("summarize expenses failed", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to summarize expenses")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
