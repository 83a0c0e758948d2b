// Package gormstore implements the user and expense repositories with GORM
// on top of an already opened *sql.DB.
package gormstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/expensetracker/apiserver/config"
	"github.com/expensetracker/apiserver/internal/store"
	"github.com/expensetracker/apiserver/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userModel struct {
	ID        int64  `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex"`
	Password  string
	CreatedAt time.Time
}

func (userModel) TableName() string { return "users" }

type expenseModel struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64 `gorm:"index"`
	Amount    float64
	Category  string
	CreatedAt time.Time
}

func (expenseModel) TableName() string { return "expenses" }

// Open wraps conn in a GORM session for the given dialect. The schema itself
// is owned by the SQL migrations.
func Open(conn *sql.DB, dialect string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dialect {
	case config.DialectPostgres:
		dialector = postgres.New(postgres.Config{Conn: conn})
	case config.DialectSQLite:
		dialector = sqlite.Dialector{DriverName: "sqlite", Conn: conn}
	default:
		return nil, fmt.Errorf("unsupported gorm dialect %q", dialect)
	}

	return gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
}

// UserRepository persists users through GORM.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.User{}, store.ErrNotFound
		}
		return types.User{}, err
	}
	return m.toUser(), nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	m := userModel{
		Email:     user.Email,
		Password:  user.PasswordHash,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || store.IsUniqueViolation(err) {
			return types.User{}, store.ErrDuplicate
		}
		return types.User{}, err
	}
	return m.toUser(), nil
}

// ExpenseRepository persists expenses through GORM.
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) ListByUser(ctx context.Context, userID int64) ([]types.Expense, error) {
	var models []expenseModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	expenses := make([]types.Expense, 0, len(models))
	for _, m := range models {
		expenses = append(expenses, m.toExpense())
	}
	return expenses, nil
}

func (r *ExpenseRepository) Create(ctx context.Context, expense types.Expense) (types.Expense, error) {
	m := expenseModel{
		UserID:    expense.UserID,
		Amount:    expense.Amount,
		Category:  expense.Category,
		CreatedAt: expense.CreatedAt,
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return types.Expense{}, err
	}
	return m.toExpense(), nil
}

func (r *ExpenseRepository) DeleteOwned(ctx context.Context, userID, id int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&expenseModel{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (m userModel) toUser() types.User {
	return types.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.Password,
		CreatedAt:    m.CreatedAt,
	}
}

func (m expenseModel) toExpense() types.Expense {
	return types.Expense{
		ID:        m.ID,
		UserID:    m.UserID,
		Amount:    m.Amount,
		Category:  m.Category,
		CreatedAt: m.CreatedAt,
	}
}
