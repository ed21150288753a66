package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/puzzletrainer/pkg/models"
)

// UserRepository handles database operations for users. Registration and
// identity live here; the selection engine only consumes user ids.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByTelegramID returns the user with the given Telegram id, or nil
// when no such user is registered.
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT * FROM users WHERE telegram_id = ?")
	err := r.db.GetContext(ctx, &user, query, telegramID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if r.db.DriverName() == "postgres" {
		query := `
			INSERT INTO users (telegram_id, username, first_name, last_name, chess_beginner, is_admin)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`
		return r.db.QueryRowContext(ctx, query,
			user.TelegramID,
			user.Username,
			user.FirstName,
			user.LastName,
			user.ChessBeginner,
			user.IsAdmin,
		).Scan(&user.ID, &user.CreatedAt)
	}

	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name, chess_beginner, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.ChessBeginner,
		user.IsAdmin,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	user.ID = id
	return nil
}

// SetBeginner updates whether the user is a chess beginner.
func (r *UserRepository) SetBeginner(ctx context.Context, userID int64, beginner bool) error {
	query := r.db.Rebind("UPDATE users SET chess_beginner = ? WHERE id = ?")
	if _, err := r.db.ExecContext(ctx, query, beginner, userID); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
