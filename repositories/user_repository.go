package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/blogem/memorial-registry/apperr"
	"github.com/blogem/memorial-registry/models"
)

// UserRepository interface defines local account operations
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

// GetByUsername retrieves a user by username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role FROM users WHERE username = ?`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user %q not found", username)
	}
	if err != nil {
		return nil, apperr.Storage("failed to get user", err)
	}
	return &user, nil
}

// Create inserts a new user
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`,
		user.Username,
		user.PasswordHash,
		user.Role,
	)
	if err != nil {
		return apperr.Storage("failed to create user", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperr.Storage("failed to get inserted ID", err)
	}
	user.ID = id
	return nil
}
