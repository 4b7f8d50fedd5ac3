package repositories

import (
	"context"

	"exercisetracker/internal/models"
)

// UserRepository defines the interface for user and exercise log data access.
type UserRepository interface {
	// Create persists a new user with no exercises and fills in user.ID.
	// It returns ErrDuplicateUsername when the username is already taken.
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetAll(ctx context.Context) ([]models.User, error)
	// DeleteByUsernamePrefix removes every user whose username starts with
	// prefix, together with their exercises, and reports how many users went.
	DeleteByUsernamePrefix(ctx context.Context, prefix string) (int64, error)
	// AppendExercise adds exercise to the end of the user's log. The returned
	// user carries ID and Username only.
	AppendExercise(ctx context.Context, userID string, exercise models.Exercise) (*models.User, error)
	// GetLog filters, truncates and counts the user's exercises in one read.
	GetLog(ctx context.Context, userID string, query models.LogQuery) (*models.Log, error)
}
