package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"exercisetracker/internal/models"
	"exercisetracker/internal/repositories"

	"github.com/sirupsen/logrus"
)

// TestUsernamePrefix marks users created by automated test runs.
const TestUsernamePrefix = "fcc_test"

// Event types published after successful writes.
const (
	EventUserCreated    = "user.created"
	EventExerciseLogged = "exercise.logged"
)

// EventPublisher publishes domain events. A nil publisher disables events.
type EventPublisher interface {
	PublishEvent(eventType string, payload map[string]interface{}) error
}

// LoggedExercise is the result of AddExercise.
type LoggedExercise struct {
	UserID   string
	Username string
	Exercise models.Exercise
}

// UserService handles business logic for users and their exercise logs.
type UserService struct {
	repo   repositories.UserRepository
	events EventPublisher
	log    *logrus.Logger
	now    func() time.Time
}

// NewUserService creates a new UserService. events may be nil.
func NewUserService(repo repositories.UserRepository, events EventPublisher, log *logrus.Logger) *UserService {
	return &UserService{
		repo:   repo,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// SetClock replaces the clock used to date exercises submitted without a date.
func (s *UserService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateOrFindUser returns the user named username, creating it first if
// it does not exist yet.
func (s *UserService) CreateOrFindUser(ctx context.Context, username string) (*models.User, error) {
	if err := validate.Var(username, "required,username"); err != nil {
		return nil, ErrInvalidUsername
	}

	existing, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user %s: %w", username, err)
	}

	user := &models.User{Username: username}
	if err := s.repo.Create(ctx, user); err != nil {
		if !errors.Is(err, repositories.ErrDuplicateUsername) {
			return nil, fmt.Errorf("failed to create user %s: %w", username, err)
		}
		// A concurrent request created it between the lookup and the insert.
		existing, err = s.repo.GetByUsername(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user %s: %w", username, err)
		}
		return existing, nil
	}

	s.publish(EventUserCreated, map[string]interface{}{
		"userID":   user.ID,
		"username": user.Username,
	})
	return user, nil
}

// ListUsers retrieves all users with their exercises.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// DeleteTestUsers removes every user whose username starts with
// TestUsernamePrefix and returns how many were removed.
func (s *UserService) DeleteTestUsers(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteByUsernamePrefix(ctx, TestUsernamePrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to delete test users: %w", err)
	}
	return n, nil
}

// AddExercise appends an exercise to the user's log. An empty date means now.
func (s *UserService) AddExercise(ctx context.Context, userID string, in ExerciseInput) (*LoggedExercise, error) {
	if err := validate.Struct(in); err != nil {
		return nil, ErrInvalidDuration
	}
	duration, err := parseDuration(in.Duration)
	if err != nil {
		return nil, err
	}

	date := s.now().UTC()
	if strings.TrimSpace(in.Date) != "" {
		if date, err = ParseDate(in.Date); err != nil {
			return nil, err
		}
	}

	exercise := models.Exercise{
		Description: in.Description,
		Duration:    duration,
		Date:        date,
	}
	user, err := s.repo.AppendExercise(ctx, userID, exercise)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to add exercise: %w", err)
	}

	s.publish(EventExerciseLogged, map[string]interface{}{
		"userID":      user.ID,
		"username":    user.Username,
		"description": exercise.Description,
		"duration":    exercise.Duration,
		"date":        exercise.Date.Format(time.RFC3339),
	})

	return &LoggedExercise{
		UserID:   user.ID,
		Username: user.Username,
		Exercise: exercise,
	}, nil
}

// GetLog returns the user's exercises dated in [from, to), limited to the
// first limit entries.
func (s *UserService) GetLog(ctx context.Context, userID string, in LogInput) (*models.Log, error) {
	from, err := parseOptionalDate(in.From)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalDate(in.To)
	if err != nil {
		return nil, err
	}

	log, err := s.repo.GetLog(ctx, userID, models.LogQuery{
		From:  from,
		To:    to,
		Limit: parseLimit(in.Limit),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get log: %w", err)
	}
	return log, nil
}

func (s *UserService) publish(eventType string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEvent(eventType, payload); err != nil {
		s.log.WithError(err).WithField("event", eventType).Warn("failed to publish event")
	}
}

// parseDuration reads a whole number of minutes; fractions are truncated.
func parseDuration(raw string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, ErrInvalidDuration
	}
	return int(f), nil
}

// parseLimit returns 0 (no limit) for anything that is not a positive integer.
func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
