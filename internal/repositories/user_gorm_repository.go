package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"exercisetracker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type userRecord struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)"`
	Username  string           `gorm:"uniqueIndex;type:varchar(255);not null"`
	Exercises []exerciseRecord `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

func (userRecord) TableName() string { return "users" }

// exerciseRecord rows are ordered by ID, which preserves insertion order.
type exerciseRecord struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      string `gorm:"index;type:varchar(36);not null"`
	Description string
	Duration    int
	Date        time.Time `gorm:"index"`
}

func (exerciseRecord) TableName() string { return "exercises" }

// AutoMigrate creates or updates the users and exercises tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&userRecord{}, &exerciseRecord{}); err != nil {
		return fmt.Errorf("failed to migrate user tables: %w", err)
	}
	return nil
}

// GORMUserRepository is a GORM implementation of UserRepository.
// The db should be opened with TranslateError so duplicate usernames are
// reported as gorm.ErrDuplicatedKey.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	record := userRecord{
		ID:       uuid.New().String(),
		Username: user.Username,
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID = record.ID
	user.Exercises = []models.Exercise{}
	return nil
}

// GetByUsername retrieves a user and their exercises by username.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var record userRecord
	err := r.db.WithContext(ctx).
		Preload("Exercises", orderedExercises).
		First(&record, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return record.toModel(), nil
}

// GetAll retrieves all users and their exercises in creation order.
func (r *GORMUserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	var records []userRecord
	err := r.db.WithContext(ctx).
		Preload("Exercises", orderedExercises).
		Order("created_at").Order("id").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}

	users := make([]models.User, 0, len(records))
	for i := range records {
		users = append(users, *records[i].toModel())
	}
	return users, nil
}

// DeleteByUsernamePrefix deletes matching users and their exercises in one
// transaction. LIKE narrows the candidates; the prefix check is repeated in
// Go because SQLite's LIKE ignores ASCII case.
func (r *GORMUserRepository) DeleteByUsernamePrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []userRecord
		err := tx.Select("id", "username").
			Where("username LIKE ? ESCAPE ?", escapeLike(prefix)+"%", `\`).
			Find(&candidates).Error
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(candidates))
		for _, c := range candidates {
			if strings.HasPrefix(c.Username, prefix) {
				ids = append(ids, c.ID)
			}
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Where("user_id IN ?", ids).Delete(&exerciseRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&userRecord{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete users with prefix %s: %w", prefix, err)
	}
	return deleted, nil
}

// AppendExercise inserts an exercise row for an existing user.
func (r *GORMUserRepository) AppendExercise(ctx context.Context, userID string, exercise models.Exercise) (*models.User, error) {
	var record userRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id", "username").First(&record, "id = ?", userID).Error; err != nil {
			return err
		}
		return tx.Create(&exerciseRecord{
			UserID:      record.ID,
			Description: exercise.Description,
			Duration:    exercise.Duration,
			Date:        exercise.Date.UTC(),
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to append exercise for user %s: %w", userID, err)
	}
	return &models.User{ID: record.ID, Username: record.Username}, nil
}

// GetLog loads the user with a filtered, limited preload of exercises inside
// a single read transaction.
func (r *GORMUserRepository) GetLog(ctx context.Context, userID string, query models.LogQuery) (*models.Log, error) {
	var record userRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Preload("Exercises", func(db *gorm.DB) *gorm.DB {
			if query.From != nil {
				db = db.Where("date >= ?", query.From.UTC())
			}
			if query.To != nil {
				db = db.Where("date < ?", query.To.UTC())
			}
			return db.Order("id").Limit(effectiveLimit(query.Limit))
		}).First(&record, "id = ?", userID).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query log for user %s: %w", userID, err)
	}

	user := record.toModel()
	return &models.Log{
		UserID:    user.ID,
		Username:  user.Username,
		Count:     len(user.Exercises),
		Exercises: user.Exercises,
	}, nil
}

func orderedExercises(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *userRecord) toModel() *models.User {
	user := &models.User{
		ID:        r.ID,
		Username:  r.Username,
		Exercises: make([]models.Exercise, 0, len(r.Exercises)),
	}
	for _, e := range r.Exercises {
		user.Exercises = append(user.Exercises, models.Exercise{
			Description: e.Description,
			Duration:    e.Duration,
			Date:        e.Date.UTC(),
		})
	}
	return user
}
