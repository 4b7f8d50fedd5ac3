package services

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// usernamePattern allows word characters, hyphen, '@' and space.
var usernamePattern = regexp.MustCompile(`^[\w\-@ ]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// RegisterValidation only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ExerciseInput is the raw form input for a new exercise.
type ExerciseInput struct {
	Description string
	Duration    string `validate:"required,numeric"`
	Date        string
}

// LogInput is the raw query input for a log request. Empty fields are
// unbounded.
type LogInput struct {
	From  string
	To    string
	Limit string
}
