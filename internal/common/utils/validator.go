// internal/common/utils/validator.go
// Input validation using struct tags

package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	phonePattern = regexp.MustCompile(`^\+\d+$`)
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// Global validator instance
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// "phone": a plus sign followed by digits only
	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	// "hhmm": 24-hour wall clock time
	v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})

	return v
}

// FieldError is a single failed struct field
type FieldError struct {
	Field   string
	Message string
}

// FieldErrors is returned by ValidateStruct when one or more fields fail
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	msgs := make([]string, 0, len(fe))
	for _, e := range fe {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, ", ")
}

// ValidateStruct validates a struct based on its tags
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	// Format validation errors into readable messages
	out := make(FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: jsonName(fe.Field()), Message: formatFieldError(fe)})
	}
	return out
}

// IsPhone reports whether s is a "+digits" phone number
func IsPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// formatFieldError converts validator errors to human-readable messages
func formatFieldError(fe validator.FieldError) string {
	field := jsonName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "phone":
		return fmt.Sprintf("%s must start with + followed by digits only", field)
	case "timezone":
		return fmt.Sprintf("%s must be a recognized IANA timezone", field)
	case "hhmm":
		return fmt.Sprintf("%s must be in HH:MM 24-hour format", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// jsonName lower-cases the first letter so messages match the API field names
func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
