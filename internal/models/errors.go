// internal/models/errors.go
// Error taxonomy shared by the storage adapters, the scheduler and the HTTP surfaces

package models

import (
	"errors"
	"fmt"
)

// ValidationError is returned when a user field fails its format check.
// Nothing is persisted when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConflictError is returned when creating a user whose phone already exists
type ConflictError struct {
	Phone string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("user with phone %s already exists", e.Phone)
}

// NotFoundError is returned when a mutation targets an unknown phone
type NotFoundError struct {
	Phone string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user with phone %s not found", e.Phone)
}

// TransientDeliveryError wraps a failed or timed out call to an external
// collaborator (prompt generator, SMS gateway, mail relay).
type TransientDeliveryError struct {
	Op  string
	Err error
}

func (e *TransientDeliveryError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransientDeliveryError) Unwrap() error {
	return e.Err
}

// ConfigurationError means the process cannot start with the given settings
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Key, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(key, format string, args ...interface{}) error {
	return &ConfigurationError{Key: key, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsTransient reports whether err is a TransientDeliveryError
func IsTransient(err error) bool {
	var target *TransientDeliveryError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err is a ConfigurationError
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
