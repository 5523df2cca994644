// internal/models/user.go

package models

import (
	"strings"
	"time"

	"github.com/imadgeboyega/gratitude-backend/internal/common/utils"
)

const (
	DefaultTimezone      = "America/New_York"
	DefaultPreferredTime = "20:00"
)

// User is a subscriber, keyed by phone number
type User struct {
	Phone              string    `json:"phone" db:"phone" dynamodbav:"phone"`
	Email              string    `json:"email" db:"email" dynamodbav:"email"`
	Timezone           string    `json:"timezone" db:"timezone" dynamodbav:"timezone"`
	PreferredTime      string    `json:"preferredTime" db:"preferred_time" dynamodbav:"preferred_time"`
	Active             bool      `json:"active" db:"active" dynamodbav:"active"`
	LastDailyDispatch  string    `json:"lastDailyDispatch,omitempty" db:"last_daily_dispatch" dynamodbav:"last_daily_dispatch,omitempty"`
	LastWeeklyDispatch string    `json:"lastWeeklyDispatch,omitempty" db:"last_weekly_dispatch" dynamodbav:"last_weekly_dispatch,omitempty"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at" dynamodbav:"created_at"`
	UpdatedAt          time.Time `json:"updatedAt" db:"updated_at" dynamodbav:"updated_at"`
}

// LastDispatch returns the stored marker for the given job kind
func (u *User) LastDispatch(kind DispatchKind) string {
	switch kind {
	case DispatchDaily:
		return u.LastDailyDispatch
	case DispatchWeekly:
		return u.LastWeeklyDispatch
	}
	return ""
}

// NewUser is the registration payload
type NewUser struct {
	Phone         string `json:"phone" validate:"required,phone"`
	Email         string `json:"email" validate:"required,email"`
	Timezone      string `json:"timezone" validate:"required,timezone"`
	PreferredTime string `json:"preferredTime" validate:"required,hhmm"`
}

// ApplyDefaults fills timezone and preferred time when the caller left them blank
func (n *NewUser) ApplyDefaults() {
	if strings.TrimSpace(n.Timezone) == "" {
		n.Timezone = DefaultTimezone
	}
	if strings.TrimSpace(n.PreferredTime) == "" {
		n.PreferredTime = DefaultPreferredTime
	}
}

// Validate checks every field of the registration payload
func (n *NewUser) Validate() error {
	return toValidationError(utils.ValidateStruct(n))
}

// UserUpdate is a partial update. A nil field is left untouched; a non-nil
// field is validated on its own and then merged.
type UserUpdate struct {
	Email         *string `json:"email,omitempty" validate:"omitnil,email"`
	Timezone      *string `json:"timezone,omitempty" validate:"omitnil,timezone"`
	PreferredTime *string `json:"preferredTime,omitempty" validate:"omitnil,hhmm"`
	Active        *bool   `json:"active,omitempty"`
}

// Validate checks only the fields present in the update
func (u *UserUpdate) Validate() error {
	return toValidationError(utils.ValidateStruct(u))
}

// IsEmpty reports whether the update carries no fields
func (u *UserUpdate) IsEmpty() bool {
	return u.Email == nil && u.Timezone == nil && u.PreferredTime == nil && u.Active == nil
}

// Apply merges the present fields into user
func (u *UserUpdate) Apply(user *User) {
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.Timezone != nil {
		user.Timezone = *u.Timezone
	}
	if u.PreferredTime != nil {
		user.PreferredTime = *u.PreferredTime
	}
	if u.Active != nil {
		user.Active = *u.Active
	}
}

// ValidatePhone checks a bare phone key, e.g. from a URL path
func ValidatePhone(phone string) error {
	if !utils.IsPhone(phone) {
		return NewValidationError("phone", "phone must start with + followed by digits only")
	}
	return nil
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	if fes, ok := err.(utils.FieldErrors); ok && len(fes) > 0 {
		return &ValidationError{Field: fes[0].Field, Message: fes.Error()}
	}
	return &ValidationError{Message: err.Error()}
}
