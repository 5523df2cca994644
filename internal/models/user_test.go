package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestNewUserValidate(t *testing.T) {
	valid := NewUser{Phone: "+15551234567", Email: "a@example.com", Timezone: "America/New_York", PreferredTime: "20:00"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		mut   func(*NewUser)
		field string
	}{
		{"phone without plus", func(n *NewUser) { n.Phone = "15551234567" }, "phone"},
		{"phone with letters", func(n *NewUser) { n.Phone = "+1555abc" }, "phone"},
		{"phone with dashes", func(n *NewUser) { n.Phone = "+1-555-123" }, "phone"},
		{"bad email", func(n *NewUser) { n.Email = "nope" }, "email"},
		{"unknown timezone", func(n *NewUser) { n.Timezone = "Mars/Olympus" }, "timezone"},
		{"local timezone", func(n *NewUser) { n.Timezone = "Local" }, "timezone"},
		{"hour out of range", func(n *NewUser) { n.PreferredTime = "24:00" }, "preferredTime"},
		{"single digit hour", func(n *NewUser) { n.PreferredTime = "8:00" }, "preferredTime"},
		{"twelve hour clock", func(n *NewUser) { n.PreferredTime = "8:00pm" }, "preferredTime"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid
			tt.mut(&n)
			err := n.Validate()
			require.Error(t, err)
			assert.True(t, IsValidation(err))

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestNewUserApplyDefaults(t *testing.T) {
	n := NewUser{Phone: "+15551234567", Email: "a@example.com"}
	n.ApplyDefaults()
	assert.Equal(t, DefaultTimezone, n.Timezone)
	assert.Equal(t, DefaultPreferredTime, n.PreferredTime)
	assert.NoError(t, n.Validate())
}

func TestUserUpdateValidatesOnlyPresentFields(t *testing.T) {
	assert.NoError(t, (&UserUpdate{}).Validate())
	assert.NoError(t, (&UserUpdate{PreferredTime: strPtr("07:30")}).Validate())

	err := (&UserUpdate{Timezone: strPtr("")}).Validate()
	assert.True(t, IsValidation(err), "empty timezone must not pass as absent")

	err = (&UserUpdate{Email: strPtr("ok@example.com"), PreferredTime: strPtr("7pm")}).Validate()
	assert.True(t, IsValidation(err))
}

func TestUserUpdateApply(t *testing.T) {
	u := User{Phone: "+1", Email: "old@example.com", Timezone: "UTC", PreferredTime: "09:00", Active: true}
	inactive := false
	upd := UserUpdate{PreferredTime: strPtr("10:15"), Active: &inactive}
	upd.Apply(&u)

	assert.Equal(t, "old@example.com", u.Email)
	assert.Equal(t, "UTC", u.Timezone)
	assert.Equal(t, "10:15", u.PreferredTime)
	assert.False(t, u.Active)
}

func TestDispatchMarkers(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	local := time.Date(2026, 10, 18, 20, 1, 0, 0, ny)
	assert.Equal(t, "2026-10-18", DispatchDaily.Marker(local))
	assert.Equal(t, "2026-W42", DispatchWeekly.Marker(local))

	// ISO week 1 of 2027 starts on Monday 2027-01-04; Jan 1-3 belong to 2026-W53
	assert.Equal(t, "2026-W53", DispatchWeekly.Marker(time.Date(2027, 1, 2, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", DispatchKind("hourly").Marker(local))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, IsNotFound(&NotFoundError{Phone: "+1"}))
	assert.True(t, IsConflict(&ConflictError{Phone: "+1"}))
	assert.False(t, IsConflict(&NotFoundError{Phone: "+1"}))
	assert.True(t, IsConfiguration(NewConfigurationError("STORAGE_BACKEND", "unknown backend %q", "mongo")))

	wrapped := &TransientDeliveryError{Op: "send sms", Err: assert.AnError}
	assert.True(t, IsTransient(wrapped))
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Equal(t, "user with phone +1 already exists", (&ConflictError{Phone: "+1"}).Error())
}
