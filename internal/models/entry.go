// internal/models/entry.go

package models

import (
	"fmt"
	"time"
)

// DefaultEntryWindowDays is the look-back used by the weekly summary
const DefaultEntryWindowDays = 7

// Entry is an immutable journal record received by SMS
type Entry struct {
	ID        string    `json:"id" db:"id" dynamodbav:"id"`
	Phone     string    `json:"phone" db:"phone" dynamodbav:"phone"`
	Text      string    `json:"text" db:"body" dynamodbav:"body"`
	Timestamp time.Time `json:"timestamp" db:"created_at" dynamodbav:"created_at"`
}

// DispatchKind identifies a scheduled job and its dedup marker
type DispatchKind string

const (
	DispatchDaily  DispatchKind = "daily"
	DispatchWeekly DispatchKind = "weekly"
)

// Valid reports whether k is a known job kind
func (k DispatchKind) Valid() bool {
	return k == DispatchDaily || k == DispatchWeekly
}

// Marker returns the dedup marker for an instant already converted to the
// user's zone: the local date for daily jobs, the ISO week for weekly jobs.
func (k DispatchKind) Marker(local time.Time) string {
	switch k {
	case DispatchDaily:
		return local.Format("2006-01-02")
	case DispatchWeekly:
		year, week := local.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	}
	return ""
}
