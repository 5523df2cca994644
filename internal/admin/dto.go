// internal/admin/dto.go

package admin

import (
	"time"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
)

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the bearer token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EntriesResponse lists a user's recent entries
type EntriesResponse struct {
	Phone   string         `json:"phone"`
	Days    int            `json:"days"`
	Entries []models.Entry `json:"entries"`
}
