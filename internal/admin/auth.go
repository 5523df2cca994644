// internal/admin/auth.go

package admin

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/imadgeboyega/gratitude-backend/internal/common/utils"
)

const (
	adminSubject = "admin"
	adminRole    = "admin"
	tokenType    = "access"
	tokenIssuer  = "gratitude-backend"
)

// ErrInvalidCredentials is returned by Login for a wrong password
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator checks the admin password and issues bearer tokens
type Authenticator struct {
	passwordHash []byte
	secret       string
	expiry       time.Duration
}

// NewAuthenticator creates a new Authenticator from a bcrypt hash
func NewAuthenticator(passwordHash, secret string, expiry time.Duration) *Authenticator {
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	return &Authenticator{
		passwordHash: []byte(passwordHash),
		secret:       secret,
		expiry:       expiry,
	}
}

// Login verifies password and returns a signed token with its expiry
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(a.expiry)
	token, err := utils.GenerateJWT(&utils.JWTClaims{
		Subject:   adminSubject,
		Role:      adminRole,
		Type:      tokenType,
		ExpiresAt: expiresAt.Unix(),
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
		Issuer:    tokenIssuer,
	}, a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Authenticate is the middleware that protects every admin route but login
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			utils.ErrorResponse(w, "Missing or invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := utils.ValidateJWT(token, a.secret)
		if err != nil {
			utils.ErrorResponse(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		if claims.Type != tokenType || claims.Role != adminRole {
			utils.ErrorResponse(w, "Invalid token type", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
