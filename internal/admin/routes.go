// internal/admin/routes.go

package admin

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all admin routes
func RegisterRoutes(r chi.Router, handler *Handler) {
	// Public routes
	r.Post("/api/v1/admin/login", handler.Login)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(handler.auth.Authenticate)

		// Users
		r.Get("/api/v1/admin/users", handler.ListUsers)
		r.Post("/api/v1/admin/users", handler.CreateUser)
		r.Get("/api/v1/admin/users/{phone}", handler.GetUser)
		r.Patch("/api/v1/admin/users/{phone}", handler.UpdateUser)
		r.Delete("/api/v1/admin/users/{phone}", handler.DeleteUser)

		// Journal
		r.Get("/api/v1/admin/users/{phone}/entries", handler.ListEntries)

		// Jobs
		r.Post("/api/v1/admin/jobs/{kind}/run", handler.RunJob)
	})
}
