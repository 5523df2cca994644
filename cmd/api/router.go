// cmd/api/router.go

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/admin"
	"github.com/imadgeboyega/gratitude-backend/internal/common/utils"
	"github.com/imadgeboyega/gratitude-backend/internal/config"
	"github.com/imadgeboyega/gratitude-backend/internal/storage"
	"github.com/imadgeboyega/gratitude-backend/internal/webhook"
)

type routerDeps struct {
	repo  storage.Repository
	jobs  admin.JobRunner
	redis *redis.Client
	log   *zap.Logger
}

func newRouter(cfg *config.Config, deps routerDeps) *mux.Router {
	log := deps.log
	router := mux.NewRouter()

	// Health check and metrics
	router.HandleFunc("/health", healthCheck(deps.repo)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Inbound SMS webhook
	opts := webhook.HTTPOptions{PublicBaseURL: cfg.PublicBaseURL}
	if cfg.WebhookValidateSignature {
		opts.AuthToken = cfg.TwilioAuthToken
	}
	if deps.redis != nil {
		opts.Dedup = webhook.NewRedisDeduper(deps.redis, cfg.WebhookDedupTTL)
	}
	webhook.NewHTTPHandler(webhook.NewHandler(deps.repo, log.Named("webhook")), opts, log.Named("webhook")).RegisterRoutes(router)
	log.Info("Webhook routes registered", zap.Bool("signature_validation", opts.AuthToken != ""), zap.Bool("dedup", opts.Dedup != nil))

	// Admin API
	if cfg.AdminEnabled() {
		adminRouter := chi.NewRouter()
		adminRouter.Use(middleware.RequestID)
		adminRouter.Use(middleware.Recoverer)

		auth := admin.NewAuthenticator(cfg.AdminPasswordHash, cfg.JWTSecret, cfg.AdminTokenExpiry)
		admin.RegisterRoutes(adminRouter, admin.NewHandler(deps.repo, deps.jobs, auth, log.Named("admin")))

		router.PathPrefix("/api/v1/admin").Handler(adminRouter)
		log.Info("Admin routes registered")
	} else {
		log.Info("ADMIN_PASSWORD_HASH not set, admin API disabled")
	}

	// Add middleware
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware)

	return router
}

// healthCheck returns server health status
func healthCheck(repo storage.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		storageStatus := "ok"
		if err := repo.Ping(ctx); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			storageStatus = err.Error()
		}

		utils.RespondWithJSON(w, code, map[string]interface{}{
			"status":    status,
			"storage":   storageStatus,
			"timestamp": time.Now().Format(time.RFC3339),
			"uptime":    time.Since(startTime).String(),
		})
	}
}

// Middleware functions

// loggingMiddleware logs all requests
func loggingMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
