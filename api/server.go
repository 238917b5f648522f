package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adswadi/agency-site-backend/config"
	"github.com/adswadi/agency-site-backend/database"
	"github.com/adswadi/agency-site-backend/ratelimit"
	"github.com/adswadi/agency-site-backend/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Database     database.Database
	Credentials  *services.CredentialStore
	Tokens       *services.TokenService
	Posts        *services.PostService
	LoginLimiter ratelimit.Limiter
	// UploadDir is served at /uploads/ when set (disk asset store only).
	UploadDir string
}

type Server struct {
	*http.Server
	startupTime time.Time
}

func NewServer(c map[string]string, deps Dependencies) (Server, error) {
	if deps.Credentials == nil || deps.Tokens == nil || deps.Posts == nil {
		return Server{}, fmt.Errorf("api: credentials, tokens and posts are required")
	}

	port := config.GetString(c, "PORT", "5000")
	address := fmt.Sprintf("0.0.0.0:%s", port) // Bind to 0.0.0.0 for external access

	// Capture startup time
	startupTime := time.Now()

	router := newRouter(deps, withConfig(c), withStartupTime(startupTime))

	// Get timeout values from config with sensible defaults
	readTimeout := time.Duration(config.GetInt(c, "READ_TIMEOUT_SECONDS", 60)) * time.Second
	writeTimeout := time.Duration(config.GetInt(c, "WRITE_TIMEOUT_SECONDS", 60)) * time.Second
	idleTimeout := time.Duration(config.GetInt(c, "IDLE_TIMEOUT_SECONDS", 120)) * time.Second

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  readTimeout,  // Timeout for reading the entire request
		WriteTimeout: writeTimeout, // Timeout for writing the response
		IdleTimeout:  idleTimeout,  // Timeout for idle connections
	}

	return Server{server, startupTime}, nil
}

type router struct {
	config      map[string]string
	startupTime time.Time
}

func withConfig(c map[string]string) func(*router) {
	return func(r *router) {
		r.config = c
	}
}

func withStartupTime(startupTime time.Time) func(*router) {
	return func(r *router) {
		r.startupTime = startupTime
	}
}

func newRouter(deps Dependencies, opts ...func(*router)) *chi.Mux {
	var router router
	for _, opt := range opts {
		opt(&router)
	}
	if router.startupTime.IsZero() {
		router.startupTime = time.Now()
	}

	chiRouter := chi.NewRouter()
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(middleware.RealIP)
	chiRouter.Use(LogInternalServerErrors)
	chiRouter.Use(corsMiddleware(config.GetList(router.config, "ACCEPTED_ORIGINS")))

	// Must be registered before the /api sub-router is mounted so it inherits it
	notFoundResponder := NewResponder(log.With().Str("handlerName", "notFound").Logger())
	chiRouter.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
			apiNotFound(notFoundResponder)(w, r)
			return
		}
		http.NotFound(w, r)
	})

	handlers := initializeHandlers(deps, router.startupTime)
	authMiddleware := newAuthMiddleware(deps.Tokens)

	setupAPIRoutes(chiRouter, handlers, authMiddleware, deps.LoginLimiter)
	if deps.UploadDir != "" {
		setupUploadRoutes(chiRouter, deps.UploadDir)
	}

	return chiRouter
}

func (s Server) Start(errChannel chan<- error) {
	log.Info().Msgf("Server started on: %s", s.Addr)
	errChannel <- s.ListenAndServe()
}

func (s Server) ShutdownGracefully(timeout time.Duration) {
	log.Info().Msg("Gracefully shutting down...")

	gracefullCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(gracefullCtx); err != nil {
		log.Error().Msgf("Error shutting down the server: %v", err)
	} else {
		log.Info().Msg("HttpServer gracefully shut down")
	}
}
