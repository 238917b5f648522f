package api

import (
	"net/http"
	"strings"

	"github.com/adswadi/agency-site-backend/ratelimit"
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes mounts the public and bearer-protected routes under /api
func setupAPIRoutes(r chi.Router, handlers *routeHandlers, auth authMiddleware, loginLimiter ratelimit.Limiter) {
	r.Route("/api", func(r chi.Router) {
		r.Use(HTTPLoggingMiddleware)

		r.Get("/health", handlers.healthHandler.health())

		login := handlers.authHandler.login()
		if loginLimiter != nil {
			r.With(rateLimitByIP(loginLimiter, "login")).Post("/auth/login", login)
		} else {
			r.Post("/auth/login", login)
		}

		// Public blog endpoints
		r.Get("/blog", handlers.blogPostHandler.listPublished())
		r.Get("/blog/{slug}", handlers.blogPostHandler.getPublishedBySlug())

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.authenticate)

			r.Get("/admin/verify", handlers.authHandler.verify())

			r.Get("/blog/admin/all", handlers.blogPostHandler.listAll())
			r.Get("/blog/admin/{id}", handlers.blogPostHandler.getByID())
			r.Post("/blog", handlers.blogPostHandler.createBlogPost())
			r.Post("/blog/upload-image", handlers.blogPostHandler.uploadImage())
			r.Put("/blog/{id}", handlers.blogPostHandler.updateBlogPost())
			r.Delete("/blog/{id}", handlers.blogPostHandler.deleteBlogPost())
		})
	})
}

// setupUploadRoutes serves stored images from dir without directory listings.
func setupUploadRoutes(r chi.Router, dir string) {
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
	r.Get("/uploads/*", func(w http.ResponseWriter, req *http.Request) {
		if strings.HasSuffix(req.URL.Path, "/") {
			http.NotFound(w, req)
			return
		}
		fileServer.ServeHTTP(w, req)
	})
}
