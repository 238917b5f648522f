package api

import (
	"net/http"
	"time"

	"github.com/adswadi/agency-site-backend/database"
	"github.com/adswadi/agency-site-backend/errs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	authHandler     authHandler
	blogPostHandler blogPostHandler
	healthHandler   healthHandler
}

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(deps Dependencies, startupTime time.Time) *routeHandlers {
	return &routeHandlers{
		authHandler:     newAuthHandler(deps.Credentials, deps.Tokens),
		blogPostHandler: newBlogPostHandler(deps.Posts),
		healthHandler:   newHealthHandler(deps.Database, startupTime),
	}
}

type healthHandler struct {
	responder   Responder
	logger      zerolog.Logger
	database    database.Database
	startupTime time.Time
}

func newHealthHandler(db database.Database, startupTime time.Time) healthHandler {
	logger := log.With().Str("handlerName", "healthHandler").Logger()
	return healthHandler{
		responder:   NewResponder(logger),
		logger:      logger,
		database:    db,
		startupTime: startupTime,
	}
}

// health reports liveness, database reachability and seconds since startup
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} healthResponse
// @Failure 503 {object} healthResponse
// @Router /api/health [get]
func (h healthHandler) health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:   "OK",
			Message:  "Server is running",
			Database: "memory",
			Uptime:   time.Since(h.startupTime).Seconds(),
		}
		status := http.StatusOK

		if db := h.database.GormDB(); db != nil {
			resp.Database = "ok"
			if err := database.Ping(db.WithContext(r.Context())); err != nil {
				h.logger.Error().Err(err).Msg("database ping failed")
				resp.Status = "DEGRADED"
				resp.Message = "Database unavailable"
				resp.Database = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}

		h.responder.WriteJSONStatus(w, status, resp)
	}
}

func apiNotFound(responder Responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder.WriteError(w, errs.NewNotFoundError("API endpoint not found"))
	}
}
