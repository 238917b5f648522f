package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type authHandler struct {
	responder   Responder
	logger      zerolog.Logger
	credentials *services.CredentialStore
	tokens      *services.TokenService
}

func newAuthHandler(credentials *services.CredentialStore, tokens *services.TokenService) authHandler {
	logger := log.With().Str("handlerName", "authHandler").Logger()

	return authHandler{
		responder:   NewResponder(logger),
		logger:      logger,
		credentials: credentials,
		tokens:      tokens,
	}
}

// login exchanges a username and password for a 24h access token
// @Summary Log in
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} loginResponse
// @Failure 400 {object} ErrorResponse "Malformed body"
// @Failure 401 {object} ErrorResponse "Missing or invalid credentials"
// @Failure 429 {object} ErrorResponse "Too many attempts"
// @Router /api/auth/login [post]
func (h authHandler) login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.responder.WriteError(w, errs.NewMalformedPayloadError("login", err))
			return
		}

		// Empty fields fail inside Verify like any other bad pair
		req.Username = strings.TrimSpace(req.Username)

		user, err := h.credentials.Verify(r.Context(), req.Username, req.Password)
		if err != nil {
			if errs.IsInvalidCredentialsError(err) {
				h.logger.Warn().Str("username", req.Username).Str("remote_addr", r.RemoteAddr).Msg("failed login")
			}
			h.responder.WriteError(w, err)
			return
		}

		token, err := h.tokens.Issue(user)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.logger.Info().Uint("userID", user.ID).Msg("login succeeded")
		h.responder.WriteJSON(w, loginResponse{
			Message: "Login successful",
			Token:   token,
			User: loginUser{
				ID:       user.ID,
				Username: user.Username,
				Email:    user.Email,
				Role:     user.Role,
			},
		})
	}
}

// verify echoes the claims of the presented token
// @Summary Verify admin token
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse "Missing token"
// @Failure 403 {object} ErrorResponse "Invalid or expired token"
// @Router /api/admin/verify [get]
func (h authHandler) verify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := ctxGetClaims(r.Context())
		if err != nil {
			h.responder.WriteError(w, errs.NewMissingTokenError())
			return
		}
		h.responder.WriteJSON(w, map[string]any{
			"valid": true,
			"user":  claims,
		})
	}
}
