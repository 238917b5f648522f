package api

import "github.com/adswadi/agency-site-backend/models"

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Error   string `json:"error" example:"blog post not found"`
	Status  string `json:"status" example:"error"`
	Field   string `json:"field,omitempty" example:"title"`
	Details string `json:"details,omitempty" example:"Additional error details"`
}

// PostCollection is the body of every post listing.
type PostCollection struct {
	Posts []*models.BlogPost `json:"posts"`
	Total int64              `json:"total"`
}

// PostMutationResponse answers create, update and delete.
type PostMutationResponse struct {
	Message string           `json:"message"`
	Post    *models.BlogPost `json:"post"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginUser struct {
	ID       uint        `json:"id"`
	Username string      `json:"username"`
	Email    *string     `json:"email"`
	Role     models.Role `json:"role"`
}

type loginResponse struct {
	Message string    `json:"message"`
	Token   string    `json:"token"`
	User    loginUser `json:"user"`
}

type imageUploadResponse struct {
	Message  string `json:"message"`
	ImageURL string `json:"imageUrl"`
}

type healthResponse struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Database string  `json:"database"`
	Uptime   float64 `json:"uptime"`
}
