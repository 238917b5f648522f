package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/models"
	"github.com/adswadi/agency-site-backend/services"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type blogPostHandler struct {
	responder Responder
	logger    zerolog.Logger
	posts     *services.PostService
}

func newBlogPostHandler(posts *services.PostService) blogPostHandler {
	logger := log.With().Str("handlerName", "blogPostHandler").Logger()

	return blogPostHandler{
		responder: NewResponder(logger),
		logger:    logger,
		posts:     posts,
	}
}

func parsePostID(r *http.Request) (uint, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, errs.NewMissingRequiredFieldError("id")
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errs.NewInvalidFieldError("id", "must be a positive integer")
	}
	return uint(id), nil
}

// optionalNonNegative reads an integer query parameter; absent means nil.
func optionalNonNegative(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return nil, errs.NewInvalidFieldError(name, "must be a non-negative integer")
	}
	return &n, nil
}

// listPublished returns published posts, newest publication first
// @Summary List published blog posts
// @Tags Blog Posts
// @Produce json
// @Param status query string false "Only 'published' is accepted"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset, applied only with limit"
// @Success 200 {object} PostCollection
// @Failure 400 {object} ErrorResponse
// @Router /api/blog [get]
func (h blogPostHandler) listPublished() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status := r.URL.Query().Get("status"); status != "" && status != string(models.StatusPublished) {
			h.responder.WriteError(w, errs.NewInvalidFieldError("status", "only published posts are listed publicly"))
			return
		}

		limit, err := optionalNonNegative(r, "limit")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		offset, err := optionalNonNegative(r, "offset")
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		posts, total, err := h.posts.ListPublished(r.Context(), limit, offset)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, PostCollection{Posts: posts, Total: total})
	}
}

// getPublishedBySlug returns one published post and counts the view
// @Summary Get published blog post
// @Tags Blog Posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} models.BlogPost
// @Failure 404 {object} ErrorResponse
// @Router /api/blog/{slug} [get]
func (h blogPostHandler) getPublishedBySlug() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := h.posts.GetPublishedBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, post)
	}
}

// listAll returns every post for the admin dashboard
// @Summary List all blog posts
// @Tags Blog Posts
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PostCollection
// @Router /api/blog/admin/all [get]
func (h blogPostHandler) listAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.posts.ListAll(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, PostCollection{Posts: posts, Total: int64(len(posts))})
	}
}

// getByID returns any post by id without counting a view
// @Summary Get blog post for editing
// @Tags Blog Posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.BlogPost
// @Failure 404 {object} ErrorResponse
// @Router /api/blog/admin/{id} [get]
func (h blogPostHandler) getByID() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePostID(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		post, err := h.posts.Get(r.Context(), id)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, post)
	}
}

// createBlogPost creates a post from JSON or multipart form data
// @Summary Create blog post
// @Tags Blog Posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Success 201 {object} PostMutationResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/blog [post]
func (h blogPostHandler) createBlogPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ownerID *uint
		if claims, err := ctxGetClaims(r.Context()); err == nil {
			ownerID = &claims.ID
		}

		parsed, err := parsePostRequest(w, r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		defer parsed.close()

		post, err := h.posts.Create(r.Context(), parsed.input, parsed.image, ownerID)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSONStatus(w, http.StatusCreated, PostMutationResponse{
			Message: "Blog post created successfully",
			Post:    post,
		})
	}
}

// updateBlogPost applies the supplied fields to an existing post
// @Summary Update blog post
// @Tags Blog Posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} PostMutationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/blog/{id} [put]
func (h blogPostHandler) updateBlogPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePostID(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		parsed, err := parsePostRequest(w, r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		defer parsed.close()

		post, err := h.posts.Update(r.Context(), id, parsed.input, parsed.image)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, PostMutationResponse{
			Message: "Blog post updated successfully",
			Post:    post,
		})
	}
}

// deleteBlogPost removes a post and its image
// @Summary Delete blog post
// @Tags Blog Posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} PostMutationResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/blog/{id} [delete]
func (h blogPostHandler) deleteBlogPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parsePostID(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		post, err := h.posts.Delete(r.Context(), id)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, PostMutationResponse{
			Message: "Blog post deleted successfully",
			Post:    post,
		})
	}
}

// uploadImage stores a standalone image for use inside post content
// @Summary Upload image
// @Tags Blog Posts
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Success 200 {object} imageUploadResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/blog/upload-image [post]
func (h blogPostHandler) uploadImage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxPostBody)
		if !isMultipart(r) {
			h.responder.WriteError(w, errs.NewMissingRequiredFieldError(imageFieldUpload))
			return
		}
		if err := parseMultipartForm(r); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		image, file, err := formImage(r.MultipartForm, imageFieldUpload)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if image == nil {
			h.responder.WriteError(w, errs.NewMissingRequiredFieldError(imageFieldUpload))
			return
		}
		defer file.Close()

		url, err := h.posts.StoreImage(r.Context(), *image)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, imageUploadResponse{
			Message:  "Image uploaded successfully",
			ImageURL: url,
		})
	}
}
