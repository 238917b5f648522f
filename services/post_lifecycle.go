package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adswadi/agency-site-backend/database"
	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// MaxImageSize caps a single upload.
	MaxImageSize = 5 << 20

	wordsPerMinute       = 200
	excerptLength        = 200
	metaDescriptionLimit = 160
	maxTitleLength       = 255
)

var (
	slugStripPattern  = regexp.MustCompile(`[^a-z0-9 -]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	hyphenRunPattern  = regexp.MustCompile(`-+`)
	markupPattern     = regexp.MustCompile(`<[^>]*>`)

	allowedImageTypes = map[string]bool{
		"jpeg": true,
		"jpg":  true,
		"png":  true,
		"gif":  true,
		"webp": true,
		"avif": true,
	}
)

// GenerateSlug derives the URL identifier of a post from its title.
func GenerateSlug(title string) string {
	slug := strings.ToLower(title)
	slug = slugStripPattern.ReplaceAllString(slug, "")
	slug = whitespacePattern.ReplaceAllString(slug, "-")
	slug = hyphenRunPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// CalculateReadTime estimates minutes to read content at 200 words per minute, never less than 1.
func CalculateReadTime(content string) int {
	words := len(strings.Fields(markupPattern.ReplaceAllString(content, " ")))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

// DeriveExcerpt is the first 200 characters of content followed by "...".
func DeriveExcerpt(content string) string {
	return truncateRunes(content, excerptLength) + "..."
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ApplyPublishTransition stamps PublishedAt when a post moves from previous
// into the published state without a timestamp. It never moves or clears an
// existing timestamp. Pass an empty previous status for a new post.
func ApplyPublishTransition(post *models.BlogPost, previous models.PostStatus, now time.Time) {
	if post.Status != models.StatusPublished || post.PublishedAt != nil || previous == models.StatusPublished {
		return
	}
	t := now
	post.PublishedAt = &t
}

// ImageUpload is an image received from a client, not yet stored.
type ImageUpload struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// ValidateImage enforces the image allow-list and the size cap.
func ValidateImage(img ImageUpload) error {
	field := img.Field
	if field == "" {
		field = "image"
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(img.Filename)), ".")
	if !allowedImageTypes[ext] {
		return errs.NewUnsupportedImageError(field, fmt.Sprintf("extension %q is not an accepted image type", ext))
	}

	mediaType, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(img.ContentType)), ";")
	subtype, ok := strings.CutPrefix(strings.TrimSpace(mediaType), "image/")
	if !ok || !allowedImageTypes[subtype] {
		return errs.NewUnsupportedImageError(field, fmt.Sprintf("content type %q is not an accepted image type", img.ContentType))
	}

	if img.Size > MaxImageSize {
		return errs.NewUnsupportedImageError(field, "image exceeds the 5MB limit")
	}
	return nil
}

// PostInput carries the client-supplied fields of a create or update. Nil or
// blank fields are treated as absent; a nil Tags slice means "not supplied".
type PostInput struct {
	Title           *string
	Excerpt         *string
	Content         *string
	Author          *string
	Status          *string
	Tags            []string
	MetaTitle       *string
	MetaDescription *string
}

func present(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	v := strings.TrimSpace(*s)
	return v, v != ""
}

func parseStatus(raw string) (models.PostStatus, error) {
	status := models.PostStatus(strings.ToLower(raw))
	if !status.Valid() {
		return "", errs.NewInvalidFieldError("status", "must be one of draft, published, archived")
	}
	return status, nil
}

func slugForTitle(title string) (string, error) {
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", errs.NewInvalidFieldError("title", "must be at most 255 characters")
	}
	slug := GenerateSlug(title)
	if slug == "" {
		return "", errs.NewInvalidFieldError("title", "must contain at least one letter or digit")
	}
	return slug, nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// PostService applies derivation and publication rules on top of a PostRepository.
type PostService struct {
	posts  database.PostRepository
	assets AssetStore
	now    func() time.Time
	logger zerolog.Logger
}

func NewPostService(posts database.PostRepository, assets AssetStore) *PostService {
	return &PostService{
		posts:  posts,
		assets: assets,
		now:    time.Now,
		logger: log.With().Str("component", "postService").Logger(),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *PostService) WithClock(now func() time.Time) *PostService {
	s.now = now
	return s
}

func (s *PostService) ensureSlugFree(ctx context.Context, slug string, excludeID uint) error {
	taken, err := s.posts.SlugTakenByOther(ctx, slug, excludeID)
	if err != nil {
		return errs.NewDatabaseError("check slug", "blog post", err)
	}
	if taken {
		return errs.NewDuplicateSlugError(slug)
	}
	return nil
}

func (s *PostService) storeImage(ctx context.Context, img ImageUpload) (string, error) {
	field := img.Field
	if field == "" {
		field = "image"
	}
	ext := strings.ToLower(filepath.Ext(img.Filename))
	name := fmt.Sprintf("%s-%d-%d%s", field, s.now().UnixMilli(), uuid.New().ID(), ext)

	publicPath, err := s.assets.Save(ctx, name, img.Body, img.Size, img.ContentType)
	if err != nil {
		return "", errs.NewStorageError("store image", err)
	}
	return publicPath, nil
}

// removeImage deletes a stored image and only logs failures.
func (s *PostService) removeImage(ctx context.Context, publicPath string) {
	err := s.assets.Delete(ctx, publicPath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Warn().Str("image", publicPath).Msg("image already missing from storage")
	default:
		s.logger.Error().Err(err).Str("image", publicPath).Msg("failed to remove image")
	}
}

// Create validates input, derives the computed fields and stores a new post.
// The image, if any, is stored last and removed again when the insert fails.
func (s *PostService) Create(ctx context.Context, in PostInput, image *ImageUpload, ownerID *uint) (*models.BlogPost, error) {
	title, ok := present(in.Title)
	if !ok {
		return nil, errs.NewMissingRequiredFieldError("title")
	}
	if in.Content == nil || strings.TrimSpace(*in.Content) == "" {
		return nil, errs.NewMissingRequiredFieldError("content")
	}
	content := *in.Content

	slug, err := slugForTitle(title)
	if err != nil {
		return nil, err
	}

	status := models.StatusDraft
	if raw, ok := present(in.Status); ok {
		if status, err = parseStatus(raw); err != nil {
			return nil, err
		}
	}

	if image != nil {
		if err := ValidateImage(*image); err != nil {
			return nil, err
		}
	}

	if err := s.ensureSlugFree(ctx, slug, 0); err != nil {
		return nil, err
	}

	post := &models.BlogPost{
		Title:    title,
		Slug:     slug,
		Content:  content,
		Author:   models.DefaultAuthor,
		Status:   status,
		Tags:     cleanTags(in.Tags),
		ReadTime: CalculateReadTime(content),
		UserID:   ownerID,
	}

	excerpt, hasExcerpt := present(in.Excerpt)
	if !hasExcerpt {
		excerpt = DeriveExcerpt(content)
	}
	post.Excerpt = &excerpt

	if author, ok := present(in.Author); ok {
		post.Author = author
	}

	metaTitle, ok := present(in.MetaTitle)
	if !ok {
		metaTitle = title
	}
	post.MetaTitle = &metaTitle

	metaDescription, ok := present(in.MetaDescription)
	if !ok {
		if hasExcerpt {
			metaDescription = excerpt
		} else {
			metaDescription = truncateRunes(content, metaDescriptionLimit)
		}
	}
	post.MetaDescription = &metaDescription

	ApplyPublishTransition(post, "", s.now())

	var stored string
	if image != nil {
		if stored, err = s.storeImage(ctx, *image); err != nil {
			return nil, err
		}
		post.FeaturedImage = &stored
	}

	if err := s.posts.Create(ctx, post); err != nil {
		if stored != "" {
			s.removeImage(ctx, stored)
		}
		return nil, errs.NewDatabaseError("create", "blog post", err)
	}

	s.logger.Info().Uint("postID", post.ID).Str("slug", post.Slug).Str("status", string(post.Status)).Msg("blog post created")
	return post, nil
}

// Update applies the supplied fields to an existing post. Absent fields keep
// their stored values.
func (s *PostService) Update(ctx context.Context, id uint, in PostInput, image *ImageUpload) (*models.BlogPost, error) {
	if image != nil {
		if err := ValidateImage(*image); err != nil {
			return nil, err
		}
	}

	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, errs.NewDatabaseError("find", "blog post", err)
	}
	previous := post.Status

	if title, ok := present(in.Title); ok {
		slug, err := slugForTitle(title)
		if err != nil {
			return nil, err
		}
		if slug != post.Slug {
			if err := s.ensureSlugFree(ctx, slug, post.ID); err != nil {
				return nil, err
			}
		}
		post.Title = title
		post.Slug = slug
	}

	if in.Content != nil && strings.TrimSpace(*in.Content) != "" {
		post.Content = *in.Content
		post.ReadTime = CalculateReadTime(post.Content)
	}
	if excerpt, ok := present(in.Excerpt); ok {
		post.Excerpt = &excerpt
	}
	if author, ok := present(in.Author); ok {
		post.Author = author
	}
	if raw, ok := present(in.Status); ok {
		status, err := parseStatus(raw)
		if err != nil {
			return nil, err
		}
		post.Status = status
	}
	if in.Tags != nil {
		post.Tags = cleanTags(in.Tags)
	}
	if metaTitle, ok := present(in.MetaTitle); ok {
		post.MetaTitle = &metaTitle
	}
	if metaDescription, ok := present(in.MetaDescription); ok {
		post.MetaDescription = &metaDescription
	}

	ApplyPublishTransition(post, previous, s.now())

	var replaced, stored string
	if image != nil {
		if stored, err = s.storeImage(ctx, *image); err != nil {
			return nil, err
		}
		if post.FeaturedImage != nil {
			replaced = *post.FeaturedImage
		}
		post.FeaturedImage = &stored
	}

	if err := s.posts.Update(ctx, post); err != nil {
		if stored != "" {
			s.removeImage(ctx, stored)
		}
		return nil, errs.NewDatabaseError("update", "blog post", err)
	}

	if replaced != "" && replaced != stored {
		s.removeImage(ctx, replaced)
	}

	s.logger.Info().Uint("postID", post.ID).Str("slug", post.Slug).Str("status", string(post.Status)).Msg("blog post updated")
	return post, nil
}

// Delete removes a post and its image. A missing or undeletable image never
// blocks removal of the record.
func (s *PostService) Delete(ctx context.Context, id uint) (*models.BlogPost, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, errs.NewDatabaseError("find", "blog post", err)
	}

	if post.FeaturedImage != nil && *post.FeaturedImage != "" {
		s.removeImage(ctx, *post.FeaturedImage)
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return nil, errs.NewDatabaseError("delete", "blog post", err)
	}

	s.logger.Info().Uint("postID", post.ID).Str("slug", post.Slug).Msg("blog post deleted")
	return post, nil
}

// ListPublished returns published posts, most recently published first.
func (s *PostService) ListPublished(ctx context.Context, limit, offset *int) ([]*models.BlogPost, int64, error) {
	posts, total, err := s.posts.FindPublishedPaged(ctx, limit, offset)
	if err != nil {
		return nil, 0, errs.NewDatabaseError("list", "blog posts", err)
	}
	return posts, total, nil
}

// GetPublishedBySlug returns a published post and counts the view.
func (s *PostService) GetPublishedBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	post, err := s.posts.FindBySlugPublished(ctx, slug)
	if err != nil {
		return nil, errs.NewDatabaseError("find", "blog post", err)
	}
	if err := s.posts.IncrementViewCount(ctx, post.ID); err != nil {
		return nil, errs.NewDatabaseError("count view of", "blog post", err)
	}
	post.ViewCount++
	return post, nil
}

// ListAll returns every post regardless of status, newest first.
func (s *PostService) ListAll(ctx context.Context) ([]*models.BlogPost, error) {
	posts, err := s.posts.FindAllForAdmin(ctx)
	if err != nil {
		return nil, errs.NewDatabaseError("list", "blog posts", err)
	}
	return posts, nil
}

// Get returns a post by id regardless of status. No view is counted.
func (s *PostService) Get(ctx context.Context, id uint) (*models.BlogPost, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, errs.NewDatabaseError("find", "blog post", err)
	}
	return post, nil
}

// StoreImage validates and stores a standalone image, returning its public URL.
func (s *PostService) StoreImage(ctx context.Context, img ImageUpload) (string, error) {
	if err := ValidateImage(img); err != nil {
		return "", err
	}
	return s.storeImage(ctx, img)
}
