package database

import (
	"context"
	"errors"

	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

type BlogPostRepo struct {
	db *gorm.DB
}

func NewBlogPostRepo(db *gorm.DB) *BlogPostRepo {
	return &BlogPostRepo{db}
}

// primary pins a read to the write source so admin flows see their own writes
// when a read replica is configured.
func (r *BlogPostRepo) primary(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(dbresolver.Write)
}

// withOwner loads the username and email of the owning user.
func withOwner(db *gorm.DB) *gorm.DB {
	return db.Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "username", "email")
	})
}

// Create inserts a new blog post into the database
func (r *BlogPostRepo) Create(ctx context.Context, post *models.BlogPost) error {
	if post.Tags == nil {
		post.Tags = []string{}
	}
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.NewDuplicateSlugError(post.Slug)
	}
	return err
}

// Update writes every editable column of an existing blog post. The view
// counter is left to IncrementViewCount.
func (r *BlogPostRepo) Update(ctx context.Context, post *models.BlogPost) error {
	if post.Tags == nil {
		post.Tags = []string{}
	}
	res := r.db.WithContext(ctx).
		Model(post).
		Select("*").
		Omit("id", "created_at", "view_count", clause.Associations).
		Updates(post)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return errs.NewDuplicateSlugError(post.Slug)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NewNotFound("blog post")
	}
	return nil
}

// FindByID returns a blog post by its ID regardless of status
func (r *BlogPostRepo) FindByID(ctx context.Context, id uint) (*models.BlogPost, error) {
	var post models.BlogPost
	err := withOwner(r.primary(ctx)).First(&post, id).Error
	return postOrNotFound(&post, err)
}

// FindBySlug returns a blog post by slug regardless of status
func (r *BlogPostRepo) FindBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	var post models.BlogPost
	err := r.primary(ctx).Where("slug = ?", slug).First(&post).Error
	return postOrNotFound(&post, err)
}

// SlugTakenByOther reports whether any post other than excludeID already uses slug
func (r *BlogPostRepo) SlugTakenByOther(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var count int64
	q := r.primary(ctx).Model(&models.BlogPost{}).Where("slug = ?", slug)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindPublishedPaged returns published posts, newest publication first.
// A nil limit returns every match; offset only applies together with a limit.
func (r *BlogPostRepo) FindPublishedPaged(ctx context.Context, limit, offset *int) ([]*models.BlogPost, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.BlogPost{}).Where("status = ?", models.StatusPublished)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := withOwner(base.Session(&gorm.Session{})).Order("published_at DESC").Order("id DESC")
	if limit != nil {
		q = q.Limit(*limit)
		if offset != nil {
			q = q.Offset(*offset)
		}
	}

	posts := []*models.BlogPost{}
	if err := q.Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// FindBySlugPublished is the public single-post lookup
func (r *BlogPostRepo) FindBySlugPublished(ctx context.Context, slug string) (*models.BlogPost, error) {
	var post models.BlogPost
	err := withOwner(r.db.WithContext(ctx)).
		Where("slug = ? AND status = ?", slug, models.StatusPublished).
		First(&post).Error
	return postOrNotFound(&post, err)
}

// IncrementViewCount bumps the counter in a single statement
func (r *BlogPostRepo) IncrementViewCount(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).
		Model(&models.BlogPost{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NewNotFound("blog post")
	}
	return nil
}

// FindAllForAdmin returns every post, newest first
func (r *BlogPostRepo) FindAllForAdmin(ctx context.Context) ([]*models.BlogPost, error) {
	posts := []*models.BlogPost{}
	err := withOwner(r.primary(ctx)).Order("created_at DESC").Order("id DESC").Find(&posts).Error
	return posts, err
}

// Delete removes a blog post from the database by id
func (r *BlogPostRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.BlogPost{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NewNotFound("blog post")
	}
	return nil
}

func (r *BlogPostRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BlogPost{}).Count(&count).Error
	return count, err
}

func (r *BlogPostRepo) CountByStatus(ctx context.Context) (map[models.PostStatus]int64, error) {
	var rows []struct {
		Status models.PostStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.BlogPost{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.PostStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func postOrNotFound(post *models.BlogPost, err error) (*models.BlogPost, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NewNotFound("blog post")
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}
