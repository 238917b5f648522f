package database

import (
	"context"

	"github.com/adswadi/agency-site-backend/models"
	"gorm.io/gorm"
)

// PostRepository persists blog posts. Lookups that find nothing return an
// error matching errs.ErrNotFound; slug collisions match errs.ErrDuplicateSlug.
type PostRepository interface {
	Create(ctx context.Context, post *models.BlogPost) error
	Update(ctx context.Context, post *models.BlogPost) error
	FindByID(ctx context.Context, id uint) (*models.BlogPost, error)
	FindBySlug(ctx context.Context, slug string) (*models.BlogPost, error)
	SlugTakenByOther(ctx context.Context, slug string, excludeID uint) (bool, error)
	FindPublishedPaged(ctx context.Context, limit, offset *int) ([]*models.BlogPost, int64, error)
	FindBySlugPublished(ctx context.Context, slug string) (*models.BlogPost, error)
	IncrementViewCount(ctx context.Context, id uint) error
	FindAllForAdmin(ctx context.Context) ([]*models.BlogPost, error)
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[models.PostStatus]int64, error)
}

// UserRepository persists back-office users. It never hashes anything itself.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindActiveByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username string, email *string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type Database struct {
	blogPostRepo PostRepository
	userRepo     UserRepository
	gormDB       *gorm.DB
}

// New initializes a new Database struct with each repository using a shared GORM database instance
func New(db *gorm.DB) Database {
	return Database{
		blogPostRepo: NewBlogPostRepo(db),
		userRepo:     NewUserRepo(db),
		gormDB:       db,
	}
}

// NewMemory returns a Database backed by process memory. Nothing survives a restart.
func NewMemory() Database {
	users := NewMemoryUserRepo()
	return Database{
		blogPostRepo: NewMemoryBlogPostRepo().WithOwners(users),
		userRepo:     users,
	}
}

// Accessor methods for each repository

func (d Database) BlogPostRepo() PostRepository {
	return d.blogPostRepo
}

func (d Database) UserRepo() UserRepository {
	return d.userRepo
}

// GormDB returns the underlying connection, or nil for the memory backend.
func (d Database) GormDB() *gorm.DB {
	return d.gormDB
}
