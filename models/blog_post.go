package models

import (
	"time"

	"gorm.io/datatypes"
)

// PostStatus is the publication state of a blog post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
	StatusArchived  PostStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// DefaultAuthor is used when a post is created without an author byline.
const DefaultAuthor = "Agency Team"

// BlogPost represents a blog article and its derived metadata
type BlogPost struct {
	ID              uint                        `json:"id" gorm:"primaryKey;autoIncrement"`
	Title           string                      `json:"title" gorm:"size:255;not null"`
	Slug            string                      `json:"slug" gorm:"size:255;not null;uniqueIndex:idx_blog_posts_slug"`
	Excerpt         *string                     `json:"excerpt" gorm:"type:text"`
	Content         string                      `json:"content" gorm:"type:text;not null"`
	FeaturedImage   *string                     `json:"featuredImage" gorm:"size:512"`
	Author          string                      `json:"author" gorm:"size:255;not null;default:'Agency Team'"`
	Status          PostStatus                  `json:"status" gorm:"size:16;not null;default:'draft';index:idx_blog_posts_status_published,priority:1"`
	PublishedAt     *time.Time                  `json:"publishedAt" gorm:"index:idx_blog_posts_status_published,priority:2"`
	Tags            datatypes.JSONSlice[string] `json:"tags"`
	MetaTitle       *string                     `json:"metaTitle" gorm:"size:255"`
	MetaDescription *string                     `json:"metaDescription" gorm:"type:text"`
	ReadTime        int                         `json:"readTime" gorm:"not null;default:1"`
	ViewCount       int                         `json:"viewCount" gorm:"not null;default:0"`
	UserID          *uint                       `json:"userId" gorm:"index"`
	User            *PostOwner                  `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:SET NULL"`
	CreatedAt       time.Time                   `json:"createdAt"`
	UpdatedAt       time.Time                   `json:"updatedAt"`
}

func (BlogPost) TableName() string {
	return "blog_posts"
}

// PostOwner is the part of the owning user that is shown with a post.
type PostOwner struct {
	ID       uint    `json:"-"`
	Username string  `json:"username"`
	Email    *string `json:"email"`
}

func (PostOwner) TableName() string {
	return "users"
}
