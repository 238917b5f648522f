package database

import (
	"context"
	"errors"

	"github.com/adswadi/agency-site-backend/errs"
	"github.com/adswadi/agency-site-backend/models"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db}
}

// Create inserts a user whose password has already been hashed
func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errs.NewAlreadyExists("user")
	}
	return err
}

// Update writes every column of an existing user
func (r *UserRepo) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).
		Model(user).
		Select("*").
		Omit("id", "created_at").
		Updates(user)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return errs.NewAlreadyExists("user")
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NewNotFound("user")
	}
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).First(&user, id).Error
	return userOrNotFound(&user, err)
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Clauses(dbresolver.Write).Where("username = ?", username).First(&user).Error
	return userOrNotFound(&user, err)
}

// FindActiveByUsername only matches accounts that may log in
func (r *UserRepo) FindActiveByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("username = ? AND is_active = ?", username, true).
		First(&user).Error
	return userOrNotFound(&user, err)
}

func (r *UserRepo) ExistsByUsernameOrEmail(ctx context.Context, username string, email *string) (bool, error) {
	q := r.db.WithContext(ctx).Clauses(dbresolver.Write).Model(&models.User{}).Where("username = ?", username)
	if email != nil && *email != "" {
		q = q.Or("email = ?", *email)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, err
}

func userOrNotFound(user *models.User, err error) (*models.User, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NewNotFound("user")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
