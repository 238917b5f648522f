package models

import "time"

// Role is the back-office role of a user.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleAuthor Role = "author"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleAuthor:
		return true
	}
	return false
}

// User is a back-office account. Password always holds a bcrypt hash.
type User struct {
	ID        uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	Username  string     `json:"username" gorm:"size:50;not null;uniqueIndex:idx_users_username"`
	Email     *string    `json:"email" gorm:"size:255;uniqueIndex:idx_users_email"`
	Password  string     `json:"-" gorm:"size:255;not null"`
	Role      Role       `json:"role" gorm:"size:16;not null;default:'admin'"`
	IsActive  bool       `json:"isActive" gorm:"not null;default:true"`
	LastLogin *time.Time `json:"lastLogin"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
