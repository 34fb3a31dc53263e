package user

import "time"

// User is the persisted identity row. Authorization references users by id
// only; credentials live here for the authentication layer.
type User struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"column:name" json:"name"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string { return "users" }
