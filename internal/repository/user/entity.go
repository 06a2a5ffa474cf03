package user

import (
	"time"

	"github.com/google/uuid"
	"github.com/tobenna/aria/internal/domains/user"
	"gorm.io/gorm"
)

// UserEntity is the database row for a user account.
type UserEntity struct {
	ID          uuid.UUID      `gorm:"primaryKey;type:char(36);not null"`
	DisplayName string         `gorm:"column:display_name;type:varchar(255);not null"`
	Email       string         `gorm:"uniqueIndex;type:varchar(191);not null"`
	Password    string         `gorm:"column:password_hash;type:char(60);not null"`
	CreatedAt   time.Time      `gorm:"autoCreateTime(3)"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime(3)"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (UserEntity) TableName() string {
	return "users"
}

func (u *UserEntity) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *UserEntity) ToDomain() *user.User {
	return &user.User{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Password:    u.Password,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (u *UserEntity) FromDomain(domainUser *user.User) {
	u.ID = domainUser.ID
	u.DisplayName = domainUser.DisplayName
	u.Email = domainUser.Email
	u.Password = domainUser.Password
	u.CreatedAt = domainUser.CreatedAt
	u.UpdatedAt = domainUser.UpdatedAt
}
