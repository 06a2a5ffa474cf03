package database

import (
	turnrepo "github.com/tobenna/aria/internal/repository/turn"
	userrepo "github.com/tobenna/aria/internal/repository/user"
	"gorm.io/gorm"
)

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&userrepo.UserEntity{},
		&turnrepo.SessionEntity{},
		&turnrepo.TurnEntity{},
	)
}
