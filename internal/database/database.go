package database

import (
	"fmt"
	"time"

	"github.com/veloghq/velog-server/internal/config"
	"github.com/veloghq/velog-server/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the MySQL connection and optionally runs auto-migration.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDev() {
		logLevel = logger.Info
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:               cfg.DSN,
		DefaultStringSize: 191,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Tags preload on posts goes through the explicit join model so the
	// fk_post_id/fk_tag_id column names line up.
	if err := db.SetupJoinTable(&models.PostModel{}, "Tags", &models.PostTagModel{}); err != nil {
		return nil, fmt.Errorf("join table setup failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if autoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return db, nil
}

// Migrate runs GORM auto-migration for every model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.UserModel{},
		&models.UserSession{},
		&models.SocialAccountModel{},
		&models.PostModel{},
		&models.PostTagModel{},
		&models.PostLikeModel{},
		&models.PostReadModel{},
		&models.TagModel{},
		&models.TagAliasModel{},
		&models.SeriesModel{},
		&models.SeriesPostModel{},
		&models.CommentModel{},
		&models.NotificationModel{},
		&models.FileModel{},
	)
}
