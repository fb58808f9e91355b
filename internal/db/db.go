package db

import (
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/suPer8Hu/biz-assistant/internal/assistant"
	"github.com/suPer8Hu/biz-assistant/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return gdb
}

func Migrate(gdb *gorm.DB) {
	if err := gdb.AutoMigrate(
		&models.Company{},
		&models.User{},
		&models.Profile{},
		&models.Client{},
		&models.Credit{},
		&assistant.Conversation{},
		&assistant.Message{},
		&assistant.QueryAudit{},
		&assistant.Job{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
}
