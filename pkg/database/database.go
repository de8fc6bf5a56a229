package database

import (
	"english_edu_backend/internal/config"
	"english_edu_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	timeZone := cfg.TimeZone
	if timeZone == "" {
		timeZone = "UTC"
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		cfg.Host,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.Port,
		sslMode,
		timeZone,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.Roadmap{},
		&model.WeeklySummary{},
		&model.ConversationSession{},
		&model.Scenario{},
		&model.ScenarioLine{},
		&model.Deck{},
		&model.VocabWord{},
		&model.WordSuggestion{},
		&model.QuizSession{},
		&model.QuizQuestion{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migration completed")
	return nil
}
