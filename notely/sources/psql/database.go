package psql

import (
	"context"
	"fmt"

	"notely/notely/config"
	"notely/notely/sources/psql/models"
	"notely/notely/utils/logging"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	DB *gorm.DB
}

func NewDatabase(ctx context.Context, cfg config.Config) (*Database, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBSSLMode,
	)
	logging.AppLogger.Info("connecting to database",
		zap.String("host", cfg.DBHost), zap.String("port", cfg.DBPort), zap.String("db", cfg.DBName))

	db, err := Open(ctx, postgres.Open(connStr))
	if err != nil {
		return nil, err
	}

	var currentDB string
	_ = db.DB.WithContext(ctx).Raw("SELECT current_database()").Scan(&currentDB).Error
	logging.AppLogger.Info("connected to database", zap.String("db", currentDB))
	return db, nil
}

// Open connects through dialector and migrates the schema. Tests pass an in-memory
// sqlite dialector.
func Open(ctx context.Context, dialector gorm.Dialector) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(&models.Note{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return &Database{DB: db}, nil
}

func (db *Database) Close() {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return
	}
	sqlDB.Close()
}
