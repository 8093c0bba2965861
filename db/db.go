package db

import (
	"fmt"

	"projector_reservation/config"
	"projector_reservation/log"
	"projector_reservation/models"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func gormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:                                   logger.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	}
}

// ConnectDB opens the configured database and migrates it. The sqlite
// driver is meant for local development.
func ConnectDB(cfg config.Config) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Server.Mode == "development" {
		level = logger.Info
	}

	var (
		conn *gorm.DB
		err  error
	)
	switch cfg.Database.Driver {
	case "sqlite":
		conn, err = OpenSQLite(cfg.Database.SQLitePath, level)
	default:
		conn, err = gorm.Open(postgres.Open(cfg.PostgresDSN()), gormConfig(level))
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Logger.Info("database connected", zap.String("driver", cfg.Database.Driver), zap.String("name", cfg.Database.Name))
	return conn, nil
}

// OpenSQLite opens path (":memory:" works) on a single connection, so
// writers queue behind each other the way row locks make them on Postgres.
func OpenSQLite(path string, level logger.LogLevel) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(path), gormConfig(level))
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return conn, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.UserRole{},
		&models.Credential{},
		&models.Projector{},
		&models.Reservation{},
		&models.Notification{},
		&models.ProjectorLog{},
	); err != nil {
		return err
	}

	// At most one active reservation per projector.
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_active_per_projector
	  ON %s (projector_id)
	  WHERE status = 'approved' AND returned_at IS NULL;
	`, models.ReservationTable, models.ReservationTable)).Error; err != nil {
		return err
	}

	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_pending_start
	  ON %s (start_time)
	  WHERE status = 'pending';
	`, models.ReservationTable, models.ReservationTable)).Error; err != nil {
		return err
	}

	return nil
}
