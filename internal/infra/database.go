package infra

import (
	"embed"
	"errors"
	"fmt"

	"github.com/deimercs/gestorfacturas/internal/model"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Supported DATABASE_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// NewDatabase opens a GORM connection for the given driver. Postgres is the
// production store; SQLite is accepted for local development and tests.
// TranslateError is enabled so unique violations surface as
// gorm.ErrDuplicatedKey on both drivers.
func NewDatabase(driver, dsn string, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("driver de base de datos no soportado: %q", driver)
	}

	logLevel := logger.Silent
	if debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// Writers are serialized by SQLite itself; one connection avoids
		// SQLITE_BUSY between pooled connections.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}
	return db, nil
}

// RunMigrations brings the schema up to date. Postgres uses the embedded SQL
// migrations through golang-migrate; SQLite falls back to AutoMigrate.
func RunMigrations(db *gorm.DB, dsn string) error {
	if db.Dialector.Name() != DriverPostgres {
		return AutoMigrate(db)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// AutoMigrate creates the schema from the GORM models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Usuario{},
		&model.Cliente{},
		&model.Proveedor{},
		&model.Orden{},
		&model.OrdenItem{},
		&model.OrdenArchivo{},
	)
}
