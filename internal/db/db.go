package db

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"vipra-store/internal/config"

	_ "github.com/lib/pq"
)

// DSN renders a lib/pq key/value connection string.
func DSN(d config.Database) string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, sslMode,
	)
}

func buildDSN(cfg *config.Config) string {
	return DSN(cfg.DB)
}

// NewDatabase opens a postgres pool and verifies it with a ping.
func NewDatabase(cfg *config.Config) (*sql.DB, error) {
	return newDatabaseWithDriver(cfg, "postgres")
}

// Open is NewDatabase for tools that only carry database settings.
func Open(d config.Database) (*sql.DB, error) {
	return newDatabaseWithDriver(&config.Config{DB: d}, "postgres")
}

func newDatabaseWithDriver(cfg *config.Config, driverName string) (*sql.DB, error) {
	db, err := sql.Open(driverName, buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	return db, nil
}

func InitDB(cfg *config.Config) *sql.DB {
	db, err := NewDatabase(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	log.Println("Database connection established")
	return db
}
