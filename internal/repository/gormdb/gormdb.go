// Package gormdb implements the persistence cache's record store on top of
// gorm, sharing the connection pool opened by the sqlite repository.
package gormdb

import (
	"database/sql"
	"fmt"
	"log/slog"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open wraps an existing modernc SQLite pool in a gorm handle. The caller
// keeps ownership of conn and closes it.
func Open(conn *sql.DB, log *slog.Logger) (*gorm.DB, error) {
	dialector := &gormsqlite.Dialector{DriverName: "sqlite", Conn: conn}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewLogger(log),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return db, nil
}
