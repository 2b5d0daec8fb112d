package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var errNoConnection = errors.New("repo: no database connection")

// Base binds a gorm connection for the SQL-backed stores.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection scoped to ctx. A nil ctx returns the bare connection.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Ping checks the pooled connection underneath gorm.
func (b Base) Ping(ctx context.Context) error {
	if b.db == nil {
		return errNoConnection
	}
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
