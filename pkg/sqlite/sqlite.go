package sqlite

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Path         string `split_words:"true" default:"chative.db"`
	BusyTimeout  int    `split_words:"true" default:"5000"`
	MaxOpenConns int    `split_words:"true" default:"1"`
	LogQueries   bool   `split_words:"true" default:"false"`
}

// DSN returns the sqlite connection string with WAL and busy timeout pragmas.
func (c *Config) DSN() string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", c.Path, c.BusyTimeout)
}

func (c *Config) New() (*gorm.DB, error) {
	level := logger.Silent
	if c.LogQueries {
		level = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(c.DSN()), &gorm.Config{
		Logger:  logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return db, nil
}

func (c *Config) MustNew() *gorm.DB {
	db, err := c.New()
	if err != nil {
		panic(err)
	}

	return db
}
