package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type PoolConfig struct {
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	// Attempts bounds the startup retries. Delays start at FirstDelay and
	// double up to MaxDelay.
	Attempts   int
	FirstDelay time.Duration
	MaxDelay   time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpen:         25,
		MaxIdle:         5,
		ConnMaxLifetime: 5 * time.Minute,
		Attempts:        8,
		FirstDelay:      500 * time.Millisecond,
		MaxDelay:        15 * time.Second,
	}
}

// ConnectPostgres opens and pings the pool, retrying while the database comes
// up, then migrates the given models.
func ConnectPostgres(ctx context.Context, dsn string, pool PoolConfig, logger *zap.Logger, models ...interface{}) (*gorm.DB, error) {
	return connect(ctx, postgres.Open(dsn), pool, logger, models...)
}

func connect(ctx context.Context, dialector gorm.Dialector, pool PoolConfig, logger *zap.Logger, models ...interface{}) (*gorm.DB, error) {
	if pool.Attempts < 1 {
		pool.Attempts = 1
	}

	delay := pool.FirstDelay
	var lastErr error
	for attempt := 1; attempt <= pool.Attempts; attempt++ {
		db, err := open(ctx, dialector, pool)
		if err == nil {
			logger.Info("Connected to PostgreSQL", zap.Int("attempt", attempt))
			if len(models) > 0 {
				if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
					return nil, fmt.Errorf("auto-migrate: %w", err)
				}
			}
			return db, nil
		}
		lastErr = err
		if attempt == pool.Attempts {
			break
		}

		logger.Warn("PostgreSQL not ready",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect postgres: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > pool.MaxDelay {
			delay = pool.MaxDelay
		}
	}
	return nil, fmt.Errorf("connect postgres after %d attempts: %w", pool.Attempts, lastErr)
}

func open(ctx context.Context, dialector gorm.Dialector, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(pool.MaxOpen)
	sqlDB.SetMaxIdleConns(pool.MaxIdle)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	return sqlDB.Close()
}
