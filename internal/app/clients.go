package app

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/storykeep-backend/internal/clients/redis"
	"github.com/yungbote/storykeep-backend/internal/data/db"
	"github.com/yungbote/storykeep-backend/internal/platform/logger"
)

type Clients struct {
	// Redis is nil when REDIS_ADDR is unset.
	Redis *redis.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		log.Info("redis disabled (REDIS_ADDR unset)")
		return out, nil
	}
	rc, err := redis.NewClient(log, redis.Config{Addr: cfg.RedisAddr, Channel: cfg.RedisChannel})
	if err != nil {
		return out, fmt.Errorf("init redis: %w", err)
	}
	out.Redis = rc
	return out, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

// openDatabase connects to the configured driver and migrates the schema.
func openDatabase(log *logger.Logger, cfg Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case DriverSQLite:
		svc, err := db.NewSQLiteService(cfg.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
		if err := svc.AutoMigrateAll(); err != nil {
			return nil, fmt.Errorf("sqlite automigrate: %w", err)
		}
		return svc.DB(), nil
	default:
		svc, err := db.NewPostgresService(db.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Name:     cfg.Postgres.Name,
			SSLMode:  cfg.Postgres.SSLMode,
			DSN:      cfg.Postgres.DSN,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		if err := svc.AutoMigrateAll(); err != nil {
			return nil, fmt.Errorf("postgres automigrate: %w", err)
		}
		return svc.DB(), nil
	}
}
