package task

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"PasskeyWallet/internal/config"
	"PasskeyWallet/internal/storage/database"
)

// OpenStore 根据配置创建指令日志存储。SQL 后端会在返回前完成迁移。
func OpenStore(ctx context.Context, cfg config.JournalConfig) (Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return OpenFileStore(filepath.Join(cfg.Dir, "commands.jsonl"))
	case "mysql", "postgres", "sqlite":
		db, err := database.Open(ctx, database.Config{
			Driver:          cfg.Driver,
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetime) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return NewSQLStore(db)
	default:
		return nil, fmt.Errorf("不支持的日志存储驱动 %q", cfg.Driver)
	}
}

// OpenQueue 根据配置创建指令队列。
func OpenQueue(ctx context.Context, cfg config.QueueConfig) (Queue, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryQueue(cfg.Buffer), nil
	case "redis":
		return NewRedisQueue(ctx, RedisQueueConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisKey,
		})
	case "rabbitmq":
		return NewRabbitMQQueue(RabbitMQConfig{
			URL:     cfg.RabbitURL,
			Queue:   cfg.RabbitQueue,
			Durable: true,
		})
	default:
		return nil, fmt.Errorf("不支持的队列驱动 %q", cfg.Driver)
	}
}
