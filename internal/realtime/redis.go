package realtime

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedis returns nil when addr is empty; callers then stay single-instance.
func NewRedis(addr, password string, log *zap.Logger) *redis.Client {
	if addr == "" {
		log.Warn("REDIS_ADDR empty, notifications stay in-process")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	log.Info("redis client created", zap.String("addr", addr))
	return rdb
}
