package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/branch/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
	redisUp     bool
)

// GetRedis returns a singleton Redis client based on loaded config.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Get()
		redisClient = redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			if Sugar != nil {
				Sugar.Warnw("redis unreachable at startup, memory fallbacks will be used", "addr", redisClient.Options().Addr, "error", err)
			}
			return
		}
		redisUp = true
	})
	return redisClient
}

// RedisAvailable reports whether the startup ping succeeded.
func RedisAvailable() bool {
	GetRedis()
	return redisUp
}
