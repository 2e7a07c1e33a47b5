package utils

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

// RedisOptions carries the redis section of the application config.
type RedisOptions struct {
	Host     string
	Port     int
	DB       int
	Password string
}

// InitRedis connects the shared client. An empty host leaves Redis disabled and
// GetRedis returns nil, which turns caching into a no-op.
func InitRedis(opts RedisOptions) *redis.Client {
	if opts.Host == "" {
		return nil
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		Sugar.Warnf("redis ping failed addr=%s err=%v", redisClient.Options().Addr, err)
	}
	return redisClient
}

// GetRedis returns the shared client, or nil when Redis is not configured.
func GetRedis() *redis.Client {
	return redisClient
}

// CloseRedis closes the shared client and disables caching.
func CloseRedis() {
	if redisClient == nil {
		return
	}
	if err := redisClient.Close(); err != nil {
		Sugar.Warnf("redis close failed: %v", err)
	}
	redisClient = nil
}
