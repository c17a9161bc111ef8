package config

// Redis backs three optional features: the wizard's scratch-session
// store, distributed rate limiting, and HTTP response caching.  None of
// them is required for the API to serve traffic, so a failed connection
// at startup returns nil and every consumer degrades gracefully.

import (
    "context"
    "crypto/tls"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewRedisClient builds a Redis client from environment variables:
//   REDIS_URL – full redis:// or rediss:// URL (takes precedence)
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
// The returned client is nil when no server answers a short ping.
func NewRedisClient() *redis.Client {
    var client *redis.Client
    if url := os.Getenv("REDIS_URL"); url != "" {
        opts, err := redis.ParseURL(url)
        if err != nil {
            return nil
        }
        client = redis.NewClient(opts)
    } else {
        host := os.Getenv("REDIS_HOST")
        port := os.Getenv("REDIS_PORT")
        addr := os.Getenv("REDIS_ADDR")
        if host != "" && port != "" {
            addr = host + ":" + port
        }
        if addr == "" {
            addr = "localhost:6379"
        }
        dbNum := 0
        if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
            if n, err := strconv.Atoi(dbStr); err == nil {
                dbNum = n
            }
        }
        var tlsConf *tls.Config
        if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
            tlsConf = &tls.Config{InsecureSkipVerify: true}
        }
        client = redis.NewClient(&redis.Options{
            Addr:      addr,
            Password:  os.Getenv("REDIS_PASSWORD"),
            DB:        dbNum,
            TLSConfig: tlsConf,
        })
    }
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        return nil
    }
    return client
}
