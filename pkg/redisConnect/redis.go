package redisconnect

import (
	"context"
	"fmt"
	"time"

	nrredis "github.com/newrelic/go-agent/v3/integrations/nrredis-v9"
	"github.com/redis/go-redis/v9"
)

// Config is the redis section of the column config file.
type Config struct {
	Host     string        `yaml:"host" validate:"required"`
	Port     string        `yaml:"port" validate:"required"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"gte=0"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
}

// DefaultTTL bounds how long a cached value can outlive a write made by
// another process.
const DefaultTTL = 10 * time.Minute

// SetDefaults fills the cache TTL when the file leaves it out.
func (c *Config) SetDefaults() {
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
}

func ConnectRedis(config Config) (redisClient *redis.Client, err error) {
	ctx := context.Background()
	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%s", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	}
	redisClient = redis.NewClient(
		opts,
	)
	redisClient.AddHook(nrredis.NewHook(opts))

	err = redisClient.Ping(ctx).Err()
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return
}
