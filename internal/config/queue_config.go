package config

import (
	"fmt"
	"time"
)

const (
	QueueDriverMemory = "memory"
	QueueDriverRedis  = "redis"
)

type QueueConfig struct {
	Driver         string        `mapstructure:"driver"`
	Stream         string        `mapstructure:"stream"`
	Group          string        `mapstructure:"group"`
	Consumer       string        `mapstructure:"consumer"`
	MaxDeliveries  int64         `mapstructure:"max_deliveries"`
	ClaimIdle      time.Duration `mapstructure:"claim_idle"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	MemoryCapacity int           `mapstructure:"memory_capacity"`
}

func (config QueueConfig) validate() error {
	switch config.Driver {
	case QueueDriverMemory:
		if config.MemoryCapacity <= 0 {
			return fmt.Errorf("memory_capacity must be positive")
		}
	case QueueDriverRedis:
		if config.Stream == "" || config.Group == "" {
			return fmt.Errorf("stream and group are required for redis queue")
		}
	default:
		return fmt.Errorf("unsupported queue driver: %q", config.Driver)
	}
	if config.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive")
	}
	return nil
}

func (config QueueConfig) bindEnvironmentVariables() error {
	return bindEnv(map[string]string{
		"queue.driver":   "QUEUE_DRIVER",
		"queue.consumer": "QUEUE_CONSUMER",
	})
}

type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	EmbeddingTTL time.Duration `mapstructure:"embedding_ttl"`
}

func (config RedisConfig) Enabled() bool {
	return config.Addr != ""
}

func (config RedisConfig) validate() error {
	if config.DB < 0 {
		return fmt.Errorf("db must not be negative")
	}
	return nil
}

func (config RedisConfig) bindEnvironmentVariables() error {
	return bindEnv(map[string]string{
		"redis.addr":     "REDIS_ADDR",
		"redis.password": "REDIS_PASSWORD",
	})
}
