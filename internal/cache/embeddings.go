package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Embeddings shares computed embedding vectors between processes.
type Embeddings struct {
	client redisKV
	prefix string
	ttl    time.Duration
}

func NewEmbeddings(client redisKV, ttl time.Duration) *Embeddings {
	return &Embeddings{client: client, prefix: "embedding:", ttl: ttl}
}

// Get reports found=false on a cache miss.
func (e *Embeddings) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := e.client.Get(ctx, e.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var vector []float32
	if err = msgpack.Unmarshal(data, &vector); err != nil {
		return nil, false, err
	}
	return vector, true, nil
}

func (e *Embeddings) Set(ctx context.Context, key string, vector []float32) error {
	data, err := msgpack.Marshal(vector)
	if err != nil {
		return err
	}
	return e.client.Set(ctx, e.prefix+key, data, e.ttl).Err()
}
