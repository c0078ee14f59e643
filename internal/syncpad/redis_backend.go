package syncpad

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "syncpad:doc:"

// RedisDatabase keeps one JSON snapshot per document under a prefixed
// key. Stores are plain SET calls; last write wins, matching the
// upsert contract.
type RedisDatabase struct {
	client *redis.Client
	prefix string
}

func NewRedisDatabase(dsn string) (Database, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrInvalidInput
	}
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, err
	}
	return &RedisDatabase{
		client: redis.NewClient(opts),
		prefix: redisKeyPrefix,
	}, nil
}

func (d *RedisDatabase) Load(ctx context.Context, id string) (PersistedDocument, error) {
	payload, err := d.client.Get(ctx, d.prefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return PersistedDocument{}, ErrNotFound
	}
	if err != nil {
		return PersistedDocument{}, err
	}
	var doc PersistedDocument
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return PersistedDocument{}, err
	}
	return doc, nil
}

func (d *RedisDatabase) Store(ctx context.Context, id string, doc PersistedDocument) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidInput
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return d.client.Set(ctx, d.prefix+id, string(payload), 0).Err()
}

func (d *RedisDatabase) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}
