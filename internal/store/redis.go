package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"santa.share/internal/models"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps entries under "match:<id>" with a TTL equal to the
// entry's retention. Take uses GETDEL, so the read and the delete are one
// atomic command on the server.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(options *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Save(ctx context.Context, id string, entry *models.Entry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return ErrExpired
	}

	data, err := encode(entry)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, matchKey(id), data, ttl).Err()
}

func (r *RedisStore) Take(ctx context.Context, id string) (*models.Entry, error) {
	data, err := r.client.GetDel(ctx, matchKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	entry, err := decode(data)
	if err != nil {
		return nil, err
	}

	if time.Now().After(entry.ExpiresAt) {
		return nil, ErrExpired
	}

	return entry, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, matchKey(id)).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Helpers

func matchKey(id string) string {
	return "match:" + id
}

func encode(entry *models.Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*models.Entry, error) {
	var entry models.Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
