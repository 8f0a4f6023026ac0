package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"pdf-editor/internal/logger"
)

// DefaultRedisKey is the hash holding saved signatures.
const DefaultRedisKey = "pdf-editor:signatures"

// RedisConf configures RedisSignatures.
type RedisConf struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// RedisSignatures keeps signature PNGs as fields of one Redis hash, so
// several service instances share the same signatures.
type RedisSignatures struct {
	client *redis.Client
	key    string
}

var _ SignatureStore = (*RedisSignatures)(nil)

// NewRedisSignatures connects and pings the server.
func NewRedisSignatures(ctx context.Context, conf RedisConf) (*RedisSignatures, error) {
	if conf.Addr == "" {
		return nil, errors.New("redis address not configured")
	}
	if conf.Key == "" {
		conf.Key = DefaultRedisKey
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", conf.Addr, err)
	}
	logger.Info("redis signature store connected", logger.String("addr", conf.Addr), logger.String("key", conf.Key))
	return &RedisSignatures{client: client, key: conf.Key}, nil
}

func (s *RedisSignatures) Save(ctx context.Context, raw []byte) (string, error) {
	data, err := signaturePNG(raw)
	if err != nil {
		return "", err
	}
	name := newName(".png")
	if err := s.client.HSet(ctx, s.key, name, data).Err(); err != nil {
		return "", fmt.Errorf("save signature: %w", err)
	}
	return name, nil
}

func (s *RedisSignatures) Resolve(ctx context.Context, name string) ([]byte, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	data, err := s.client.HGet(ctx, s.key, name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RedisSignatures) List(ctx context.Context) ([]string, error) {
	names, err := s.client.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s *RedisSignatures) Close() error {
	return s.client.Close()
}
