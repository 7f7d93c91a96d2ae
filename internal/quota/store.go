package quota

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key the counter is stored under.
const DefaultRedisKey = "footballer_search_quota"

// FileStore keeps the counter in a JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (*Counter, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading quota file: %w", err)
	}

	var c Counter
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing quota file: %w", err)
	}
	return &c, nil
}

// Save writes through a temp file and rename so a crash never leaves a torn file.
func (s *FileStore) Save(ctx context.Context, c *Counter) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding quota: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating quota dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".quota-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing quota: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing quota file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing quota file: %w", err)
	}
	return nil
}

// RedisStore keeps the counter under a single Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key, ttl: 48 * time.Hour}
}

func (s *RedisStore) Load(ctx context.Context) (*Counter, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var c Counter
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing quota: %w", err)
	}
	return &c, nil
}

func (s *RedisStore) Save(ctx context.Context, c *Counter) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding quota: %w", err)
	}
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

// MemoryStore keeps the counter in process memory.
type MemoryStore struct {
	mu sync.Mutex
	c  *Counter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return nil, nil
	}
	c := *s.c
	return &c, nil
}

func (s *MemoryStore) Save(ctx context.Context, c *Counter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *c
	s.c = &saved
	return nil
}
