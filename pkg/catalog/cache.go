package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dukex/area/pkg/models"
	redis "github.com/redis/go-redis/v9"
)

// MemoryCache lives as long as the editing session.
type MemoryCache struct {
	mu          sync.RWMutex
	definitions map[string]*models.ServiceDefinition
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{definitions: make(map[string]*models.ServiceDefinition)}
}

func (m *MemoryCache) Get(_ context.Context, slug string) (*models.ServiceDefinition, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	definition, ok := m.definitions[slug]

	return definition, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, slug string, definition *models.ServiceDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.definitions[slug] = definition

	return nil
}

// RedisCache shares definitions between CLI runs.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

const defaultRedisTTL = time.Hour

// NewRedisCache connects to url (redis://...).
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	return NewRedisCacheWithClient(redis.NewClient(opts), ttl), nil
}

func NewRedisCacheWithClient(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}

	return &RedisCache{client: client, prefix: "area:definitions:", ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, slug string) (*models.ServiceDefinition, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+slug).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	var definition models.ServiceDefinition
	if err := json.Unmarshal(raw, &definition); err != nil {
		return nil, false, err
	}

	return &definition, true, nil
}

func (r *RedisCache) Set(ctx context.Context, slug string, definition *models.ServiceDefinition) error {
	raw, err := json.Marshal(definition)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, r.prefix+slug, raw, r.ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
