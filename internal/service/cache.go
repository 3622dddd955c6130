package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nurpe/snowops-boq/internal/boq"
)

// CachedVigent is a computed rollup tagged with the highest approved addendum
// number it reflects and the contract version read before its inputs. Cached
// rollups are shared between readers and must not be modified.
type CachedVigent struct {
	Version           uint64      `json:"version"`
	MaxApprovedNumber int         `json:"max_approved_number"`
	Rollup            *boq.Rollup `json:"rollup"`
}

// VigentCache stores one rollup per contract. Version is a per-contract
// counter kept next to the entries and bumped by Invalidate, so every reader
// sharing the cache sees the same version. Version reports false when it is
// unavailable; the caller then neither trusts nor fills the cache.
type VigentCache interface {
	Get(ctx context.Context, contractID uuid.UUID) (*CachedVigent, bool)
	Set(ctx context.Context, contractID uuid.UUID, entry *CachedVigent)
	Invalidate(ctx context.Context, contractID uuid.UUID)
	Version(ctx context.Context, contractID uuid.UUID) (uint64, bool)
}

type memoryEntry struct {
	value     *CachedVigent
	expiresAt time.Time
}

// MemoryVigentCache keeps rollups in process with a fixed TTL.
type MemoryVigentCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries  map[uuid.UUID]memoryEntry
	versions map[uuid.UUID]uint64
	now      func() time.Time
}

func NewMemoryVigentCache(ttl time.Duration) *MemoryVigentCache {
	return &MemoryVigentCache{
		ttl:      ttl,
		entries:  make(map[uuid.UUID]memoryEntry),
		versions: make(map[uuid.UUID]uint64),
		now:      time.Now,
	}
}

func (c *MemoryVigentCache) Get(_ context.Context, contractID uuid.UUID) (*CachedVigent, bool) {
	c.mu.RLock()
	entry, ok := c.entries[contractID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, still := c.entries[contractID]; still && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, contractID)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryVigentCache) Set(_ context.Context, contractID uuid.UUID, value *CachedVigent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[contractID] = memoryEntry{value: value, expiresAt: c.now().Add(c.ttl)}
}

func (c *MemoryVigentCache) Invalidate(_ context.Context, contractID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[contractID]++
	delete(c.entries, contractID)
}

func (c *MemoryVigentCache) Version(_ context.Context, contractID uuid.UUID) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[contractID], true
}

// RedisVigentCache shares rollups between service instances as JSON. Redis
// failures degrade to cache misses.
type RedisVigentCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisVigentCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisVigentCache {
	return &RedisVigentCache{client: client, ttl: ttl, log: log}
}

func vigentKey(contractID uuid.UUID) string {
	return "boq:vigent:" + contractID.String()
}

func versionKey(contractID uuid.UUID) string {
	return "boq:vigent:" + contractID.String() + ":version"
}

func (c *RedisVigentCache) Get(ctx context.Context, contractID uuid.UUID) (*CachedVigent, bool) {
	raw, err := c.client.Get(ctx, vigentKey(contractID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("contract_id", contractID.String()).Msg("vigent cache read failed")
		}
		return nil, false
	}
	var entry CachedVigent
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.Warn().Err(err).Str("contract_id", contractID.String()).Msg("vigent cache entry corrupt")
		return nil, false
	}
	return &entry, true
}

func (c *RedisVigentCache) Set(ctx context.Context, contractID uuid.UUID, entry *CachedVigent) {
	raw, err := json.Marshal(entry)
	if err != nil {
		c.log.Warn().Err(err).Msg("vigent cache encode failed")
		return
	}
	if err := c.client.Set(ctx, vigentKey(contractID), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("contract_id", contractID.String()).Msg("vigent cache write failed")
	}
}

// Invalidate bumps the contract version and drops its entry in one
// transaction. The version key has no TTL.
func (c *RedisVigentCache) Invalidate(ctx context.Context, contractID uuid.UUID) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(contractID))
		pipe.Del(ctx, vigentKey(contractID))
		return nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("contract_id", contractID.String()).Msg("vigent cache invalidate failed")
	}
}

func (c *RedisVigentCache) Version(ctx context.Context, contractID uuid.UUID) (uint64, bool) {
	version, err := c.client.Get(ctx, versionKey(contractID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		c.log.Warn().Err(err).Str("contract_id", contractID.String()).Msg("vigent cache version read failed")
		return 0, false
	}
	return version, true
}
