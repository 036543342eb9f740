package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exquiz-backend/internal/config"
	"github.com/stemsi/exquiz-backend/internal/model"
)

// CachedVariant is the question set first delivered to an attempt together
// with the effective config that produced it.
type CachedVariant struct {
	Config            model.RandomizationConfig `json:"config"`
	Questions         []model.Question          `json:"questions"`
	PointsPerQuestion int                       `json:"points_per_question"`
}

// VariantCache pins delivered variants to (quiz, session) pairs.
// A miss returns (nil, nil).
type VariantCache interface {
	Get(ctx context.Context, quizID, sessionID string) (*CachedVariant, error)
	Set(ctx context.Context, quizID, sessionID string, v *CachedVariant) error
}

// RedisVariantCache stores variants as JSON strings with a TTL.
type RedisVariantCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisVariantCache creates a RedisVariantCache.
func NewRedisVariantCache(rdb *redis.Client, ttl time.Duration) *RedisVariantCache {
	return &RedisVariantCache{rdb: rdb, ttl: ttl}
}

func (c *RedisVariantCache) Get(ctx context.Context, quizID, sessionID string) (*CachedVariant, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.QuizVariantKey(quizID, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}

	var v CachedVariant
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode variant: %w", err)
	}
	return &v, nil
}

func (c *RedisVariantCache) Set(ctx context.Context, quizID, sessionID string, v *CachedVariant) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode variant: %w", err)
	}
	if err := c.rdb.Set(ctx, config.CacheKey.QuizVariantKey(quizID, sessionID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set variant: %w", err)
	}
	return nil
}

// MemoryVariantCache keeps variants in process memory.
type MemoryVariantCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryVariant
}

type memoryVariant struct {
	v         *CachedVariant
	expiresAt time.Time
}

// NewMemoryVariantCache creates a MemoryVariantCache. A zero ttl never expires.
func NewMemoryVariantCache(ttl time.Duration) *MemoryVariantCache {
	return &MemoryVariantCache{ttl: ttl, now: time.Now, entries: make(map[string]memoryVariant)}
}

func (c *MemoryVariantCache) Get(_ context.Context, quizID, sessionID string) (*CachedVariant, error) {
	key := config.CacheKey.QuizVariantKey(quizID, sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	return cloneVariant(e.v), nil
}

func (c *MemoryVariantCache) Set(_ context.Context, quizID, sessionID string, v *CachedVariant) error {
	e := memoryVariant{v: cloneVariant(v)}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[config.CacheKey.QuizVariantKey(quizID, sessionID)] = e
	c.mu.Unlock()
	return nil
}

func cloneVariant(v *CachedVariant) *CachedVariant {
	out := &CachedVariant{
		Config:            v.Config,
		Questions:         make([]model.Question, len(v.Questions)),
		PointsPerQuestion: v.PointsPerQuestion,
	}
	if v.Config.QuestionLimit != nil {
		limit := *v.Config.QuestionLimit
		out.Config.QuestionLimit = &limit
	}
	for i, q := range v.Questions {
		out.Questions[i] = q.Clone()
	}
	return out
}
