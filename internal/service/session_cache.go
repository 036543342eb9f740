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

// SessionCache is a non-authoritative read accelerator for proctoring
// sessions. A miss returns (nil, nil). Put ignores snapshots older than the
// cached one so racing writers cannot roll the entry back.
type SessionCache interface {
	Get(ctx context.Context, sessionID string) (*model.ProctoringSession, error)
	Put(ctx context.Context, s *model.ProctoringSession) error
	Delete(ctx context.Context, sessionID string) error
}

// supersedes reports whether next may replace cur. Terminal states are final
// and the violation counter only grows.
func supersedes(next, cur *model.ProctoringSession) bool {
	if cur == nil {
		return true
	}
	if cur.Status.Terminal() && !next.Status.Terminal() {
		return false
	}
	return next.ViolationCount >= cur.ViolationCount
}

// MemorySessionCache is a per-process SessionCache.
type MemorySessionCache struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memorySession
}

type memorySession struct {
	s         model.ProctoringSession
	expiresAt time.Time
}

// NewMemorySessionCache creates a MemorySessionCache. A zero ttl never expires.
func NewMemorySessionCache(ttl time.Duration) *MemorySessionCache {
	return &MemorySessionCache{ttl: ttl, now: time.Now, sessions: make(map[string]memorySession)}
}

func (c *MemorySessionCache) Get(_ context.Context, sessionID string) (*model.ProctoringSession, error) {
	c.mu.RLock()
	e, ok := c.sessions[sessionID]
	c.mu.RUnlock()

	if !ok || (!e.expiresAt.IsZero() && c.now().After(e.expiresAt)) {
		return nil, nil
	}
	s := e.s
	return &s, nil
}

func (c *MemorySessionCache) Put(_ context.Context, s *model.ProctoringSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.sessions[s.SessionID]; ok {
		cur := e.s
		if !supersedes(s, &cur) {
			return nil
		}
	}

	e := memorySession{s: *s}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.sessions[s.SessionID] = e
	return nil
}

func (c *MemorySessionCache) Delete(_ context.Context, sessionID string) error {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *MemorySessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// RedisSessionCache shares session snapshots between instances.
type RedisSessionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionCache creates a RedisSessionCache.
func NewRedisSessionCache(rdb *redis.Client, ttl time.Duration) *RedisSessionCache {
	return &RedisSessionCache{rdb: rdb, ttl: ttl}
}

func (c *RedisSessionCache) Get(ctx context.Context, sessionID string) (*model.ProctoringSession, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.ProctoringSessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s model.ProctoringSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// Put writes the snapshot under WATCH so a concurrent newer write wins.
func (c *RedisSessionCache) Put(ctx context.Context, s *model.ProctoringSession) error {
	key := config.CacheKey.ProctoringSessionKey(s.SessionID)
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var existing model.ProctoringSession
			if json.Unmarshal(cur, &existing) == nil && !supersedes(s, &existing) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.ttl)
			return nil
		})
		return err
	}

	err = c.rdb.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Another writer got in first; retry once against its value.
		err = c.rdb.Watch(ctx, txf, key)
	}
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (c *RedisSessionCache) Delete(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, config.CacheKey.ProctoringSessionKey(sessionID)).Err()
}
