/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for profile snapshots,
// which every connected player polls once a second.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/models"
)

// Default TTL values. Profile snapshots hold gate flags the player must see
// quickly, so they expire fast; the admin list can lag a little.
const (
	DefaultProfileTTL     = 2 * time.Second
	DefaultProfileListTTL = 30 * time.Second
	DefaultScheduleTTL    = 5 * time.Second
)

// Key prefixes for Redis cache.
const (
	KeyProfile     = "skald:cache:profile:"  // + profile_id
	KeyProfileList = "skald:cache:profiles"
	KeySchedule    = "skald:cache:schedule:" // + profile_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ProfileTTL     time.Duration
	ProfileListTTL time.Duration
	ScheduleTTL    time.Duration

	// DisableOnError turns a Redis failure into a permanent bypass instead
	// of a per-request error.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		ProfileTTL:     DefaultProfileTTL,
		ProfileListTTL: DefaultProfileListTTL,
		ScheduleTTL:    DefaultScheduleTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A miss or an
// unavailable Redis always reads through to the database.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // circuit breaker state
}

// New creates a new cache instance. An unreachable Redis yields a disabled
// cache, not an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// NewDisabled returns a cache that never hits, for tests and single-node
// runs without Redis.
func NewDisabled(logger zerolog.Logger) *Cache {
	return &Cache{
		logger:   logger.With().Str("component", "cache").Logger(),
		config:   DefaultConfig(),
		disabled: true,
	}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.handleError(err, "get")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.IsAvailable() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to marshal cache value")
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
	}
}

func (c *Cache) delete(ctx context.Context, keys ...string) {
	if !c.IsAvailable() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.handleError(err, "delete")
	}
}

// GetProfile returns a cached profile snapshot, or false on a miss.
func (c *Cache) GetProfile(ctx context.Context, id string) (*models.Profile, bool) {
	var profile models.Profile
	if !c.get(ctx, KeyProfile+id, &profile) {
		return nil, false
	}
	return &profile, true
}

// SetProfile caches a profile snapshot.
func (c *Cache) SetProfile(ctx context.Context, profile *models.Profile) {
	c.set(ctx, KeyProfile+profile.ID, profile, c.config.ProfileTTL)
}

// GetProfileList returns the cached admin listing, or false on a miss.
func (c *Cache) GetProfileList(ctx context.Context) ([]models.Profile, bool) {
	var profiles []models.Profile
	if !c.get(ctx, KeyProfileList, &profiles) {
		return nil, false
	}
	return profiles, true
}

// SetProfileList caches the admin listing.
func (c *Cache) SetProfileList(ctx context.Context, profiles []models.Profile) {
	c.set(ctx, KeyProfileList, profiles, c.config.ProfileListTTL)
}

// GetSchedule returns a cached timetable, or false on a miss.
func (c *Cache) GetSchedule(ctx context.Context, profileID string) ([]models.ScheduleEntry, bool) {
	var entries []models.ScheduleEntry
	if !c.get(ctx, KeySchedule+profileID, &entries) {
		return nil, false
	}
	return entries, true
}

// SetSchedule caches a timetable.
func (c *Cache) SetSchedule(ctx context.Context, profileID string, entries []models.ScheduleEntry) {
	c.set(ctx, KeySchedule+profileID, entries, c.config.ScheduleTTL)
}

// InvalidateProfile drops everything cached for one profile.
func (c *Cache) InvalidateProfile(ctx context.Context, id string) {
	c.delete(ctx, KeyProfile+id, KeySchedule+id, KeyProfileList)
}

// SubscribeInvalidation drops cached state whenever the bus reports a
// mutation, so gate flips propagate to players ahead of TTL expiry. Runs
// until ctx is cancelled.
func (c *Cache) SubscribeInvalidation(ctx context.Context, bus *events.Bus) {
	ch := bus.Subscribe(events.Types()...)
	go func() {
		defer bus.Unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				id, _ := event.Payload["profile_id"].(string)
				if id == "" {
					continue
				}
				c.InvalidateProfile(context.Background(), id)
			}
		}
	}()
}

// Ping verifies connectivity, used by the health endpoint.
func (c *Cache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("cache disabled")
	}
	return c.client.Ping(ctx).Err()
}
