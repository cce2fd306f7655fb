/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/events"
)

// RedisConfig contains Redis connection settings for the mirror.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisMirror bridges the local bus over Redis pub/sub. One channel per
// event type, pattern-subscribed on the receive side.
type RedisMirror struct {
	client *redis.Client
	pubsub *redis.PubSub
	bus    *events.Bus
	local  events.Subscriber
	nodeID string
	logger zerolog.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRedisMirror connects to Redis and starts both bridge directions. Unlike
// the cache, the mirror refuses to start without a working connection; silent
// mirror loss on a multi-instance deployment would mean stale gate flags.
func NewRedisMirror(cfg RedisConfig, nodeID string, bus *events.Bus, logger zerolog.Logger) (*RedisMirror, error) {
	if nodeID == "" {
		nodeID = defaultNodeID()
	}
	logger = logger.With().Str("component", "eventbus").Str("node_id", nodeID).Logger()

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to Redis at %s: %w", cfg.Addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &RedisMirror{
		client: client,
		pubsub: client.PSubscribe(ctx, subjectPrefix+"*"),
		bus:    bus,
		nodeID: nodeID,
		logger: logger,
		cancel: cancel,
	}

	m.local = bus.Subscribe(events.Types()...)
	m.wg.Add(2)
	go m.forwardLocal(ctx)
	go m.receiveRemote(ctx)

	logger.Info().Str("addr", cfg.Addr).Msg("Redis event mirror started")
	return m, nil
}

func (m *RedisMirror) forwardLocal(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-m.local:
			if !ok {
				return
			}
			if isRemote(event.Payload) {
				continue
			}

			data, err := marshalMessage(event.Type, event.Payload, m.nodeID)
			if err != nil {
				m.logger.Error().Err(err).Msg("failed to marshal event for Redis")
				continue
			}

			pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = m.client.Publish(pubCtx, subjectPrefix+string(event.Type), data).Err()
			cancel()
			if err != nil {
				m.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish to Redis")
			}
		}
	}
}

func (m *RedisMirror) receiveRemote(ctx context.Context) {
	defer m.wg.Done()
	ch := m.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			remote, err := unmarshalMessage([]byte(msg.Payload))
			if err != nil {
				m.logger.Error().Err(err).Str("channel", msg.Channel).Msg("failed to unmarshal Redis message")
				continue
			}
			if remote.NodeID == m.nodeID || !strings.HasPrefix(msg.Channel, subjectPrefix) {
				continue
			}

			m.bus.Publish(remote.EventType, tagRemote(remote.Payload, remote.NodeID))
		}
	}
}

// Close stops both directions and disconnects.
func (m *RedisMirror) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.cancel()
		m.bus.Unsubscribe(m.local)
		m.pubsub.Close()
		m.wg.Wait()
		err = m.client.Close()
		m.logger.Info().Msg("Redis event mirror closed")
	})
	return err
}
