/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus mirrors the in-process event bus across nodes, so every
// server instance sees gate flips and schedule changes regardless of which
// instance handled the mutation.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/config"
	"github.com/friendsincode/skald_radio/internal/events"
)

// Mirror bridges local bus events to a broker and back.
type Mirror interface {
	Close() error
}

// originNodeKey marks payloads that arrived from a remote node. The outgoing
// loop skips them, which is what breaks the republish cycle.
const originNodeKey = "origin_node"

// message is the wire format shared by all mirror backends.
type message struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
}

func marshalMessage(eventType events.EventType, payload events.Payload, nodeID string) ([]byte, error) {
	return json.Marshal(message{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now(),
		NodeID:    nodeID,
	})
}

func unmarshalMessage(data []byte) (*message, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal mirror message: %w", err)
	}
	return &msg, nil
}

// isRemote reports whether the payload was injected by a mirror rather than
// produced locally.
func isRemote(payload events.Payload) bool {
	origin, _ := payload[originNodeKey].(string)
	return origin != ""
}

// tagRemote copies the payload with the origin marker set, leaving the
// broker-side payload untouched.
func tagRemote(payload events.Payload, nodeID string) events.Payload {
	tagged := make(events.Payload, len(payload)+1)
	for k, v := range payload {
		tagged[k] = v
	}
	tagged[originNodeKey] = nodeID
	return tagged
}

// New builds the configured mirror, or nil when mirroring is disabled.
func New(cfg *config.Config, bus *events.Bus, logger zerolog.Logger) (Mirror, error) {
	switch cfg.EventMirror {
	case config.MirrorNone:
		return nil, nil
	case config.MirrorNATS:
		return NewNATSMirror(cfg.NATSURL, cfg.InstanceID, bus, logger)
	case config.MirrorRedis:
		return NewRedisMirror(RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.InstanceID, bus, logger)
	default:
		return nil, fmt.Errorf("unknown event mirror backend %q", cfg.EventMirror)
	}
}
