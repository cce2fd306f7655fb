/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/events"
)

// subjectPrefix is the NATS subject namespace; one subject per event type.
const subjectPrefix = "skald.events."

// NATSMirror bridges the local bus over NATS. Outgoing local events are
// published to "skald.events.{type}"; incoming remote events are injected
// into the local bus tagged with their origin node.
type NATSMirror struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	bus    *events.Bus
	local  events.Subscriber
	nodeID string
	logger zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewNATSMirror connects to NATS and starts both bridge directions.
func NewNATSMirror(url, nodeID string, bus *events.Bus, logger zerolog.Logger) (*NATSMirror, error) {
	if nodeID == "" {
		nodeID = defaultNodeID()
	}
	logger = logger.With().Str("component", "eventbus").Str("node_id", nodeID).Logger()

	conn, err := nats.Connect(url,
		nats.Name("skald-"+nodeID),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}

	m := &NATSMirror{
		conn:   conn,
		bus:    bus,
		nodeID: nodeID,
		logger: logger,
		done:   make(chan struct{}),
	}

	m.sub, err = conn.Subscribe(subjectPrefix+">", m.handleRemote)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to event subjects: %w", err)
	}

	m.local = bus.Subscribe(events.Types()...)
	go m.forwardLocal()

	logger.Info().Str("url", url).Msg("NATS event mirror started")
	return m, nil
}

// forwardLocal publishes locally produced events to the broker.
func (m *NATSMirror) forwardLocal() {
	for {
		select {
		case <-m.done:
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
				m.logger.Error().Err(err).Msg("failed to marshal event for NATS")
				continue
			}
			if err := m.conn.Publish(subjectPrefix+string(event.Type), data); err != nil {
				m.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish to NATS")
			}
		}
	}
}

// handleRemote injects a broker event into the local bus.
func (m *NATSMirror) handleRemote(msg *nats.Msg) {
	remote, err := unmarshalMessage(msg.Data)
	if err != nil {
		m.logger.Error().Err(err).Str("subject", msg.Subject).Msg("failed to unmarshal NATS message")
		return
	}
	if remote.NodeID == m.nodeID {
		return
	}
	if !strings.HasPrefix(msg.Subject, subjectPrefix) {
		return
	}

	m.bus.Publish(remote.EventType, tagRemote(remote.Payload, remote.NodeID))
	m.logger.Debug().
		Str("event_type", string(remote.EventType)).
		Str("source_node", remote.NodeID).
		Msg("delivered remote event")
}

// Close drains the subscription and disconnects.
func (m *NATSMirror) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.bus.Unsubscribe(m.local)
		if m.sub != nil {
			_ = m.sub.Drain()
		}
		m.conn.Close()
		m.logger.Info().Msg("NATS event mirror closed")
	})
	return nil
}

func defaultNodeID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "skald"
	}
	return host + "-" + uuid.NewString()[:8]
}
