/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventProfileCreated   EventType = "profile.created"
	EventProfileUpdated   EventType = "profile.updated"
	EventProfileBlocked   EventType = "profile.blocked"
	EventProfileUnblocked EventType = "profile.unblocked"
	EventAlarmBlocked     EventType = "profile.alarm_blocked"
	EventAlarmUnblocked   EventType = "profile.alarm_unblocked"
	EventProfileRenewed   EventType = "profile.renewed"
	EventProfileDeleted   EventType = "profile.deleted"
	EventScheduleUpdated  EventType = "schedule.updated"
	EventTrackUploaded    EventType = "track.uploaded"
	EventTrackDeleted     EventType = "track.deleted"
)

// Types lists every event type the bus carries, for subscribers that want all
// of them (event mirror, websocket feed, cache invalidator).
func Types() []EventType {
	return []EventType{
		EventProfileCreated,
		EventProfileUpdated,
		EventProfileBlocked,
		EventProfileUnblocked,
		EventAlarmBlocked,
		EventAlarmUnblocked,
		EventProfileRenewed,
		EventProfileDeleted,
		EventScheduleUpdated,
		EventTrackUploaded,
		EventTrackDeleted,
	}
}

// Payload generic event payload.
type Payload map[string]any

// Event is one delivered bus message.
type Event struct {
	Type    EventType
	Payload Payload
}

// Subscriber receives events.
type Subscriber chan Event

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for the given event types. One channel is
// shared across all of them.
func (b *Bus) Subscribe(types ...EventType) Subscriber {
	ch := make(Subscriber, 16)
	b.mu.Lock()
	for _, eventType := range types {
		b.subs[eventType] = append(b.subs[eventType], ch)
	}
	b.mu.Unlock()
	return ch
}

// Publish sends the event to subscribers. Slow subscribers are skipped rather
// than blocking the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	event := Event{Type: eventType, Payload: payload}
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// Unsubscribe removes the subscriber from every type it registered for and
// closes its channel.
func (b *Bus) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for eventType, subs := range b.subs {
		for i, candidate := range subs {
			if candidate == sub {
				b.subs[eventType] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	close(sub)
}
