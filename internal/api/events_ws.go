/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/skald_radio/internal/auth"
	"github.com/friendsincode/skald_radio/internal/events"
	"github.com/friendsincode/skald_radio/internal/telemetry"
)

// handleEvents streams bus events over a WebSocket. Admin tokens see
// everything; profile tokens only their own profile's events. An optional
// "types" query param narrows the event set.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIActiveConnections.Inc()
	defer telemetry.APIActiveConnections.Dec()

	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = events.Types()
	}

	sub := a.bus.Subscribe(eventTypes...)
	defer a.bus.Unsubscribe(sub)

	ctx := r.Context()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		case event, ok := <-sub:
			if !ok {
				conn.Close(ws.StatusNormalClosure, "bus closed")
				return
			}
			if !claims.IsAdmin() {
				if id, _ := event.Payload["profile_id"].(string); id != claims.ProfileID {
					continue
				}
			}
			if err := writeEvent(ctx, conn, event); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *ws.Conn, event events.Event) error {
	data, err := json.Marshal(map[string]any{
		"type":    event.Type,
		"payload": event.Payload,
	})
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}

	known := make(map[events.EventType]bool)
	for _, t := range events.Types() {
		known[t] = true
	}

	var out []events.EventType
	for _, part := range strings.Split(raw, ",") {
		eventType := events.EventType(strings.TrimSpace(part))
		if known[eventType] {
			out = append(out, eventType)
		}
	}
	return out
}
