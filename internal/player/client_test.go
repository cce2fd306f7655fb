/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skald_radio/internal/playback"
)

const testProfileID = "11111111-2222-3333-4444-555555555555"

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		switch {
		case req.Username == "studio1" && req.Password == "secret":
			json.NewEncoder(w).Encode(map[string]string{
				"token": "profile-token", "role": "profile", "profileId": testProfileID,
			})
		case req.Username == "admin" && req.Password == "secret":
			json.NewEncoder(w).Encode(map[string]string{
				"token": "admin-token", "role": "admin",
			})
		default:
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("/api/radio/"+testProfileID+"/player", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Authorization") != "Bearer profile-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"blocked": false, "alarmBlocked": true, "streamUrl": "https://radio.example/stream", "daysLeft": 12,
		})
	})
	mux.HandleFunc("/api/radiostreams/"+testProfileID+"/schedule", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "e1", "position": 0, "time": "10:00:00", "trackRef": testProfileID + "-morning.mp3"},
			{"id": "e2", "position": 1, "time": "15:30:00", "trackRef": testProfileID + "-afternoon.mp3"},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientLoginAndFetch(t *testing.T) {
	srv := newFakeAPI(t)
	client := NewClient(srv.URL, zerolog.Nop())
	ctx := context.Background()

	if err := client.Login(ctx, "studio1", "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if client.ProfileID() != testProfileID {
		t.Fatalf("profile id = %q", client.ProfileID())
	}

	snap, err := client.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Blocked || !snap.AlarmBlocked {
		t.Fatalf("unexpected gates: %+v", snap)
	}
	if snap.StreamURL != "https://radio.example/stream" {
		t.Fatalf("stream url = %q", snap.StreamURL)
	}

	entries, err := client.Schedule(ctx)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Time != "10:00:00" || entries[1].TrackRef != testProfileID+"-afternoon.mp3" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].ProfileID != testProfileID {
		t.Fatalf("entry profile id = %q", entries[0].ProfileID)
	}
}

func TestClientRefusesAdminCredentials(t *testing.T) {
	srv := newFakeAPI(t)
	client := NewClient(srv.URL, zerolog.Nop())

	err := client.Login(context.Background(), "admin", "secret")
	if err == nil {
		t.Fatal("expected admin login to be refused")
	}
}

func TestClientTrackURL(t *testing.T) {
	client := NewClient("http://radio.example/", zerolog.Nop())
	got := client.TrackURL(testProfileID + "-morning.mp3")
	want := "http://radio.example/api/tracks/" + testProfileID + "-morning.mp3"
	if got != want {
		t.Fatalf("track url = %q, want %q", got, want)
	}
}

func TestLogOutputSignals(t *testing.T) {
	out := NewLogOutput("announcer", zerolog.Nop())
	out.BufferDelay = time.Millisecond
	out.PlayDuration = 5 * time.Millisecond

	out.Load("track-a")
	waitEvent(t, out, playback.EventCanPlay)

	if err := out.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	waitEvent(t, out, playback.EventEnded)
}

func TestLogOutputPauseCancelsEnd(t *testing.T) {
	out := NewLogOutput("announcer", zerolog.Nop())
	out.BufferDelay = time.Millisecond
	out.PlayDuration = 20 * time.Millisecond

	out.Load("track-a")
	waitEvent(t, out, playback.EventCanPlay)
	if err := out.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	out.Pause()

	select {
	case ev := <-out.Events():
		t.Fatalf("unexpected event after pause: %d", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitEvent(t *testing.T, out *LogOutput, want playback.OutputEvent) {
	t.Helper()
	select {
	case got := <-out.Events():
		if got != want {
			t.Fatalf("event = %d, want %d", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event %d", want)
	}
}
